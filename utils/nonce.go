package utils

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// NewNonce generates the off-chain identifier of a bridge request
func NewNonce() string {
	return uuid.NewString()
}

// NonceHash returns the keccak256 of the nonce. It is the value the bridge contract
// emits as the indexed nonce topic of BridgeDeposit.
func NonceHash(nonce string) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	_, _ = hasher.Write([]byte(nonce))
	return common.BytesToHash(hasher.Sum(nil))
}
