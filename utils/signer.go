package utils

import (
	"crypto/ecdsa"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/config/types"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadOperatorKey returns the operator private key, preferring the keystore file
// when one is configured.
func LoadOperatorKey(ks types.KeystoreFileConfig, hexKey string) (*ecdsa.PrivateKey, error) {
	if ks.Path != "" {
		keystoreEncrypted, err := os.ReadFile(filepath.Clean(ks.Path))
		if err != nil {
			return nil, err
		}
		key, err := keystore.DecryptKey(keystoreEncrypted, ks.Password)
		if err != nil {
			return nil, err
		}
		return key.PrivateKey, nil
	}
	if hexKey == "" {
		return nil, errors.New("operator key is not configured")
	}
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}
