package network

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsEntityID reports whether s is a hedera entity id such as 0.0.1234
func IsEntityID(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 { //nolint:gomnd
		return false
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 64); err != nil {
			return false
		}
	}
	return true
}

// ToEVMAddress converts a hedera entity id into its long-zero EVM address.
// EVM addresses are returned unchanged.
func ToEVMAddress(s string) (common.Address, error) {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	if !IsEntityID(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	parts := strings.Split(s, ".")
	shard, _ := strconv.ParseUint(parts[0], 10, 32)
	realm, _ := strconv.ParseUint(parts[1], 10, 64)
	num, _ := strconv.ParseUint(parts[2], 10, 64)

	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], uint32(shard))
	binary.BigEndian.PutUint64(addr[4:12], realm)
	binary.BigEndian.PutUint64(addr[12:20], num)
	return addr, nil
}

// EVMAddress returns the address of the token usable in contract calls
func (t Token) EVMAddress() (common.Address, error) {
	return ToEVMAddress(t.Address)
}
