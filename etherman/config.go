package etherman

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config represents the configuration of the etherman
type Config struct {
	// PrivateKey is the keystore of the operator account that funds the payouts
	PrivateKey types.KeystoreFileConfig `mapstructure:"PrivateKey"`
	// PrivateKeyHex is used when no keystore is configured
	PrivateKeyHex string `mapstructure:"PrivateKeyHex"`
	// RequestTimeout bounds every call made against a single endpoint
	RequestTimeout types.Duration `mapstructure:"RequestTimeout"`
	// ReceiptTimeout is how long a submitted transaction is waited for
	ReceiptTimeout types.Duration `mapstructure:"ReceiptTimeout"`
	// ReceiptPollInterval is the delay between receipt lookups
	ReceiptPollInterval types.Duration `mapstructure:"ReceiptPollInterval"`
	GasLimitTransfer    uint64         `mapstructure:"GasLimitTransfer"`
	GasLimitSwap        uint64         `mapstructure:"GasLimitSwap"`
	// ContractCacheSize is the size of the cache remembering which addresses hold code
	ContractCacheSize int `mapstructure:"ContractCacheSize"`
}
