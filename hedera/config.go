package hedera

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config represents the configuration of the hedera clients
type Config struct {
	// OperatorID is the account id (0.0.x) of the pool operator
	OperatorID string `mapstructure:"OperatorID"`
	// OperatorKey is the DER or hex encoded private key of the operator
	OperatorKey string `mapstructure:"OperatorKey"`
	// RequestTimeout bounds mirror node requests and sdk calls
	RequestTimeout types.Duration `mapstructure:"RequestTimeout"`
	// PageLimit is the page size requested to the mirror node
	PageLimit int `mapstructure:"PageLimit"`
	// MaxPages bounds how many pages a single fetch follows
	MaxPages int `mapstructure:"MaxPages"`
}
