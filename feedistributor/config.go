package feedistributor

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config is the configuration of the fee distributor
type Config struct {
	// ZeroLiquidityPolicy decides what happens to the LP share of a fee when the
	// network has no active liquidity: admin, retain or drop
	ZeroLiquidityPolicy Policy `mapstructure:"ZeroLiquidityPolicy"`

	// SweepInterval is how often completed deposits without a booked fee are looked for
	SweepInterval types.Duration `mapstructure:"SweepInterval"`

	// SweepBatchSize bounds the deposits booked by a single sweep
	SweepBatchSize uint `mapstructure:"SweepBatchSize"`
}
