package precheck

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config is the configuration of the precheck engine
type Config struct {
	// Timeout bounds the chain reads of a single precheck
	Timeout types.Duration `mapstructure:"Timeout"`
	// CheckAllowance enables the ERC20 allowance check of the depositor on the source network
	CheckAllowance bool `mapstructure:"CheckAllowance"`
}
