package releasetxman

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Lock backends
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config is configuration for the payout transaction manager
type Config struct {
	//Enabled whether to enable this module
	Enabled bool `mapstructure:"Enabled"`
	// FrequencyToMonitorTxs is the delay between two scans of the pending deposits of a network
	FrequencyToMonitorTxs types.Duration `mapstructure:"FrequencyToMonitorTxs"`
	// TxTimeout bounds the balance reads and the submission of a single payout
	TxTimeout types.Duration `mapstructure:"TxTimeout"`
	// RetryNumber is the number of failed attempts after which a deposit is marked failed
	RetryNumber int `mapstructure:"RetryNumber"`
	// LockBackend selects the payout lock, memory or redis
	LockBackend string `mapstructure:"LockBackend"`
	// LockTTL is the expiry of a redis payout lock
	LockTTL types.Duration `mapstructure:"LockTTL"`
	// StatusTopic is the kafka topic status updates are pushed to, the producer default when empty
	StatusTopic string `mapstructure:"StatusTopic"`
}
