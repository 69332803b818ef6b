package synchronizer

import (
	"github.com/0xPolygonHermez/zkevm-node/config/types"
)

// Config represents the configuration of the synchronizer
type Config struct {
	// SyncInterval is the delay between the end of a poll cycle and the start of the next one
	SyncInterval types.Duration `mapstructure:"SyncInterval"`

	// SyncChunkSize is the number of blocks requested on each eth_getLogs call
	SyncChunkSize uint64 `mapstructure:"SyncChunkSize"`

	// MaxChunksPerCycle bounds how many chunks a poll cycle scans before persisting its cursor
	MaxChunksPerCycle uint64 `mapstructure:"MaxChunksPerCycle"`

	// ProcessedCacheSize is the number of dedup keys kept in memory per source
	ProcessedCacheSize int `mapstructure:"ProcessedCacheSize"`
}
