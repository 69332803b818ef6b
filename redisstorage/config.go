package redisstorage

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config stores the redis connection configs
type Config struct {
	// If this is true, will use ClusterClient
	IsClusterMode bool `mapstructure:"IsClusterMode"`

	// Host:Port address
	Addrs []string `mapstructure:"Addrs"`

	// Username for ACL
	Username string `mapstructure:"Username"`

	// Password for ACL
	Password string `mapstructure:"Password"`

	// DB index
	DB int `mapstructure:"DB"`

	// PriceTTL is how old a stored price may be before it is considered missing. 0 disables the check.
	PriceTTL types.Duration `mapstructure:"PriceTTL"`
}
