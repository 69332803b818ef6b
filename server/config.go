package server

import "github.com/0xPolygonHermez/zkevm-node/config/types"

// Config struct
type Config struct {
	// HTTPPort is TCP port to listen by the HTTP API
	HTTPPort     string         `mapstructure:"HTTPPort"`
	ReadTimeout  types.Duration `mapstructure:"ReadTimeout"`
	WriteTimeout types.Duration `mapstructure:"WriteTimeout"`
	// JWTSecret is the HS256 key of the bearer tokens
	JWTSecret string `mapstructure:"JWTSecret"`
	// WebhookSecret is accepted in place of an admin token by the address activity webhook
	WebhookSecret string `mapstructure:"WebhookSecret"`
	// DefaultPageLimit and MaxPageLimit bound the deposit listings
	DefaultPageLimit uint `mapstructure:"DefaultPageLimit"`
	MaxPageLimit     uint `mapstructure:"MaxPageLimit"`
}
