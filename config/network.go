package config

import (
	"fmt"
	"strings"

	"github.com/valtbridge/bridge-service/network"
)

// NetworkConfig is a network entry of the configuration. When Preset is set the
// predefined network is used as base and every non empty field overrides it.
type NetworkConfig struct {
	Preset string `mapstructure:"Preset"`
	// Testnet switches a mainnet preset to the hedera testnet client
	Testnet        bool `mapstructure:"Testnet"`
	network.Config `mapstructure:",squash"`
}

// ResolveNetworks merges every entry with its preset
func ResolveNetworks(entries []NetworkConfig) ([]network.Config, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no network configured")
	}
	nets := make([]network.Config, 0, len(entries))
	for i, e := range entries {
		if e.Preset == "" {
			nets = append(nets, e.Config)
			continue
		}
		base, err := network.Preset(strings.ToLower(e.Preset))
		if err != nil {
			return nil, fmt.Errorf("network entry %d: %w", i, err)
		}
		merged := merge(base, e.Config)
		if e.Testnet {
			merged.Mainnet = false
		}
		nets = append(nets, merged)
	}
	return nets, nil
}

func merge(base, o network.Config) network.Config {
	setString(&base.Name, o.Name)
	setString(&base.Slug, o.Slug)
	if o.Family != "" {
		base.Family = o.Family
	}
	if o.ChainID != 0 {
		base.ChainID = o.ChainID
	}
	setString(&base.NativeSymbol, o.NativeSymbol)
	if o.NativeDecimals != 0 {
		base.NativeDecimals = o.NativeDecimals
	}
	if len(o.RPCURLs) > 0 {
		base.RPCURLs = o.RPCURLs
	}
	if len(o.MirrorURLs) > 0 {
		base.MirrorURLs = o.MirrorURLs
	}
	setString(&base.BridgeContract, o.BridgeContract)
	setString(&base.PoolAddress, o.PoolAddress)
	setString(&base.Router, o.Router)
	setString(&base.WrappedNative, o.WrappedNative)
	if o.RelayValueDecimals != 0 {
		base.RelayValueDecimals = o.RelayValueDecimals
	}
	if o.Confirmations != 0 {
		base.Confirmations = o.Confirmations
	}
	if o.StartBlock != 0 {
		base.StartBlock = o.StartBlock
	}
	setString(&base.WebhookNetwork, o.WebhookNetwork)
	base.Mainnet = base.Mainnet || o.Mainnet

	tokens := append([]network.Token(nil), base.Tokens...)
	for _, t := range o.Tokens {
		replaced := false
		for j := range tokens {
			if strings.EqualFold(tokens[j].Symbol, t.Symbol) {
				tokens[j], replaced = t, true
				break
			}
		}
		if !replaced {
			tokens = append(tokens, t)
		}
	}
	base.Tokens = tokens
	return base
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
