package network

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

// Family identifies how a network is accessed
type Family string

const (
	// FamilyEVM networks are reached through JSON-RPC
	FamilyEVM Family = "evm"
	// FamilyHedera networks are reached through the mirror node and the hedera sdk
	FamilyHedera Family = "hedera"
)

// Token is a bridgeable asset on a network
type Token struct {
	Symbol string `mapstructure:"Symbol"`
	// Address is the ERC20 address on EVM networks or the HTS id (0.0.x) on hedera
	Address  string `mapstructure:"Address"`
	Decimals int32  `mapstructure:"Decimals"`
	Native   bool   `mapstructure:"Native"`
	// PriceID is the identifier used by the price feed
	PriceID string `mapstructure:"PriceID"`
}

// Config describes one network the bridge operates a pool on
type Config struct {
	Name           string   `mapstructure:"Name"`
	Slug           string   `mapstructure:"Slug"`
	Family         Family   `mapstructure:"Family"`
	ChainID        uint64   `mapstructure:"ChainID"`
	NativeSymbol   string   `mapstructure:"NativeSymbol"`
	NativeDecimals int32    `mapstructure:"NativeDecimals"`
	RPCURLs        []string `mapstructure:"RPCURLs"`
	MirrorURLs     []string `mapstructure:"MirrorURLs"`
	// BridgeContract is an EVM address, or a hedera contract id
	BridgeContract string `mapstructure:"BridgeContract"`
	// PoolAddress is the operator account holding the pool funds
	PoolAddress   string `mapstructure:"PoolAddress"`
	Router        string `mapstructure:"Router"`
	WrappedNative string `mapstructure:"WrappedNative"`
	// RelayValueDecimals is the precision of msg.value on the JSON-RPC endpoint.
	// Hedera relays take weibars (18) while balances are tinybars (8).
	RelayValueDecimals int32   `mapstructure:"RelayValueDecimals"`
	Confirmations      uint64  `mapstructure:"Confirmations"`
	StartBlock         uint64  `mapstructure:"StartBlock"`
	Tokens             []Token `mapstructure:"Tokens"`
	// Mainnet selects the hedera client network
	Mainnet bool `mapstructure:"Mainnet"`
	// WebhookNetwork is the network name used by address activity webhooks (ETH_MAINNET, BASE_MAINNET...)
	WebhookNetwork string `mapstructure:"WebhookNetwork"`
}

// Token finds a configured token by symbol
func (c Config) Token(symbol string) (Token, error) {
	for _, t := range c.Tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, nil
		}
	}
	if strings.EqualFold(symbol, c.NativeSymbol) {
		return c.NativeToken(), nil
	}
	return Token{}, fmt.Errorf("%w: %s on %s", gerror.ErrTokenNotRegister, symbol, c.Name)
}

// NativeToken returns the gas currency of the network as a token
func (c Config) NativeToken() Token {
	for _, t := range c.Tokens {
		if t.Native {
			return t
		}
	}
	return Token{Symbol: c.NativeSymbol, Decimals: c.NativeDecimals, Native: true, Address: common.Address{}.Hex()}
}

// ValueDecimals returns the precision used for transaction values on the JSON-RPC endpoint
func (c Config) ValueDecimals() int32 {
	if c.RelayValueDecimals > 0 {
		return c.RelayValueDecimals
	}
	return c.NativeDecimals
}

// Validate checks the network is usable
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("network name is empty")
	}
	if c.NativeSymbol == "" || c.NativeDecimals <= 0 {
		return fmt.Errorf("network %s: native currency is not configured", c.Name)
	}
	switch c.Family {
	case FamilyEVM:
		if len(c.RPCURLs) == 0 {
			return fmt.Errorf("network %s: no rpc endpoint configured", c.Name)
		}
	case FamilyHedera:
		if len(c.MirrorURLs) == 0 {
			return fmt.Errorf("network %s: no mirror node endpoint configured", c.Name)
		}
	default:
		return fmt.Errorf("network %s: unknown family %q", c.Name, c.Family)
	}
	return nil
}

// Set is the collection of configured networks, indexed by name and chain id
type Set struct {
	byName    map[string]Config
	byChainID map[uint64]string
	names     []string
}

// NewSet validates and indexes the given networks
func NewSet(networks []Config) (*Set, error) {
	s := &Set{byName: make(map[string]Config), byChainID: make(map[uint64]string)}
	for _, n := range networks {
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if _, ok := s.byName[n.Name]; ok {
			return nil, fmt.Errorf("network %s configured twice", n.Name)
		}
		s.byName[n.Name] = n
		s.byChainID[n.ChainID] = n.Name
		s.names = append(s.names, n.Name)
	}
	return s, nil
}

// Get returns the network with the given name
func (s *Set) Get(name string) (Config, error) {
	n, ok := s.byName[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", gerror.ErrNetworkNotRegister, name)
	}
	return n, nil
}

// ByChainID resolves the destination chain id emitted by the bridge contract
func (s *Set) ByChainID(chainID uint64) (Config, error) {
	name, ok := s.byChainID[chainID]
	if !ok {
		return Config{}, fmt.Errorf("%w: chain id %d", gerror.ErrNetworkNotRegister, chainID)
	}
	return s.byName[name], nil
}

// ByWebhookNetwork resolves the network named by an address activity webhook
func (s *Set) ByWebhookNetwork(name string) (Config, error) {
	for _, n := range s.names {
		if c := s.byName[n]; c.WebhookNetwork != "" && strings.EqualFold(c.WebhookNetwork, name) {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: webhook network %s", gerror.ErrNetworkNotRegister, name)
}

// Names returns the network names in configuration order
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}
