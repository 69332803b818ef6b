package network

import "fmt"

const (
	Hedera   = "hedera"
	Binance  = "binance"
	Ethereum = "ethereum"
	Optimism = "optimism"
	Base     = "base"
	Arbitrum = "arbitrum"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

//nolint:gomnd
var presets = map[string]Config{
	Hedera: {
		Name: Hedera, Slug: "hedera", Family: FamilyHedera, ChainID: 295,
		NativeSymbol: "HBAR", NativeDecimals: 8, RelayValueDecimals: 18,
		RPCURLs:        []string{"https://mainnet.hashio.io/api"},
		MirrorURLs:     []string{"https://mainnet-public.mirrornode.hedera.com"},
		BridgeContract: "0.0.10115692",
		Router:         "0x00000000000000000000000000000000002e7a5d",
		WrappedNative:  "0x0000000000000000000000000000000000163b5a",
		Mainnet:        true,
		Tokens: []Token{
			{Symbol: "HBAR", Address: zeroAddress, Decimals: 8, Native: true, PriceID: "hedera-hashgraph"},
			{Symbol: "USDC", Address: "0.0.456858", Decimals: 6, PriceID: "usd-coin"},
		},
	},
	Binance: {
		Name: Binance, Slug: "bsc", Family: FamilyEVM, ChainID: 56,
		NativeSymbol: "BNB", NativeDecimals: 18, Confirmations: 3,
		WebhookNetwork: "BSC_MAINNET",
		RPCURLs:        []string{"https://bsc.publicnode.com"},
		BridgeContract: "0x119d249246160028fcCCc8C3DF4a5a3C11dc9a6B",
		Router:         "0x10ED43C718714eb63d5aA57B78B54704E256024E",
		WrappedNative:  "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c",
		Tokens: []Token{
			{Symbol: "BNB", Address: zeroAddress, Decimals: 18, Native: true, PriceID: "binancecoin"},
			{Symbol: "USDC", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", Decimals: 18, PriceID: "usd-coin"},
		},
	},
	Ethereum: {
		Name: Ethereum, Slug: "ethereum", Family: FamilyEVM, ChainID: 1,
		NativeSymbol: "ETH", NativeDecimals: 18, Confirmations: 6,
		WebhookNetwork: "ETH_MAINNET",
		RPCURLs:        []string{"https://ethereum-rpc.publicnode.com"},
		BridgeContract: "0xe179c49A5006EB738A242813A6C5BDe46a54Fc5C",
		Router:         "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		WrappedNative:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Tokens: []Token{
			{Symbol: "ETH", Address: zeroAddress, Decimals: 18, Native: true, PriceID: "ethereum"},
			{Symbol: "WBTC", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8, PriceID: "wrapped-bitcoin"},
			{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, PriceID: "usd-coin"},
			{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6, PriceID: "tether"},
		},
	},
	Optimism: {
		Name: Optimism, Slug: "optimism", Family: FamilyEVM, ChainID: 10,
		NativeSymbol: "ETH", NativeDecimals: 18, Confirmations: 3,
		WebhookNetwork: "OPT_MAINNET",
		RPCURLs:        []string{"https://optimism-rpc.publicnode.com"},
		BridgeContract: "0x119d249246160028fcCCc8C3DF4a5a3C11dc9a6B",
		Router:         "0x4A7b5Da61326A6379179b40d00F57E5bbDC962c2",
		WrappedNative:  "0x4200000000000000000000000000000000000006",
		Tokens: []Token{
			{Symbol: "ETH", Address: zeroAddress, Decimals: 18, Native: true, PriceID: "ethereum"},
			{Symbol: "USDC", Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", Decimals: 6, PriceID: "usd-coin"},
		},
	},
	Base: {
		Name: Base, Slug: "base", Family: FamilyEVM, ChainID: 8453,
		NativeSymbol: "ETH", NativeDecimals: 18, Confirmations: 3,
		WebhookNetwork: "BASE_MAINNET",
		RPCURLs:        []string{"https://base-rpc.publicnode.com"},
		BridgeContract: "0xe179c49A5006EB738A242813A6C5BDe46a54Fc5C",
		Router:         "0x4752ba5dbc23f44d87826276bf6fd6b1c372ad24",
		WrappedNative:  "0x4200000000000000000000000000000000000006",
		Tokens: []Token{
			{Symbol: "ETH", Address: zeroAddress, Decimals: 18, Native: true, PriceID: "ethereum"},
			{Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6, PriceID: "usd-coin"},
		},
	},
	Arbitrum: {
		Name: Arbitrum, Slug: "arbitrum", Family: FamilyEVM, ChainID: 42161,
		NativeSymbol: "ETH", NativeDecimals: 18, Confirmations: 3,
		WebhookNetwork: "ARB_MAINNET",
		RPCURLs:        []string{"https://arbitrum-one-rpc.publicnode.com"},
		BridgeContract: "0x119d249246160028fcCCc8C3DF4a5a3C11dc9a6B",
		Router:         "0x4752ba5dbc23f44d87826276bf6fd6b1c372ad24",
		WrappedNative:  "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1",
		Tokens: []Token{
			{Symbol: "ETH", Address: zeroAddress, Decimals: 18, Native: true, PriceID: "ethereum"},
			{Symbol: "USDC", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6, PriceID: "usd-coin"},
		},
	},
}

// Preset returns a copy of a predefined network
func Preset(name string) (Config, error) {
	c, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown network preset %q", name)
	}
	c.Tokens = append([]Token(nil), c.Tokens...)
	c.RPCURLs = append([]string(nil), c.RPCURLs...)
	c.MirrorURLs = append([]string(nil), c.MirrorURLs...)
	return c, nil
}
