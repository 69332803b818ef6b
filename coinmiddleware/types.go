package coinmiddleware

// PriceMessage is a record of the coin price topic
type PriceMessage struct {
	Data  *PriceBatch `json:"data"`
	Topic string      `json:"topic"`
}

// PriceBatch carries the USD prices of a feed update
type PriceBatch struct {
	ID     string        `json:"id"`
	Prices []*TokenQuote `json:"priceList"`
}

// TokenQuote is the USD price of one token. Quotes are stored by symbol, which is how
// bridge requests name tokens; ChainID and TokenAddress only identify the feed source.
type TokenQuote struct {
	ChainID      int64   `json:"chainId"`
	Symbol       string  `json:"symbol"`
	FullName     string  `json:"fullName"`
	TokenAddress string  `json:"tokenAddress"`
	USD          float64 `json:"price"`
	// Timestamp is in milliseconds
	Timestamp int64 `json:"timestamp"`
}
