package coinmiddleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/redisstorage"
)

const (
	defaultPriceAPI      = "https://api.coingecko.com/api/v3"
	defaultFetchInterval = 5 * time.Minute
	defaultFetchTimeout  = 10 * time.Second
	apiKeyHeader         = "x-cg-demo-api-key"
)

// PriceFetcher polls the simple/price endpoint for every configured token and stores
// the USD prices in redis, keyed by token symbol
type PriceFetcher struct {
	cfg        PriceFeedConfig
	storage    priceWriter
	httpClient *http.Client
	// ids maps a price id to the token symbols priced by it
	ids map[string][]string
}

// NewPriceFetcher collects the price ids of the tokens of every network
func NewPriceFetcher(cfg PriceFeedConfig, networks *network.Set, storage priceWriter) *PriceFetcher {
	if cfg.URL == "" {
		cfg.URL = defaultPriceAPI
	}
	if cfg.Interval.Duration <= 0 {
		cfg.Interval.Duration = defaultFetchInterval
	}
	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout.Duration = defaultFetchTimeout
	}
	ids := make(map[string][]string)
	seen := make(map[string]bool)
	for _, name := range networks.Names() {
		net, _ := networks.Get(name)
		for _, token := range net.Tokens {
			symbol := strings.ToUpper(token.Symbol)
			if token.PriceID == "" || seen[symbol] {
				continue
			}
			seen[symbol] = true
			ids[token.PriceID] = append(ids[token.PriceID], symbol)
		}
	}
	return &PriceFetcher{
		cfg:        cfg,
		storage:    storage,
		httpClient: &http.Client{Timeout: cfg.Timeout.Duration},
		ids:        ids,
	}
}

// Start fetches prices until ctx is done
func (f *PriceFetcher) Start(ctx context.Context) {
	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			log.Debug("price fetcher ctx done")
			return
		case <-time.After(wait):
			wait = f.cfg.Interval.Duration
			if err := f.Fetch(ctx); err != nil {
				log.Warnf("price fetch failed: %v", err)
			}
		}
	}
}

// Fetch requests the current prices once and stores them
func (f *PriceFetcher) Fetch(ctx context.Context) error {
	if len(f.ids) == 0 {
		return nil
	}
	idList := make([]string, 0, len(f.ids))
	for id := range f.ids {
		idList = append(idList, id)
	}
	sort.Strings(idList)

	query := url.Values{}
	query.Set("ids", strings.Join(idList, ","))
	query.Set("vs_currencies", "usd")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(f.cfg.URL, "/")+"/simple/price?"+query.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build price request")
	}
	req.Header.Set("Accept", "application/json")
	if f.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, f.cfg.APIKey)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "price request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price api status %d", resp.StatusCode)
	}
	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decode price response")
	}

	now := time.Now()
	var prices []redisstorage.TokenPrice
	for _, id := range idList {
		usd, ok := body[id]["usd"]
		if !ok {
			log.Infof("price api returned no price for %s", id)
			continue
		}
		for _, symbol := range f.ids[id] {
			prices = append(prices, redisstorage.TokenPrice{Symbol: symbol, USD: usd, UpdatedAt: now})
		}
	}
	log.Debugf("fetched %d token prices", len(prices))
	return f.storage.SetTokenPrices(ctx, prices)
}
