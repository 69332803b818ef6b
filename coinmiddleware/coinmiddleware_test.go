package coinmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/redisstorage"
)

type recordingWriter struct {
	prices []redisstorage.TokenPrice
}

func (w *recordingWriter) SetTokenPrices(ctx context.Context, prices []redisstorage.TokenPrice) error {
	w.prices = append(w.prices, prices...)
	return nil
}

func (w *recordingWriter) bySymbol() map[string]string {
	out := make(map[string]string)
	for _, p := range w.prices {
		out[p.Symbol] = p.USD.String()
	}
	return out
}

func TestHandleMessage(t *testing.T) {
	w := &recordingWriter{}
	h := &MessageHandler{storage: w}

	msg := &sarama.ConsumerMessage{Value: []byte(`{"data":{"id":"1","priceList":[
		{"symbol":"ETH","price":2500.25,"timestamp":1704067200000},
		{"symbol":"HBAR","price":0.07},
		{"chainId":8453,"tokenAddress":"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913","price":1}
	]}}`)}
	require.NoError(t, h.handleMessage(msg))
	require.Len(t, w.prices, 2)
	assert.Equal(t, "2500.25", w.prices[0].USD.String())
	assert.Equal(t, int64(1704067200000), w.prices[0].UpdatedAt.UnixMilli())
	assert.True(t, w.prices[1].UpdatedAt.IsZero())

	require.Error(t, h.handleMessage(&sarama.ConsumerMessage{Value: []byte(`{"topic":"prices"}`)}))
	require.Error(t, h.handleMessage(&sarama.ConsumerMessage{Value: []byte(`not json`)}))
}

func TestPriceFetcher(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		query = r.URL.Query().Get("ids")
		_, _ = rw.Write([]byte(`{"ethereum":{"usd":2500.5},"hedera-hashgraph":{"usd":0.0712},"usd-coin":{"usd":1}}`))
	}))
	defer srv.Close()

	base, err := network.Preset(network.Base)
	require.NoError(t, err)
	hedera, err := network.Preset(network.Hedera)
	require.NoError(t, err)
	set, err := network.NewSet([]network.Config{base, hedera})
	require.NoError(t, err)

	w := &recordingWriter{}
	f := NewPriceFetcher(PriceFeedConfig{URL: srv.URL, APIKey: "secret"}, set, w)
	require.NoError(t, f.Fetch(context.Background()))

	assert.Equal(t, "ethereum,hedera-hashgraph,usd-coin", query)
	assert.Equal(t, map[string]string{"ETH": "2500.5", "HBAR": "0.0712", "USDC": "1"}, w.bySymbol())
}

func TestPriceFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	base, err := network.Preset(network.Base)
	require.NoError(t, err)
	set, err := network.NewSet([]network.Config{base})
	require.NoError(t, err)

	w := &recordingWriter{}
	require.Error(t, NewPriceFetcher(PriceFeedConfig{URL: srv.URL}, set, w).Fetch(context.Background()))
	assert.Empty(t, w.prices)
}
