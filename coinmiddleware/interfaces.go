package coinmiddleware

import (
	"context"

	"github.com/valtbridge/bridge-service/redisstorage"
)

type priceWriter interface {
	SetTokenPrices(ctx context.Context, prices []redisstorage.TokenPrice) error
}
