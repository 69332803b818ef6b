package quote

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/precheck"
	"github.com/valtbridge/bridge-service/redisstorage"
)

type priceReader interface {
	GetTokenPrice(ctx context.Context, symbol string) (redisstorage.TokenPrice, error)
}

type feeReader interface {
	FeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error)
}

type precheckInterface interface {
	Precheck(ctx context.Context, req precheck.Request) (precheck.Result, error)
	RequireAllowance(ctx context.Context, sourceNetwork, tokenSymbol, owner string, amount decimal.Decimal) (bool, error)
}

type depositCreator interface {
	Create(ctx context.Context, d *models.Deposit) (uint64, error)
}
