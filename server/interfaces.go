package server

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/liquidity"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/quote"
	"github.com/valtbridge/bridge-service/redisstorage"
	"github.com/valtbridge/bridge-service/synchronizer"
)

type quoteService interface {
	Quote(ctx context.Context, req quote.Request) (*quote.Quote, error)
	Bridge(ctx context.Context, req quote.Request) (*quote.Quote, error)
}

type depositLedger interface {
	GetByNonce(ctx context.Context, nonce string) (*models.Deposit, error)
	Requeue(ctx context.Context, nonce string) error
	List(ctx context.Context, statuses []models.DepositStatus, limit, offset uint) ([]*models.Deposit, error)
}

type liquidityLedger interface {
	Pools(ctx context.Context) ([]liquidity.PoolView, error)
	Pool(ctx context.Context, networkName string) (liquidity.PoolView, error)
	UserLiquidity(ctx context.Context, wallet string) ([]*models.LiquidityProvider, error)
	Withdraw(ctx context.Context, claimant, networkName string) (decimal.Decimal, error)
}

type feeRegister interface {
	FeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error)
	SetFeePct(ctx context.Context, pct decimal.Decimal, dbTx pgx.Tx) error
	LPFeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error)
	SetLPFeePct(ctx context.Context, pct decimal.Decimal, dbTx pgx.Tx) error
	TotalFee(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error)
}

type priceReader interface {
	GetTokenPrices(ctx context.Context, symbols []string) ([]redisstorage.TokenPrice, error)
}

// ActivityIngester reconciles pushed liquidity activities with the polled ones
type ActivityIngester interface {
	Process(ctx context.Context, activities []synchronizer.Activity) (models.Position, int, error)
}
