package feedistributor

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
)

type storageInterface interface {
	GetDepositByID(ctx context.Context, id uint64, dbTx pgx.Tx) (*models.Deposit, error)
	GetCompletedDepositsWithoutFee(ctx context.Context, limit uint, dbTx pgx.Tx) ([]*models.Deposit, error)
	GetFeeDistribution(ctx context.Context, depositID uint64, dbTx pgx.Tx) (*models.FeeDistribution, error)
	AddFeeDistribution(ctx context.Context, f *models.FeeDistribution, dbTx pgx.Tx) error
	GetActiveLPs(ctx context.Context, network string, dbTx pgx.Tx) ([]*models.LiquidityProvider, error)
	CreditLPProfit(ctx context.Context, lpID uint64, amount decimal.Decimal, dbTx pgx.Tx) error
	UpdatePool(ctx context.Context, network string, delta models.PoolDelta, dbTx pgx.Tx) error
	BeginDBTransaction(ctx context.Context) (pgx.Tx, error)
	Commit(ctx context.Context, dbTx pgx.Tx) error
	Rollback(ctx context.Context, dbTx pgx.Tx) error
}

type registryInterface interface {
	FeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error)
	LPFeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error)
	Increment(ctx context.Context, key string, delta decimal.Decimal, dbTx pgx.Tx) (decimal.Decimal, error)
}
