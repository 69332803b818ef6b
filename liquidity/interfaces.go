package liquidity

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
)

type storageInterface interface {
	UpsertLP(ctx context.Context, wallet, network string, amount decimal.Decimal, dbTx pgx.Tx) (uint64, error)
	AddContribution(ctx context.Context, lpID uint64, c models.Contribution, dbTx pgx.Tx) (bool, error)
	ContributionExists(ctx context.Context, txID string, dbTx pgx.Tx) (bool, error)
	GetLP(ctx context.Context, wallet, network string, dbTx pgx.Tx) (*models.LiquidityProvider, error)
	GetLPsByWallet(ctx context.Context, wallet string, dbTx pgx.Tx) ([]*models.LiquidityProvider, error)
	ResetLPProfit(ctx context.Context, wallet, network string, dbTx pgx.Tx) (decimal.Decimal, error)
	EnsurePool(ctx context.Context, network, slug string, dbTx pgx.Tx) error
	GetPool(ctx context.Context, network string, dbTx pgx.Tx) (*models.Pool, error)
	GetPools(ctx context.Context, dbTx pgx.Tx) ([]*models.Pool, error)
	UpdatePool(ctx context.Context, network string, delta models.PoolDelta, dbTx pgx.Tx) error
	ResetPoolAdminFees(ctx context.Context, network string, dbTx pgx.Tx) (decimal.Decimal, error)
	AddWithdrawal(ctx context.Context, w *models.Withdrawal, dbTx pgx.Tx) (uint64, error)
	BeginDBTransaction(ctx context.Context) (pgx.Tx, error)
	Commit(ctx context.Context, dbTx pgx.Tx) error
	Rollback(ctx context.Context, dbTx pgx.Tx) error
}

type registryInterface interface {
	Increment(ctx context.Context, key string, delta decimal.Decimal, dbTx pgx.Tx) (decimal.Decimal, error)
}
