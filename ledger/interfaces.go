package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
)

type storageInterface interface {
	AddDeposit(ctx context.Context, d *models.Deposit, dbTx pgx.Tx) (uint64, error)
	GetDepositByNonce(ctx context.Context, nonce string, dbTx pgx.Tx) (*models.Deposit, error)
	GetDepositByNonceHash(ctx context.Context, nonceHash common.Hash, dbTx pgx.Tx) (*models.Deposit, error)
	GetDepositByID(ctx context.Context, id uint64, dbTx pgx.Tx) (*models.Deposit, error)
	ConfirmDeposit(ctx context.Context, nonceHash common.Hash, txHash string, dbTx pgx.Tx) (bool, error)
	GetNextPendingDeposit(ctx context.Context, network string, dbTx pgx.Tx) (*models.Deposit, error)
	CompleteDeposit(ctx context.Context, id uint64, releaseTxHash string, releaseType models.ReleaseType, dbTx pgx.Tx) (bool, error)
	SetDepositReleaseAttempt(ctx context.Context, id uint64, txHash string, releaseType models.ReleaseType, nativeUsed decimal.Decimal, dbTx pgx.Tx) (bool, error)
	RecordDepositDecline(ctx context.Context, id uint64, lastError string, dbTx pgx.Tx) (bool, error)
	RecordDepositFailure(ctx context.Context, id uint64, lastError string, maxRetries int, dbTx pgx.Tx) (models.DepositStatus, error)
	RequeueDeposit(ctx context.Context, nonce string, dbTx pgx.Tx) (bool, error)
	GetDepositsByStatus(ctx context.Context, statuses []models.DepositStatus, limit, offset uint, dbTx pgx.Tx) ([]*models.Deposit, error)
}
