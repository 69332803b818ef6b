package releasetxman

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/precheck"
)

// PayoutClient moves funds out of the pool of a network. The payout methods call
// onSigned with the hash of the signed transaction before broadcasting it, and must not
// broadcast when it fails.
type PayoutClient interface {
	precheck.LiquidityReader
	TransferNative(ctx context.Context, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error)
	TransferToken(ctx context.Context, token network.Token, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error)
	SwapNativeForToken(ctx context.Context, token network.Token, nativeAmount, minOut decimal.Decimal, to string, onSigned models.BeforeBroadcast) (string, error)
	TxState(ctx context.Context, txHash string) (models.TxState, error)
}

type ledgerInterface interface {
	NextPending(ctx context.Context, network string) (*models.Deposit, error)
	RecordReleaseAttempt(ctx context.Context, id uint64, txHash string, releaseType models.ReleaseType, nativeUsed decimal.Decimal) error
	Decline(ctx context.Context, id uint64, cause error) error
	Complete(ctx context.Context, id uint64, releaseTxHash string, releaseType models.ReleaseType) error
	Fail(ctx context.Context, id uint64, cause error) (models.DepositStatus, error)
	FailNow(ctx context.Context, id uint64, cause error) (models.DepositStatus, error)
}

type feeDistributorInterface interface {
	Distribute(ctx context.Context, depositID uint64) (bool, error)
}

type liquidityInterface interface {
	DecreaseTVL(ctx context.Context, network string, amount decimal.Decimal) error
}

type lockStorage interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}
