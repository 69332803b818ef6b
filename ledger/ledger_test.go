package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/utils"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

// memStorage mirrors the guarded updates of the postgres storage
type memStorage struct {
	deposits []*models.Deposit
}

func (m *memStorage) find(match func(d *models.Deposit) bool) (*models.Deposit, error) {
	for _, d := range m.deposits {
		if match(d) {
			c := *d
			return &c, nil
		}
	}
	return nil, gerror.ErrStorageNotFound
}

func (m *memStorage) AddDeposit(ctx context.Context, d *models.Deposit, dbTx pgx.Tx) (uint64, error) {
	for _, e := range m.deposits {
		if e.Nonce == d.Nonce || e.NonceHash == d.NonceHash {
			return 0, gerror.ErrAlreadyExists
		}
	}
	c := *d
	c.ID = uint64(len(m.deposits) + 1)
	m.deposits = append(m.deposits, &c)
	return c.ID, nil
}

func (m *memStorage) GetDepositByNonce(ctx context.Context, nonce string, dbTx pgx.Tx) (*models.Deposit, error) {
	return m.find(func(d *models.Deposit) bool { return d.Nonce == nonce })
}

func (m *memStorage) GetDepositByNonceHash(ctx context.Context, nonceHash common.Hash, dbTx pgx.Tx) (*models.Deposit, error) {
	return m.find(func(d *models.Deposit) bool { return d.NonceHash == nonceHash })
}

func (m *memStorage) GetDepositByID(ctx context.Context, id uint64, dbTx pgx.Tx) (*models.Deposit, error) {
	return m.find(func(d *models.Deposit) bool { return d.ID == id })
}

func (m *memStorage) ConfirmDeposit(ctx context.Context, nonceHash common.Hash, txHash string, dbTx pgx.Tx) (bool, error) {
	for _, d := range m.deposits {
		if d.NonceHash == nonceHash && d.Status == models.DepositStatusNone {
			d.Status, d.TxHash = models.DepositStatusPending, txHash
			return true, nil
		}
	}
	return false, nil
}

func (m *memStorage) GetNextPendingDeposit(ctx context.Context, network string, dbTx pgx.Tx) (*models.Deposit, error) {
	return m.find(func(d *models.Deposit) bool {
		return d.DestinationNetwork == network && d.Status == models.DepositStatusPending
	})
}

func (m *memStorage) CompleteDeposit(ctx context.Context, id uint64, releaseTxHash string, releaseType models.ReleaseType, dbTx pgx.Tx) (bool, error) {
	for _, d := range m.deposits {
		if d.ID == id && d.Status == models.DepositStatusPending {
			d.Status, d.ReleaseTxHash, d.ReleaseType = models.DepositStatusCompleted, releaseTxHash, releaseType
			return true, nil
		}
	}
	return false, nil
}

func (m *memStorage) SetDepositReleaseAttempt(ctx context.Context, id uint64, txHash string, releaseType models.ReleaseType,
	nativeUsed decimal.Decimal, dbTx pgx.Tx) (bool, error) {
	for _, d := range m.deposits {
		if d.ID == id && d.Status == models.DepositStatusPending && d.ReleaseAttemptTxHash == "" {
			d.ReleaseAttemptTxHash, d.ReleaseType, d.ReleaseNativeUsed = txHash, releaseType, nativeUsed
			return true, nil
		}
	}
	return false, nil
}

func (m *memStorage) RecordDepositDecline(ctx context.Context, id uint64, lastError string, dbTx pgx.Tx) (bool, error) {
	for _, d := range m.deposits {
		if d.ID == id && d.Status == models.DepositStatusPending {
			d.LastError = lastError
			return true, nil
		}
	}
	return false, nil
}

func (m *memStorage) RecordDepositFailure(ctx context.Context, id uint64, lastError string, maxRetries int, dbTx pgx.Tx) (models.DepositStatus, error) {
	for _, d := range m.deposits {
		if d.ID == id && d.Status == models.DepositStatusPending {
			d.Retries++
			d.LastError = lastError
			if d.Retries >= maxRetries {
				d.Status = models.DepositStatusFailed
			}
			return d.Status, nil
		}
	}
	return "", gerror.ErrStorageNotFound
}

func (m *memStorage) RequeueDeposit(ctx context.Context, nonce string, dbTx pgx.Tx) (bool, error) {
	for _, d := range m.deposits {
		if d.Nonce == nonce && d.Status == models.DepositStatusFailed {
			d.Status, d.Retries = models.DepositStatusPending, 0
			d.ReleaseAttemptTxHash, d.ReleaseType, d.ReleaseNativeUsed = "", "", decimal.Zero
			return true, nil
		}
	}
	return false, nil
}

func (m *memStorage) GetDepositsByStatus(ctx context.Context, statuses []models.DepositStatus, limit, offset uint, dbTx pgx.Tx) ([]*models.Deposit, error) {
	var out []*models.Deposit
	for _, d := range m.deposits {
		for _, s := range statuses {
			if d.Status == s {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func newDeposit(nonce string) *models.Deposit {
	return &models.Deposit{
		Nonce:              nonce,
		Depositor:          "0x00000000000000000000000000000000000000a1",
		Recipient:          "0x00000000000000000000000000000000000000b2",
		TokenFrom:          "ETH",
		TokenTo:            "USDC",
		AmountIn:           decimal.RequireFromString("0.02"),
		AmountOut:          decimal.RequireFromString("50"),
		SourceNetwork:      "ethereum",
		DestinationNetwork: "base",
	}
}

func event(nonce, network string) models.BridgeDeposit {
	return models.BridgeDeposit{NonceHash: utils.NonceHash(nonce), SourceNetwork: network, TxHash: "0xdeposit"}
}

func TestConfirmIsIdempotent(t *testing.T) {
	storage := &memStorage{}
	l := NewLedger(storage, 3)
	ctx := context.Background()

	id, err := l.Create(ctx, newDeposit("n-1"))
	require.NoError(t, err)
	d, err := l.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusNone, d.Status)
	assert.Equal(t, utils.NonceHash("n-1"), d.NonceHash)

	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")))
	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")))
	d, err = l.GetByNonce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, d.Status)
	assert.Equal(t, "0xdeposit", d.TxHash)

	require.NoError(t, l.Complete(ctx, id, "0xrelease", models.ReleaseTokenTransfer))
	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")), "late duplicate is a no-op")
	d, err = l.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusCompleted, d.Status)
	assert.Equal(t, "0xrelease", d.ReleaseTxHash)
}

func TestConfirmIgnoresUnknownAndForeignEvents(t *testing.T) {
	storage := &memStorage{}
	l := NewLedger(storage, 3)
	ctx := context.Background()
	_, err := l.Create(ctx, newDeposit("n-1"))
	require.NoError(t, err)

	require.NoError(t, l.ConfirmDeposit(ctx, event("unknown", "ethereum")))
	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "binance")))
	d, err := l.GetByNonce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusNone, d.Status)
}

func TestNoCompletionWithoutConfirmation(t *testing.T) {
	l := NewLedger(&memStorage{}, 3)
	ctx := context.Background()
	id, err := l.Create(ctx, newDeposit("n-1"))
	require.NoError(t, err)

	err = l.Complete(ctx, id, "0xrelease", models.ReleaseNativeTransfer)
	require.ErrorIs(t, err, gerror.ErrInvalidTransition)

	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")))
	err = l.Complete(ctx, id, "", models.ReleaseNativeTransfer)
	require.ErrorIs(t, err, gerror.ErrInvalidTransition)

	d, err := l.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, d.Status)
	assert.Empty(t, d.ReleaseTxHash)
}

func TestFailAndRequeue(t *testing.T) {
	l := NewLedger(&memStorage{}, 2)
	ctx := context.Background()
	id, err := l.Create(ctx, newDeposit("n-1"))
	require.NoError(t, err)
	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")))

	status, err := l.Fail(ctx, id, errors.New("rpc down"))
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, status)
	status, err = l.Fail(ctx, id, errors.New("rpc down"))
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusFailed, status)

	_, err = l.Fail(ctx, id, errors.New("again"))
	require.ErrorIs(t, err, gerror.ErrInvalidTransition)

	failed, err := l.List(ctx, []models.DepositStatus{models.DepositStatusFailed}, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "rpc down", failed[0].LastError)

	require.NoError(t, l.Requeue(ctx, "n-1"))
	require.ErrorIs(t, l.Requeue(ctx, "n-1"), gerror.ErrInvalidTransition)
	next, err := l.NextPending(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, id, next.ID)
	assert.Equal(t, 0, next.Retries)

	status, err = l.FailNow(ctx, id, errors.New("receipt timeout"))
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusFailed, status)
}

func TestDeclineKeepsRetries(t *testing.T) {
	l := NewLedger(&memStorage{}, 1)
	ctx := context.Background()
	id, err := l.Create(ctx, newDeposit("n-1"))
	require.NoError(t, err)
	require.ErrorIs(t, l.Decline(ctx, id, gerror.ErrInsufficientLiquidity), gerror.ErrInvalidTransition)
	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")))

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Decline(ctx, id, gerror.ErrInsufficientLiquidity))
	}
	d, err := l.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, d.Status)
	assert.Equal(t, 0, d.Retries)
	assert.Equal(t, gerror.ErrInsufficientLiquidity.Error(), d.LastError)
}

func TestReleaseAttemptIsRecordedOnce(t *testing.T) {
	l := NewLedger(&memStorage{}, 3)
	ctx := context.Background()
	id, err := l.Create(ctx, newDeposit("n-1"))
	require.NoError(t, err)
	require.NoError(t, l.ConfirmDeposit(ctx, event("n-1", "ethereum")))

	require.NoError(t, l.RecordReleaseAttempt(ctx, id, "0xsigned", models.ReleaseNativeTransfer, decimal.NewFromInt(5)))
	err = l.RecordReleaseAttempt(ctx, id, "0xother", models.ReleaseNativeTransfer, decimal.NewFromInt(5))
	require.ErrorIs(t, err, gerror.ErrInvalidTransition)

	d, err := l.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "0xsigned", d.ReleaseAttemptTxHash)
	assert.True(t, d.ReleaseNativeUsed.Equal(decimal.NewFromInt(5)))

	_, err = l.FailNow(ctx, id, gerror.ErrTxUnconfirmed)
	require.NoError(t, err)
	require.NoError(t, l.Requeue(ctx, "n-1"))
	d, err = l.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, d.ReleaseAttemptTxHash)
}

func TestCreateChecksNonceHash(t *testing.T) {
	l := NewLedger(&memStorage{}, 3)
	d := newDeposit("n-1")
	d.NonceHash = utils.NonceHash("other")
	_, err := l.Create(context.Background(), d)
	require.Error(t, err)

	_, err = l.Create(context.Background(), newDeposit("n-2"))
	require.NoError(t, err)
	_, err = l.Create(context.Background(), newDeposit("n-2"))
	require.ErrorIs(t, err, gerror.ErrAlreadyExists)
}
