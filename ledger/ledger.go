package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/utils"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const defaultMaxRetries = 3

// Ledger is the record of every bridge request and owns its status transitions:
// none -> pending -> completed, pending -> failed and failed -> pending.
type Ledger struct {
	storage    storageInterface
	maxRetries int
}

// NewLedger creates a deposit ledger. A pending deposit moves to failed after maxRetries
// failed payout attempts.
func NewLedger(storage interface{}, maxRetries int) *Ledger {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Ledger{storage: storage.(storageInterface), maxRetries: maxRetries}
}

// Create records a prechecked bridge request with status none. The nonce hash is
// derived from the nonce when not set, and must match it otherwise.
func (l *Ledger) Create(ctx context.Context, d *models.Deposit) (uint64, error) {
	if d.Nonce == "" {
		return 0, fmt.Errorf("deposit without nonce")
	}
	hash := utils.NonceHash(d.Nonce)
	if d.NonceHash == (common.Hash{}) {
		d.NonceHash = hash
	} else if d.NonceHash != hash {
		return 0, fmt.Errorf("nonce hash %s does not match nonce %s", d.NonceHash.Hex(), d.Nonce)
	}
	d.Status = models.DepositStatusNone
	id, err := l.storage.AddDeposit(ctx, d, nil)
	if err != nil {
		return 0, err
	}
	d.ID = id
	log.WithFields("depositID", id, "nonce", d.Nonce).Debugf("deposit created: %s %s on %s -> %s %s on %s",
		d.AmountIn.String(), d.TokenFrom, d.SourceNetwork, d.AmountOut.String(), d.TokenTo, d.DestinationNetwork)
	return id, nil
}

// ConfirmDeposit moves the request matching an on-chain deposit event from none to
// pending. Duplicate events, unknown nonce hashes and events emitted on another network
// than the one the request was made for are logged and ignored.
func (l *Ledger) ConfirmDeposit(ctx context.Context, event models.BridgeDeposit) error {
	d, err := l.storage.GetDepositByNonceHash(ctx, event.NonceHash, nil)
	if errors.Is(err, gerror.ErrStorageNotFound) {
		log.Warnf("deposit event %s on %s: unknown nonce hash %s, ignored", event.TxHash, event.SourceNetwork, event.NonceHash.Hex())
		return nil
	} else if err != nil {
		return err
	}
	logger := log.WithFields("depositID", d.ID, "nonce", d.Nonce)
	if d.Status != models.DepositStatusNone {
		logger.Debugf("deposit already %s, event %s ignored", d.Status, event.TxHash)
		return nil
	}
	if event.SourceNetwork != "" && !strings.EqualFold(event.SourceNetwork, d.SourceNetwork) {
		logger.Warnf("deposit event %s emitted on %s but the request was made for %s, ignored", event.TxHash, event.SourceNetwork, d.SourceNetwork)
		return nil
	}
	confirmed, err := l.storage.ConfirmDeposit(ctx, event.NonceHash, event.TxHash, nil)
	if err != nil {
		return err
	}
	if confirmed {
		logger.Infof("deposit confirmed by tx %s, pending payout on %s", event.TxHash, d.DestinationNetwork)
	}
	return nil
}

// Complete moves a pending deposit to completed, together with its release tx hash
func (l *Ledger) Complete(ctx context.Context, id uint64, releaseTxHash string, releaseType models.ReleaseType) error {
	if releaseTxHash == "" {
		return fmt.Errorf("%w: deposit %d completed without release tx", gerror.ErrInvalidTransition, id)
	}
	completed, err := l.storage.CompleteDeposit(ctx, id, releaseTxHash, releaseType, nil)
	if err != nil {
		return err
	}
	if !completed {
		return fmt.Errorf("%w: deposit %d is not pending", gerror.ErrInvalidTransition, id)
	}
	log.WithFields("depositID", id).Infof("deposit completed by %s %s", releaseType, releaseTxHash)
	return nil
}

// RecordReleaseAttempt stores the hash of a signed payout on a pending deposit. It must
// succeed before the payout is broadcast, so that a restarted worker finds the attempt
// and checks it on-chain instead of paying again.
func (l *Ledger) RecordReleaseAttempt(ctx context.Context, id uint64, txHash string, releaseType models.ReleaseType, nativeUsed decimal.Decimal) error {
	if txHash == "" {
		return fmt.Errorf("deposit %d: release attempt without tx hash", id)
	}
	recorded, err := l.storage.SetDepositReleaseAttempt(ctx, id, txHash, releaseType, nativeUsed, nil)
	if err != nil {
		return err
	}
	if !recorded {
		return fmt.Errorf("%w: deposit %d is not pending or already has a release attempt", gerror.ErrInvalidTransition, id)
	}
	log.WithFields("depositID", id).Debugf("release attempt %s recorded", txHash)
	return nil
}

// Decline records why a pending deposit cannot be paid out yet. Its status and retries
// do not change, so it is tried again once liquidity comes back.
func (l *Ledger) Decline(ctx context.Context, id uint64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	declined, err := l.storage.RecordDepositDecline(ctx, id, msg, nil)
	if err != nil {
		return err
	}
	if !declined {
		return fmt.Errorf("%w: deposit %d is not pending", gerror.ErrInvalidTransition, id)
	}
	return nil
}

// Fail records a failed payout attempt. The deposit stays pending until the retries
// are exhausted and then moves to failed. The resulting status is returned.
func (l *Ledger) Fail(ctx context.Context, id uint64, cause error) (models.DepositStatus, error) {
	return l.fail(ctx, id, cause, l.maxRetries)
}

// FailNow moves a pending deposit to failed regardless of its retries. It is used when
// a payout may have reached the chain, so that only an operator can requeue it.
func (l *Ledger) FailNow(ctx context.Context, id uint64, cause error) (models.DepositStatus, error) {
	return l.fail(ctx, id, cause, 1)
}

func (l *Ledger) fail(ctx context.Context, id uint64, cause error, maxRetries int) (models.DepositStatus, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	status, err := l.storage.RecordDepositFailure(ctx, id, msg, maxRetries, nil)
	if errors.Is(err, gerror.ErrStorageNotFound) {
		return "", fmt.Errorf("%w: deposit %d is not pending", gerror.ErrInvalidTransition, id)
	} else if err != nil {
		return "", err
	}
	logger := log.WithFields("depositID", id)
	if status == models.DepositStatusFailed {
		logger.Errorf("deposit failed: %s", msg)
	} else {
		logger.Warnf("payout attempt failed, deposit stays pending: %s", msg)
	}
	return status, nil
}

// Requeue moves a failed deposit back to pending. Its release attempt is dropped, the
// operator having checked that it did not pay the recipient.
func (l *Ledger) Requeue(ctx context.Context, nonce string) error {
	requeued, err := l.storage.RequeueDeposit(ctx, nonce, nil)
	if err != nil {
		return err
	}
	if !requeued {
		return fmt.Errorf("%w: deposit %s is not failed", gerror.ErrInvalidTransition, nonce)
	}
	log.WithFields("nonce", nonce).Info("deposit requeued")
	return nil
}

// GetByNonce returns the bridge request with the given nonce
func (l *Ledger) GetByNonce(ctx context.Context, nonce string) (*models.Deposit, error) {
	return l.storage.GetDepositByNonce(ctx, nonce, nil)
}

// GetByID returns the bridge request with the given id
func (l *Ledger) GetByID(ctx context.Context, id uint64) (*models.Deposit, error) {
	return l.storage.GetDepositByID(ctx, id, nil)
}

// NextPending returns the least recently touched pending deposit paid out on network.
// gerror.ErrStorageNotFound is returned when there is none.
func (l *Ledger) NextPending(ctx context.Context, network string) (*models.Deposit, error) {
	return l.storage.GetNextPendingDeposit(ctx, network, nil)
}

// List returns the deposits in any of the given statuses
func (l *Ledger) List(ctx context.Context, statuses []models.DepositStatus, limit, offset uint) ([]*models.Deposit, error) {
	return l.storage.GetDepositsByStatus(ctx, statuses, limit, offset, nil)
}
