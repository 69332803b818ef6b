package releasetxman

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/messagepush"
	"github.com/valtbridge/bridge-service/metrics"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/precheck"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const (
	defaultMonitorFrequency = 5 * time.Second
	defaultTxTimeout        = 3 * time.Minute
	completeAttempts        = 3
	completeRetryDelay      = time.Second

	resultSuccess     = "success"
	resultDeclined    = "declined"
	resultError       = "error"
	resultUnconfirmed = "unconfirmed"
)

// release is a payout that was signed and handed to the network
type release struct {
	txHash     string
	path       models.ReleaseType
	nativeUsed decimal.Decimal
}

// ReleaseTxManager pays out the pending deposits of every destination network,
// one deposit at a time per network
type ReleaseTxManager struct {
	cfg       Config
	ledger    ledgerInterface
	fees      feeDistributorInterface
	liquidity liquidityInterface
	clients   map[string]PayoutClient
	locker    Locker
	producer  messagepush.KafkaProducer

	retryDelay time.Duration
}

// NewReleaseTxManager creates a payout manager. clients is indexed by network name.
// producer may be nil.
func NewReleaseTxManager(cfg Config, ledger ledgerInterface, fees feeDistributorInterface, liquidity liquidityInterface,
	clients map[string]PayoutClient, locker Locker, producer messagepush.KafkaProducer) (*ReleaseTxManager, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("no payout client configured")
	}
	if cfg.FrequencyToMonitorTxs.Duration <= 0 {
		cfg.FrequencyToMonitorTxs.Duration = defaultMonitorFrequency
	}
	if cfg.TxTimeout.Duration <= 0 {
		cfg.TxTimeout.Duration = defaultTxTimeout
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &ReleaseTxManager{
		cfg:        cfg,
		ledger:     ledger,
		fees:       fees,
		liquidity:  liquidity,
		clients:    clients,
		locker:     locker,
		producer:   producer,
		retryDelay: completeRetryDelay,
	}, nil
}

// Start runs one payout loop per network until ctx is done
func (tm *ReleaseTxManager) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for name := range tm.clients {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			tm.monitor(ctx, name)
		}(name)
	}
	wg.Wait()
}

func (tm *ReleaseTxManager) monitor(ctx context.Context, networkName string) {
	log.Infof("payout loop started for network %s", networkName)
	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			log.Debugf("payout loop of %s: ctx done", networkName)
			return
		case <-time.After(wait):
			wait = tm.cfg.FrequencyToMonitorTxs.Duration
			for ctx.Err() == nil {
				more, err := tm.ProcessNext(ctx, networkName)
				if err != nil {
					log.Errorf("payout loop of %s: %v", networkName, err)
					break
				}
				if !more {
					break
				}
			}
		}
	}
}

// ProcessNext pays out the least recently touched pending deposit of a network. It reports whether
// a deposit was completed, so that the caller can go on with the next one.
func (tm *ReleaseTxManager) ProcessNext(ctx context.Context, networkName string) (bool, error) {
	client, ok := tm.clients[networkName]
	if !ok {
		return false, fmt.Errorf("%w: no payout client for %s", gerror.ErrNetworkNotRegister, networkName)
	}
	unlock, err := tm.locker.Lock(ctx, "payout:"+networkName)
	if errors.Is(err, gerror.ErrLockNotAcquired) {
		log.Debugf("payouts of %s are handled by another worker", networkName)
		return false, nil
	} else if err != nil {
		return false, err
	}
	defer unlock()

	d, err := tm.ledger.NextPending(ctx, networkName)
	if errors.Is(err, gerror.ErrStorageNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return tm.release(ctx, client, d)
}

func (tm *ReleaseTxManager) release(ctx context.Context, client PayoutClient, d *models.Deposit) (bool, error) {
	net := client.Network()
	mTxLog := log.WithFields("depositID", d.ID, "nonce", d.Nonce, "network", net.Name)

	if d.ReleaseAttemptTxHash != "" {
		return tm.reconcile(ctx, client, d)
	}

	token, err := net.Token(d.TokenTo)
	if err != nil {
		return false, tm.fail(ctx, d, err, false)
	}

	callCtx, cancel := context.WithTimeout(ctx, tm.cfg.TxTimeout.Duration)
	defer cancel()
	res, err := precheck.Decide(callCtx, client, token, d.AmountOut, d.DestNativeAmount)
	if err != nil {
		metrics.RecordPayout(net.Name, "", resultError)
		return false, tm.fail(ctx, d, err, false)
	}
	if !res.CanProceed {
		metrics.RecordPayout(net.Name, "", resultDeclined)
		cause := gerror.ErrInsufficientLiquidity
		if res.Reason == precheck.ReasonNoLiquidityPath {
			cause = gerror.ErrNoLiquidityPath
		}
		mTxLog.Warnf("payout of %s %s declined: %s", res.Amount.String(), token.Symbol, res.Reason)
		return false, tm.ledger.Decline(ctx, d.ID, cause)
	}

	r := release{path: res.Path}
	switch res.Path {
	case models.ReleaseNativeTransfer:
		r.nativeUsed = res.Amount
	case models.ReleaseSwap:
		r.nativeUsed = res.FallbackNativeAmount
	}
	// Once the attempt is stored the payout may reach the chain, whatever the client returns
	attempted := false
	onSigned := func(txHash string) error {
		if err := tm.ledger.RecordReleaseAttempt(ctx, d.ID, txHash, r.path, r.nativeUsed); err != nil {
			return err
		}
		attempted = true
		return nil
	}

	switch res.Path {
	case models.ReleaseNativeTransfer:
		r.txHash, err = client.TransferNative(callCtx, d.Recipient, res.Amount, onSigned)
	case models.ReleaseTokenTransfer:
		r.txHash, err = client.TransferToken(callCtx, token, d.Recipient, res.Amount, onSigned)
	case models.ReleaseSwap:
		mTxLog.Infof("token balance too low, swapping %s %s for at least %s %s",
			res.FallbackNativeAmount.String(), net.NativeSymbol, res.MinOut.String(), token.Symbol)
		r.txHash, err = client.SwapNativeForToken(callCtx, token, res.FallbackNativeAmount, res.MinOut, d.Recipient, onSigned)
	default:
		err = fmt.Errorf("unknown payout path %q", res.Path)
	}
	if err != nil {
		onChain := attempted || errors.Is(err, gerror.ErrTxUnconfirmed) || errors.Is(err, gerror.ErrTxReverted)
		result := resultError
		if onChain {
			result = resultUnconfirmed
		}
		metrics.RecordPayout(net.Name, string(res.Path), result)
		return false, tm.fail(ctx, d, err, onChain)
	}
	metrics.RecordPayout(net.Name, string(res.Path), resultSuccess)
	mTxLog.Infof("payout %s executed by %s", r.txHash, res.Path)
	return tm.complete(ctx, d, r)
}

// reconcile settles a deposit whose payout was signed by an earlier attempt, possibly
// by another process. The payout is never sent again: it completes the deposit when the
// transaction succeeded and fails it otherwise.
func (tm *ReleaseTxManager) reconcile(ctx context.Context, client PayoutClient, d *models.Deposit) (bool, error) {
	mTxLog := log.WithFields("depositID", d.ID, "nonce", d.Nonce, "network", d.DestinationNetwork)
	r := release{txHash: d.ReleaseAttemptTxHash, path: d.ReleaseType, nativeUsed: d.ReleaseNativeUsed}

	callCtx, cancel := context.WithTimeout(ctx, tm.cfg.TxTimeout.Duration)
	defer cancel()
	state, err := client.TxState(callCtx, r.txHash)
	if err != nil {
		return false, fmt.Errorf("deposit %d: checking release attempt %s: %w", d.ID, r.txHash, err)
	}
	switch state {
	case models.TxStateSuccess:
		mTxLog.Infof("release attempt %s succeeded, recording completion", r.txHash)
		return tm.complete(ctx, d, r)
	case models.TxStatePending:
		mTxLog.Infof("release attempt %s is not mined yet", r.txHash)
		return false, nil
	case models.TxStateReverted:
		return false, tm.fail(ctx, d, fmt.Errorf("%w: tx %s", gerror.ErrTxReverted, r.txHash), true)
	default:
		return false, tm.fail(ctx, d, fmt.Errorf("%w: tx %s not found", gerror.ErrTxUnconfirmed, r.txHash), true)
	}
}

// complete records a payout that reached the chain, then books its side effects.
// When the ledger cannot be updated the deposit keeps its release attempt and the
// next cycle completes it from the on-chain receipt.
func (tm *ReleaseTxManager) complete(ctx context.Context, d *models.Deposit, r release) (bool, error) {
	mTxLog := log.WithFields("depositID", d.ID, "nonce", d.Nonce, "network", d.DestinationNetwork)
	var err error
	for i := 0; i < completeAttempts; i++ {
		if err = tm.ledger.Complete(ctx, d.ID, r.txHash, r.path); err == nil || errors.Is(err, gerror.ErrInvalidTransition) {
			break
		}
		mTxLog.Errorf("error recording payout %s, attempt %d: %v", r.txHash, i+1, err)
		select {
		case <-ctx.Done():
		case <-time.After(tm.retryDelay):
		}
	}
	if errors.Is(err, gerror.ErrInvalidTransition) {
		mTxLog.Warnf("payout %s not recorded: %v", r.txHash, err)
		return false, nil
	} else if err != nil {
		return false, err
	}

	if r.nativeUsed.IsPositive() {
		if err := tm.liquidity.DecreaseTVL(ctx, d.DestinationNetwork, r.nativeUsed); err != nil {
			mTxLog.Errorf("error decreasing tvl by %s: %v", r.nativeUsed.String(), err)
		}
	}
	if _, err := tm.fees.Distribute(ctx, d.ID); err != nil {
		mTxLog.Warnf("fee booking deferred to the sweep: %v", err)
	}
	if !d.UpdatedAt.IsZero() {
		metrics.RecordPayoutDuration(d.DestinationNetwork, time.Since(d.UpdatedAt))
	}
	d.Status, d.ReleaseTxHash, d.ReleaseType = models.DepositStatusCompleted, r.txHash, r.path
	tm.push(d, "")
	return true, nil
}

// fail records a failed attempt. Payouts that may have reached the chain fail the
// deposit at once, so that only an operator requeue pays it again.
func (tm *ReleaseTxManager) fail(ctx context.Context, d *models.Deposit, cause error, onChain bool) error {
	var (
		status models.DepositStatus
		err    error
	)
	if onChain {
		status, err = tm.ledger.FailNow(ctx, d.ID, cause)
	} else {
		status, err = tm.ledger.Fail(ctx, d.ID, cause)
	}
	if err != nil {
		return err
	}
	if status == models.DepositStatusFailed {
		d.Status = status
		tm.push(d, cause.Error())
	}
	return nil
}

func (tm *ReleaseTxManager) push(d *models.Deposit, cause string) {
	if tm.producer == nil {
		return
	}
	update := &messagepush.StatusUpdate{
		DepositID:          d.ID,
		Nonce:              d.Nonce,
		Status:             d.Status.String(),
		Recipient:          d.Recipient,
		SourceNetwork:      d.SourceNetwork,
		DestinationNetwork: d.DestinationNetwork,
		TokenTo:            d.TokenTo,
		AmountOut:          d.AmountOut.String(),
		ReleaseType:        string(d.ReleaseType),
		ReleaseTxHash:      d.ReleaseTxHash,
		Error:              cause,
		UpdatedAt:          time.Now(),
	}
	var err error
	if tm.cfg.StatusTopic != "" {
		err = tm.producer.PushStatusUpdate(update, messagepush.WithTopic(tm.cfg.StatusTopic))
	} else {
		err = tm.producer.PushStatusUpdate(update)
	}
	if err != nil {
		log.Warnf("deposit %d: error pushing status update: %v", d.ID, err)
	}
}
