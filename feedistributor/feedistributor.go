package feedistributor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/metrics"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/registry"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

// Policy is applied to the LP share of a fee when no LP is active on the network
type Policy string

const (
	// PolicyAdmin adds the LP share to the admin accumulator
	PolicyAdmin Policy = "admin"
	// PolicyRetain keeps the LP share in the pool reserve for later distribution
	PolicyRetain Policy = "retain"
	// PolicyDrop books the LP share nowhere
	PolicyDrop Policy = "drop"
)

const (
	sharePrecision      = 18
	defaultSweepBatch   = 100
	defaultSweepPeriod  = time.Minute
	divisionGuardDigits = 6
)

var hundred = decimal.NewFromInt(100) //nolint:gomnd

// Split is the breakdown of the fee of a completed deposit
type Split struct {
	FeeAmount  decimal.Decimal
	AdminShare decimal.Decimal
	LPPool     decimal.Decimal
}

// ComputeFee derives the fee charged on top of a net payout. net is the amount received
// after the fee, so fee = net * p/100 / (1 - p/100). adminShare + lpPool == fee exactly.
func ComputeFee(net, feePct, lpFeePct decimal.Decimal) Split {
	if !net.IsPositive() || !feePct.IsPositive() || feePct.GreaterThanOrEqual(hundred) {
		return Split{FeeAmount: decimal.Zero, AdminShare: decimal.Zero, LPPool: decimal.Zero}
	}
	fee := net.Mul(feePct).DivRound(hundred.Sub(feePct), sharePrecision)
	lpPool := fee.Mul(lpFeePct).Shift(-2).Truncate(sharePrecision) //nolint:gomnd
	return Split{FeeAmount: fee, AdminShare: fee.Sub(lpPool), LPPool: lpPool}
}

// Shares splits lpPool between LPs pro rata to their amount. Each share is rounded
// down and the last LP receives the remainder, so the shares always add up to lpPool.
func Shares(lps []*models.LiquidityProvider, lpPool decimal.Decimal) []decimal.Decimal {
	total := decimal.Zero
	for _, lp := range lps {
		total = total.Add(lp.Amount)
	}
	shares := make([]decimal.Decimal, len(lps))
	if !total.IsPositive() {
		return shares
	}
	credited := decimal.Zero
	for i, lp := range lps {
		if i == len(lps)-1 {
			shares[i] = lpPool.Sub(credited)
			break
		}
		shares[i] = lp.Amount.Mul(lpPool).DivRound(total, sharePrecision+divisionGuardDigits).Truncate(sharePrecision)
		credited = credited.Add(shares[i])
	}
	return shares
}

// FeeDistributor books the fee of completed deposits, once per deposit
type FeeDistributor struct {
	cfg      Config
	storage  storageInterface
	registry registryInterface
}

// NewFeeDistributor creates a fee distributor
func NewFeeDistributor(cfg Config, storage interface{}, reg registryInterface) (*FeeDistributor, error) {
	switch cfg.ZeroLiquidityPolicy {
	case "":
		cfg.ZeroLiquidityPolicy = PolicyAdmin
	case PolicyAdmin, PolicyRetain, PolicyDrop:
	default:
		return nil, fmt.Errorf("unknown zero liquidity policy %q", cfg.ZeroLiquidityPolicy)
	}
	if cfg.SweepBatchSize == 0 {
		cfg.SweepBatchSize = defaultSweepBatch
	}
	return &FeeDistributor{cfg: cfg, storage: storage.(storageInterface), registry: reg}, nil
}

// Distribute books the fee of a completed deposit: the admin share goes to the admin
// accumulators and the LP pool is credited to the active LPs of the destination network.
// It reports false when the fee of the deposit was already booked.
func (f *FeeDistributor) Distribute(ctx context.Context, depositID uint64) (bool, error) {
	dbTx, err := f.storage.BeginDBTransaction(ctx)
	if err != nil {
		return false, err
	}
	booked, network, split, err := f.distribute(ctx, depositID, dbTx)
	if err != nil || !booked {
		rollbackErr := f.storage.Rollback(ctx, dbTx)
		if rollbackErr != nil {
			log.Errorf("deposit %d: error rolling back fee distribution. RollbackErr: %v, err: %v", depositID, rollbackErr, err)
		}
		return false, err
	}
	if err := f.storage.Commit(ctx, dbTx); err != nil {
		log.Errorf("deposit %d: error committing fee distribution: %v", depositID, err)
		if rollbackErr := f.storage.Rollback(ctx, dbTx); rollbackErr != nil {
			log.Errorf("deposit %d: error rolling back fee distribution. RollbackErr: %v", depositID, rollbackErr)
		}
		return false, err
	}
	log.WithFields("depositID", depositID, "network", network).
		Infof("fee booked: %s (admin %s, lps %s)", split.FeeAmount.String(), split.AdminShare.String(), split.LPPool.String())
	metrics.RecordFeeDistributed(network, split.FeeAmount.InexactFloat64())
	return true, nil
}

func (f *FeeDistributor) distribute(ctx context.Context, depositID uint64, dbTx pgx.Tx) (bool, string, Split, error) {
	d, err := f.storage.GetDepositByID(ctx, depositID, dbTx)
	if err != nil {
		return false, "", Split{}, err
	}
	if d.Status != models.DepositStatusCompleted {
		return false, d.DestinationNetwork, Split{}, fmt.Errorf("%w: deposit %d is %s", gerror.ErrInvalidTransition, depositID, d.Status)
	}
	if _, err := f.storage.GetFeeDistribution(ctx, depositID, dbTx); err == nil {
		log.Debugf("deposit %d: fee already booked", depositID)
		return false, d.DestinationNetwork, Split{}, nil
	} else if !errors.Is(err, gerror.ErrStorageNotFound) {
		return false, d.DestinationNetwork, Split{}, err
	}

	feePct, err := f.registry.FeePct(ctx, dbTx)
	if err != nil {
		return false, d.DestinationNetwork, Split{}, err
	}
	lpFeePct, err := f.registry.LPFeePct(ctx, dbTx)
	if err != nil {
		return false, d.DestinationNetwork, Split{}, err
	}
	split := ComputeFee(netAmount(d), feePct, lpFeePct)

	lps, err := f.storage.GetActiveLPs(ctx, d.DestinationNetwork, dbTx)
	if err != nil {
		return false, d.DestinationNetwork, split, err
	}
	delta := models.PoolDelta{FeesGenerated: split.FeeAmount, Profit: split.FeeAmount, AdminFees: split.AdminShare}
	adminTotal := split.AdminShare
	shares := Shares(lps, split.LPPool)
	distributed := false
	for i, lp := range lps {
		if shares[i].IsZero() {
			continue
		}
		if err := f.storage.CreditLPProfit(ctx, lp.ID, shares[i], dbTx); err != nil {
			return false, d.DestinationNetwork, split, err
		}
		distributed = true
	}
	if !distributed && split.LPPool.IsPositive() {
		switch f.cfg.ZeroLiquidityPolicy {
		case PolicyAdmin:
			delta.AdminFees = delta.AdminFees.Add(split.LPPool)
			adminTotal = adminTotal.Add(split.LPPool)
		case PolicyRetain:
			delta.RetainedLPFees = split.LPPool
		case PolicyDrop:
		}
		log.Infof("deposit %d: no active liquidity on %s, lp share %s handled by policy %s",
			depositID, d.DestinationNetwork, split.LPPool.String(), f.cfg.ZeroLiquidityPolicy)
	}

	if _, err := f.registry.Increment(ctx, registry.KeyTotalFee, adminTotal, dbTx); err != nil {
		return false, d.DestinationNetwork, split, err
	}
	if err := f.storage.UpdatePool(ctx, d.DestinationNetwork, delta, dbTx); err != nil {
		return false, d.DestinationNetwork, split, err
	}
	err = f.storage.AddFeeDistribution(ctx, &models.FeeDistribution{
		DepositID:     depositID,
		Network:       d.DestinationNetwork,
		FeeAmount:     split.FeeAmount,
		AdminShare:    split.AdminShare,
		LPPool:        split.LPPool,
		LPDistributed: distributed,
	}, dbTx)
	if errors.Is(err, gerror.ErrAlreadyExists) {
		return false, d.DestinationNetwork, split, nil
	} else if err != nil {
		return false, d.DestinationNetwork, split, err
	}
	return true, d.DestinationNetwork, split, nil
}

// netAmount is the payout of a deposit valued in the native currency of the destination
// network, the unit every pool ledger is kept in
func netAmount(d *models.Deposit) decimal.Decimal {
	if d.DestNativeAmount.IsPositive() {
		return d.DestNativeAmount
	}
	return d.AmountOut
}

// Sweep books the fee of completed deposits that have none, which happens when the
// process stops between a payout and its fee booking. It returns how many were booked.
func (f *FeeDistributor) Sweep(ctx context.Context) (int, error) {
	deposits, err := f.storage.GetCompletedDepositsWithoutFee(ctx, f.cfg.SweepBatchSize, nil)
	if err != nil {
		return 0, err
	}
	var (
		booked  int
		lastErr error
	)
	for _, d := range deposits {
		ok, err := f.Distribute(ctx, d.ID)
		if err != nil {
			log.Warnf("deposit %d: fee booking failed: %v", d.ID, err)
			lastErr = err
			continue
		}
		if ok {
			booked++
		}
	}
	if booked > 0 {
		log.Infof("fee sweep booked %d deposits", booked)
	}
	return booked, lastErr
}

// Start sweeps periodically until ctx is done
func (f *FeeDistributor) Start(ctx context.Context) {
	interval := f.cfg.SweepInterval.Duration
	if interval <= 0 {
		interval = defaultSweepPeriod
	}
	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			log.Debug("fee sweep ctx done")
			return
		case <-time.After(wait):
			wait = interval
			if _, err := f.Sweep(ctx); err != nil {
				log.Warnf("fee sweep failed: %v", err)
			}
		}
	}
}
