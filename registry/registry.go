package registry

import (
	"context"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
)

// Register keys
const (
	KeyFeePct   = "fee_pct"
	KeyLPFeePct = "lp_fee_pct"
	KeyTotalFee = "total_fee"
)

var hundred = decimal.NewFromInt(100) //nolint:gomnd

type storageInterface interface {
	GetRegister(ctx context.Context, key string, dbTx pgx.Tx) (decimal.Decimal, error)
	SetRegister(ctx context.Context, key string, value decimal.Decimal, dbTx pgx.Tx) error
	IncrementRegister(ctx context.Context, key string, delta decimal.Decimal, dbTx pgx.Tx) (decimal.Decimal, error)
}

// Registry gives typed access to the fee configuration and the admin fee accumulator
type Registry struct {
	storage storageInterface
}

// NewRegistry creates a registry on top of the register storage
func NewRegistry(storage interface{}) *Registry {
	return &Registry{storage: storage.(storageInterface)}
}

// FeePct is the bridge fee percentage charged on top of the net payout
func (r *Registry) FeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error) {
	return r.storage.GetRegister(ctx, KeyFeePct, dbTx)
}

// SetFeePct updates the bridge fee percentage
func (r *Registry) SetFeePct(ctx context.Context, pct decimal.Decimal, dbTx pgx.Tx) error {
	if err := validatePct(pct); err != nil {
		return err
	}
	log.Infof("bridge fee set to %s%%", pct.String())
	return r.storage.SetRegister(ctx, KeyFeePct, pct, dbTx)
}

// LPFeePct is the percentage of the bridge fee shared between LPs
func (r *Registry) LPFeePct(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error) {
	return r.storage.GetRegister(ctx, KeyLPFeePct, dbTx)
}

// SetLPFeePct updates the LP share of the bridge fee
func (r *Registry) SetLPFeePct(ctx context.Context, pct decimal.Decimal, dbTx pgx.Tx) error {
	if err := validatePct(pct); err != nil {
		return err
	}
	log.Infof("lp fee share set to %s%%", pct.String())
	return r.storage.SetRegister(ctx, KeyLPFeePct, pct, dbTx)
}

// TotalFee is the admin fee accumulated across networks
func (r *Registry) TotalFee(ctx context.Context, dbTx pgx.Tx) (decimal.Decimal, error) {
	return r.storage.GetRegister(ctx, KeyTotalFee, dbTx)
}

// Increment adds delta to an accumulator within dbTx and returns the new value
func (r *Registry) Increment(ctx context.Context, key string, delta decimal.Decimal, dbTx pgx.Tx) (decimal.Decimal, error) {
	return r.storage.IncrementRegister(ctx, key, delta, dbTx)
}

func validatePct(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThanOrEqual(hundred) {
		return fmt.Errorf("percentage %s out of range [0, 100)", pct.String())
	}
	return nil
}
