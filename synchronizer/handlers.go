package synchronizer

import (
	"context"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/valtbridge/bridge-service/metrics"
)

// DepositConfirmHandler moves the bridge requests matching a deposit event to pending
type DepositConfirmHandler struct {
	ledger depositConfirmer
}

// NewDepositConfirmHandler creates a handler confirming deposits on the ledger
func NewDepositConfirmHandler(ledger depositConfirmer) *DepositConfirmHandler {
	return &DepositConfirmHandler{ledger: ledger}
}

// Handle confirms the deposit carried by the activity
func (h *DepositConfirmHandler) Handle(ctx context.Context, a Activity) error {
	if a.Deposit == nil {
		return fmt.Errorf("activity %s carries no deposit", a.DedupKey)
	}
	if err := h.ledger.ConfirmDeposit(ctx, *a.Deposit); err != nil {
		return err
	}
	metrics.RecordDepositDetected(a.Deposit.SourceNetwork)
	return nil
}

// LiquidityHandler credits inbound pool transfers to their LP
type LiquidityHandler struct {
	liquidity liquidityAdder
}

// NewLiquidityHandler creates a handler crediting liquidity deposits
func NewLiquidityHandler(liquidity liquidityAdder) *LiquidityHandler {
	return &LiquidityHandler{liquidity: liquidity}
}

// Handle credits the liquidity carried by the activity
func (h *LiquidityHandler) Handle(ctx context.Context, a Activity) error {
	if a.Liquidity == nil {
		return fmt.Errorf("activity %s carries no liquidity deposit", a.DedupKey)
	}
	added, err := h.liquidity.AddLiquidity(ctx, *a.Liquidity)
	if err != nil {
		return err
	}
	if added {
		log.Infof("network %s: credited %s %s from %s (tx %s)", a.Liquidity.Network,
			a.Liquidity.Amount.String(), a.Liquidity.Asset, a.Liquidity.Wallet, a.Liquidity.TxID)
		metrics.RecordLiquidityAdded(a.Liquidity.Network)
	}
	return nil
}
