package precheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const (
	// ReasonInsufficientLiquidity is reported when the pool cannot fund the payout
	ReasonInsufficientLiquidity = "insufficient liquidity"
	// ReasonNoLiquidityPath is reported when the swap fallback has no usable quote
	ReasonNoLiquidityPath = "no liquidity path"
)

// ErrInvalidAmount is returned for non positive payout amounts
var ErrInvalidAmount = errors.New("amount must be positive")

// LiquidityReader reads the funds available to the pool of a network
type LiquidityReader interface {
	Network() network.Config
	NativeBalance(ctx context.Context) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, token network.Token) (decimal.Decimal, error)
	AmountsOut(ctx context.Context, nativeAmount decimal.Decimal, token network.Token) (decimal.Decimal, error)
}

type allowanceReader interface {
	Allowance(ctx context.Context, token network.Token, owner common.Address) (decimal.Decimal, error)
}

// Request is a prospective payout
type Request struct {
	Network              string
	Token                string
	Amount               decimal.Decimal
	FallbackNativeAmount decimal.Decimal
}

// Result is the outcome of a precheck. Amount and FallbackNativeAmount are the request
// amounts truncated to the precision of the token and of the native currency.
type Result struct {
	CanProceed           bool
	Reason               string
	Path                 models.ReleaseType
	Amount               decimal.Decimal
	FallbackNativeAmount decimal.Decimal
	EstimatedOut         decimal.Decimal
	MinOut               decimal.Decimal
}

// Decide picks how the pool of reader funds amount of token: native transfer, token
// transfer or swap of fallback native currency. The balances are read at call time.
// The payout executor runs the same function right before submitting, so a payout
// that passed a precheck is executed with the same thresholds.
func Decide(ctx context.Context, reader LiquidityReader, token network.Token, amount, fallback decimal.Decimal) (Result, error) {
	net := reader.Network()
	res := Result{
		Amount:               amount.Truncate(token.Decimals),
		FallbackNativeAmount: fallback.Truncate(net.NativeDecimals),
	}
	if !res.Amount.IsPositive() {
		return res, ErrInvalidAmount
	}

	if token.Native {
		native, err := reader.NativeBalance(ctx)
		if err != nil {
			return res, err
		}
		if native.LessThan(res.Amount) {
			return declined(res, ReasonInsufficientLiquidity), nil
		}
		res.CanProceed, res.Path = true, models.ReleaseNativeTransfer
		return res, nil
	}

	balance, err := reader.TokenBalance(ctx, token)
	if err != nil {
		return res, err
	}
	if balance.GreaterThanOrEqual(res.Amount) {
		res.CanProceed, res.Path = true, models.ReleaseTokenTransfer
		return res, nil
	}

	if !res.FallbackNativeAmount.IsPositive() {
		return declined(res, ReasonInsufficientLiquidity), nil
	}
	native, err := reader.NativeBalance(ctx)
	if err != nil {
		return res, err
	}
	if native.LessThan(res.FallbackNativeAmount) {
		return declined(res, ReasonInsufficientLiquidity), nil
	}
	quote, err := reader.AmountsOut(ctx, res.FallbackNativeAmount, token)
	if errors.Is(err, gerror.ErrNoLiquidityPath) {
		log.Debugf("network %s: no swap path for %s: %v", net.Name, token.Symbol, err)
		return declined(res, ReasonNoLiquidityPath), nil
	} else if err != nil {
		return res, err
	}
	if !quote.IsPositive() {
		return declined(res, ReasonNoLiquidityPath), nil
	}
	minOut := utils.FromBaseUnits(utils.MinAmountOut(utils.ToBaseUnits(quote, token.Decimals)), token.Decimals)
	if !minOut.IsPositive() {
		return declined(res, ReasonNoLiquidityPath), nil
	}
	res.CanProceed, res.Path = true, models.ReleaseSwap
	res.EstimatedOut, res.MinOut = quote, minOut
	return res, nil
}

func declined(res Result, reason string) Result {
	res.CanProceed = false
	res.Reason = reason
	return res
}

// Engine runs prechecks against the pools of the configured networks
type Engine struct {
	cfg      Config
	networks *network.Set
	readers  map[string]LiquidityReader
}

// NewEngine creates a precheck engine. readers is indexed by network name.
func NewEngine(cfg Config, networks *network.Set, readers map[string]LiquidityReader) *Engine {
	return &Engine{cfg: cfg, networks: networks, readers: readers}
}

func (e *Engine) reader(name string) (LiquidityReader, network.Config, error) {
	net, err := e.networks.Get(name)
	if err != nil {
		return nil, net, err
	}
	reader, ok := e.readers[name]
	if !ok {
		return nil, net, fmt.Errorf("%w: no pool reader for %s", gerror.ErrNetworkNotRegister, name)
	}
	return reader, net, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout.Duration > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout.Duration)
	}
	return context.WithCancel(ctx)
}

// Precheck reports whether the pool of the destination network can fund the request
func (e *Engine) Precheck(ctx context.Context, req Request) (Result, error) {
	reader, net, err := e.reader(req.Network)
	if err != nil {
		return Result{}, err
	}
	token, err := net.Token(req.Token)
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	res, err := Decide(ctx, reader, token, req.Amount, req.FallbackNativeAmount)
	if err != nil {
		return res, err
	}
	log.WithFields("network", net.Name, "token", token.Symbol).
		Debugf("precheck of %s: canProceed=%t path=%s reason=%q", res.Amount.String(), res.CanProceed, res.Path, res.Reason)
	return res, nil
}

// RequireAllowance reports whether owner must approve the bridge contract before depositing
// amount of an ERC20 token on the source network. Native tokens and networks without
// allowances never require one.
func (e *Engine) RequireAllowance(ctx context.Context, sourceNetwork, tokenSymbol, owner string, amount decimal.Decimal) (bool, error) {
	if !e.cfg.CheckAllowance {
		return false, nil
	}
	reader, net, err := e.reader(sourceNetwork)
	if err != nil {
		return false, err
	}
	token, err := net.Token(tokenSymbol)
	if err != nil {
		return false, err
	}
	allowances, ok := reader.(allowanceReader)
	if token.Native || !ok || net.Family != network.FamilyEVM {
		return false, nil
	}
	ownerAddr, err := network.ToEVMAddress(owner)
	if err != nil {
		return false, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	allowance, err := allowances.Allowance(ctx, token, ownerAddr)
	if err != nil {
		return false, err
	}
	return allowance.LessThan(amount.Truncate(token.Decimals)), nil
}
