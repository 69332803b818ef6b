package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/precheck"
	"github.com/valtbridge/bridge-service/utils"
)

const divisionPrecision = 36

var (
	// ErrInvalidRequest is returned for incomplete or malformed bridge requests
	ErrInvalidRequest = errors.New("invalid bridge request")
	// ErrMissingPrice is returned when a token involved in the request has no price
	ErrMissingPrice = errors.New("missing token price data")

	hundred = decimal.NewFromInt(100) //nolint:gomnd
)

// Request is a bridge request as sent by a client
type Request struct {
	FromNetwork string
	ToNetwork   string
	FromToken   string
	ToToken     string
	Amount      decimal.Decimal
	// FromAddress is the depositor, also the recipient when Recipient is empty
	FromAddress string
	Recipient   string
}

// Quote is the priced outcome of a bridge request
type Quote struct {
	FeePct       decimal.Decimal
	USDValue     decimal.Decimal
	TokenAmount  decimal.Decimal
	NativeAmount decimal.Decimal
	Precheck     precheck.Result
	// NeedsApproval reports that the depositor must approve the bridge contract first
	NeedsApproval bool
	// Set once the deposit is recorded
	DepositID   uint64
	Nonce       string
	NonceHash   common.Hash
	PoolAddress string
}

// Service prices bridge requests and records the accepted ones
type Service struct {
	networks *network.Set
	prices   priceReader
	fees     feeReader
	engine   precheckInterface
	ledger   depositCreator
}

// NewService creates the quote service
func NewService(networks *network.Set, prices priceReader, fees feeReader, engine precheckInterface, ledger depositCreator) *Service {
	return &Service{networks: networks, prices: prices, fees: fees, engine: engine, ledger: ledger}
}

type resolved struct {
	from, to  network.Config
	fromToken network.Token
	toToken   network.Token
}

func (s *Service) resolve(req Request) (resolved, error) {
	var r resolved
	if !req.Amount.IsPositive() {
		return r, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	var err error
	if r.from, err = s.networks.Get(req.FromNetwork); err != nil {
		return r, err
	}
	if r.to, err = s.networks.Get(req.ToNetwork); err != nil {
		return r, err
	}
	if r.fromToken, err = r.from.Token(req.FromToken); err != nil {
		return r, err
	}
	if r.toToken, err = r.to.Token(req.ToToken); err != nil {
		return r, err
	}
	return r, nil
}

func (s *Service) price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p, err := s.prices.GetTokenPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrMissingPrice, symbol, err)
	}
	return p.USD, nil
}

// Quote converts the request amount into the destination token and native currency,
// net of the bridge fee and truncated to their decimals, and prechecks the payout
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	r, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	fromPrice, err := s.price(ctx, r.fromToken.Symbol)
	if err != nil {
		return nil, err
	}
	toPrice, err := s.price(ctx, r.toToken.Symbol)
	if err != nil {
		return nil, err
	}
	nativePrice, err := s.price(ctx, r.to.NativeSymbol)
	if err != nil {
		return nil, err
	}
	feePct, err := s.fees.FeePct(ctx, nil)
	if err != nil {
		return nil, err
	}

	usd := req.Amount.Mul(fromPrice)
	afterFee := hundred.Sub(feePct).Div(hundred)
	q := &Quote{
		FeePct:       feePct,
		USDValue:     usd,
		TokenAmount:  usd.DivRound(toPrice, divisionPrecision).Mul(afterFee).Truncate(r.toToken.Decimals),
		NativeAmount: usd.DivRound(nativePrice, divisionPrecision).Mul(afterFee).Truncate(r.to.NativeDecimals),
	}
	q.Precheck, err = s.engine.Precheck(ctx, precheck.Request{
		Network:              r.to.Name,
		Token:                r.toToken.Symbol,
		Amount:               q.TokenAmount,
		FallbackNativeAmount: q.NativeAmount,
	})
	if errors.Is(err, precheck.ErrInvalidAmount) {
		return nil, fmt.Errorf("%w: amount too small once converted", ErrInvalidRequest)
	} else if err != nil {
		return nil, err
	}
	if req.FromAddress != "" {
		q.NeedsApproval, err = s.engine.RequireAllowance(ctx, r.from.Name, r.fromToken.Symbol, req.FromAddress, req.Amount)
		if err != nil {
			log.Warnf("allowance check of %s on %s failed: %v", req.FromAddress, r.from.Name, err)
		}
	}
	return q, nil
}

// Bridge quotes the request and, when the destination pool can fund it, records the
// deposit with a fresh nonce. The client then deposits on the source network with
// that nonce.
func (s *Service) Bridge(ctx context.Context, req Request) (*Quote, error) {
	if req.FromAddress == "" {
		return nil, fmt.Errorf("%w: fromAddress is required", ErrInvalidRequest)
	}
	if req.Recipient == "" {
		req.Recipient = req.FromAddress
	}
	r, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	if err := validateAddress(r.from, req.FromAddress); err != nil {
		return nil, err
	}
	if err := validateAddress(r.to, req.Recipient); err != nil {
		return nil, err
	}
	q, err := s.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	if !q.Precheck.CanProceed {
		return q, nil
	}

	nonce := utils.NewNonce()
	d := &models.Deposit{
		Nonce:              nonce,
		NonceHash:          utils.NonceHash(nonce),
		Depositor:          normalizeAddress(req.FromAddress),
		Recipient:          normalizeAddress(req.Recipient),
		TokenFrom:          r.fromToken.Symbol,
		TokenTo:            r.toToken.Symbol,
		FromTokenAddress:   r.fromToken.Address,
		ToTokenAddress:     r.toToken.Address,
		PoolAddress:        r.from.PoolAddress,
		AmountIn:           req.Amount,
		AmountOut:          q.TokenAmount,
		DestNativeAmount:   q.NativeAmount,
		SourceNetwork:      r.from.Name,
		DestinationNetwork: r.to.Name,
	}
	id, err := s.ledger.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	q.DepositID, q.Nonce, q.NonceHash, q.PoolAddress = id, d.Nonce, d.NonceHash, d.PoolAddress
	log.WithFields("depositID", id, "nonce", nonce).Infof("bridge request %s %s on %s -> %s %s on %s",
		req.Amount.String(), r.fromToken.Symbol, r.from.Name, q.TokenAmount.String(), r.toToken.Symbol, r.to.Name)
	return q, nil
}

func validateAddress(net network.Config, addr string) error {
	switch {
	case common.IsHexAddress(addr):
		return nil
	case net.Family == network.FamilyHedera && network.IsEntityID(addr):
		return nil
	}
	return fmt.Errorf("%w: %q is not a valid %s address", ErrInvalidRequest, addr, net.Name)
}

func normalizeAddress(addr string) string {
	if common.IsHexAddress(addr) {
		return strings.ToLower(addr)
	}
	return addr
}
