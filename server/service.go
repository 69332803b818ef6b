package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/quote"
	"github.com/valtbridge/bridge-service/synchronizer"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

var hundred = decimal.NewFromInt(100) //nolint:gomnd

type bridgeService struct {
	cfg       Config
	networks  *network.Set
	quotes    quoteService
	deposits  depositLedger
	liquidity liquidityLedger
	fees      feeRegister
	prices    priceReader
	ingesters map[string]ActivityIngester
}

// NewBridgeService creates the bridge api service. ingesters maps a network name to the
// pipeline crediting its pushed liquidity activity.
func NewBridgeService(cfg Config, networks *network.Set, quotes quoteService, deposits depositLedger,
	liquidity liquidityLedger, fees feeRegister, prices priceReader, ingesters map[string]ActivityIngester) *bridgeService {
	if cfg.DefaultPageLimit == 0 {
		cfg.DefaultPageLimit = 25 //nolint:gomnd
	}
	if cfg.MaxPageLimit < cfg.DefaultPageLimit {
		cfg.MaxPageLimit = cfg.DefaultPageLimit
	}
	return &bridgeService{
		cfg:       cfg,
		networks:  networks,
		quotes:    quotes,
		deposits:  deposits,
		liquidity: liquidity,
		fees:      fees,
		prices:    prices,
		ingesters: ingesters,
	}
}

func respond(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, response{Code: defaultSuccessCode, Data: data})
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, response{Code: defaultErrorCode, Msg: msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, quote.ErrInvalidRequest), errors.Is(err, quote.ErrMissingPrice),
		errors.Is(err, gerror.ErrNetworkNotRegister), errors.Is(err, gerror.ErrTokenNotRegister):
		return http.StatusBadRequest
	case errors.Is(err, gerror.ErrStorageNotFound):
		return http.StatusNotFound
	case errors.Is(err, gerror.ErrInvalidTransition), errors.Is(err, gerror.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, gerror.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		_ = c.Error(err)
		abort(c, status, "internal error")
		return
	}
	abort(c, status, err.Error())
}

// symbols returns every token symbol configured on any network
func (s *bridgeService) symbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range s.networks.Names() {
		net, _ := s.networks.Get(name)
		add := func(symbol string) {
			sym := strings.ToUpper(symbol)
			if _, ok := seen[sym]; !ok {
				seen[sym] = struct{}{}
				out = append(out, sym)
			}
		}
		add(net.NativeSymbol)
		for _, t := range net.Tokens {
			add(t.Symbol)
		}
	}
	sort.Strings(out)
	return out
}

// TokenPrices returns the usd price of the requested symbols, all configured tokens by default.
// Missing or stale prices are reported as zero.
func (s *bridgeService) TokenPrices(c *gin.Context) {
	var symbols []string
	for _, sym := range strings.Split(c.Query("symbols"), ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, strings.ToUpper(sym))
		}
	}
	if len(symbols) == 0 {
		symbols = s.symbols()
	}
	prices, err := s.prices.GetTokenPrices(c.Request.Context(), symbols)
	if err != nil {
		fail(c, err)
		return
	}
	out := make(map[string]decimal.Decimal, len(symbols))
	for i, p := range prices {
		out[symbols[i]] = p.USD
	}
	respond(c, out)
}

func (s *bridgeService) bindBridgeRequest(c *gin.Context) (quote.Request, bool) {
	var req bridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "missing or invalid parameters: "+err.Error())
		return quote.Request{}, false
	}
	return req.toQuoteRequest(), true
}

// Precheck prices a bridge request and checks the destination pool can fund it
func (s *bridgeService) Precheck(c *gin.Context) {
	req, ok := s.bindBridgeRequest(c)
	if !ok {
		return
	}
	q, err := s.quotes.Quote(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, newQuoteResponse(q))
}

// Bridge records a bridge request that passed its precheck and returns the deposit nonce
func (s *bridgeService) Bridge(c *gin.Context) {
	req, ok := s.bindBridgeRequest(c)
	if !ok {
		return
	}
	q, err := s.quotes.Bridge(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, newQuoteResponse(q))
}

// BridgeStatus returns the deposit created for a nonce
func (s *bridgeService) BridgeStatus(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "nonce is required")
		return
	}
	d, err := s.deposits.GetByNonce(c.Request.Context(), req.Nonce)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, newDepositResponse(d))
}

func (s *bridgeService) nativePrices(c *gin.Context, symbols []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(symbols))
	prices, err := s.prices.GetTokenPrices(c.Request.Context(), symbols)
	if err != nil {
		log.Warnf("error reading native prices: %v", err)
		return out
	}
	for i, p := range prices {
		out[symbols[i]] = p.USD
	}
	return out
}

// Valts lists the pool of every network
func (s *bridgeService) Valts(c *gin.Context) {
	pools, err := s.liquidity.Pools(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	symbols := make([]string, 0, len(pools))
	for _, p := range pools {
		symbols = append(symbols, p.NativeSymbol)
	}
	prices := s.nativePrices(c, symbols)
	out := make([]poolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, newPoolResponse(p, prices[p.NativeSymbol]))
	}
	respond(c, out)
}

// Valt returns the pool of a network
func (s *bridgeService) Valt(c *gin.Context) {
	p, err := s.liquidity.Pool(c.Request.Context(), c.Param("network"))
	if err != nil {
		fail(c, err)
		return
	}
	prices := s.nativePrices(c, []string{p.NativeSymbol})
	respond(c, newPoolResponse(p, prices[p.NativeSymbol]))
}

// UserLiquidity returns the positions of a wallet, optionally on a single network
func (s *bridgeService) UserLiquidity(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet == "" {
		abort(c, http.StatusBadRequest, "wallet is required")
		return
	}
	networkName := c.Query("network")
	lps, err := s.liquidity.UserLiquidity(c.Request.Context(), wallet)
	if err != nil {
		fail(c, err)
		return
	}
	resp := userLiquidityResponse{WalletAddress: wallet, Positions: []positionResponse{}}
	for _, lp := range lps {
		if networkName != "" && lp.Network != networkName {
			continue
		}
		resp.Positions = append(resp.Positions, positionResponse{
			Network: lp.Network, Amount: lp.Amount, Profit: lp.Profit, Active: lp.Active, History: lp.History,
		})
		if lp.Active {
			resp.TotalLiquidity = resp.TotalLiquidity.Add(lp.Amount)
			resp.Profit = resp.Profit.Add(lp.Profit)
		}
	}
	respond(c, resp)
}

// GetFee returns the fee registers
func (s *bridgeService) GetFee(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		resp feeResponse
		err  error
	)
	if resp.FeePct, err = s.fees.FeePct(ctx, nil); err != nil {
		fail(c, err)
		return
	}
	if resp.LPFeePct, err = s.fees.LPFeePct(ctx, nil); err != nil {
		fail(c, err)
		return
	}
	if resp.TotalFee, err = s.fees.TotalFee(ctx, nil); err != nil {
		fail(c, err)
		return
	}
	respond(c, resp)
}

func validPct(p *decimal.Decimal) bool {
	return p == nil || (!p.IsNegative() && p.LessThan(hundred))
}

// SetFee updates the bridge fee and the LP share of it
func (s *bridgeService) SetFee(c *gin.Context) {
	var req setFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.FeePct == nil && req.LPFeePct == nil) {
		abort(c, http.StatusBadRequest, "feePct or lpFeePct is required")
		return
	}
	if !validPct(req.FeePct) || !validPct(req.LPFeePct) {
		abort(c, http.StatusBadRequest, "percentages must be in [0, 100)")
		return
	}
	ctx := c.Request.Context()
	if req.FeePct != nil {
		if err := s.fees.SetFeePct(ctx, *req.FeePct, nil); err != nil {
			fail(c, err)
			return
		}
	}
	if req.LPFeePct != nil {
		if err := s.fees.SetLPFeePct(ctx, *req.LPFeePct, nil); err != nil {
			fail(c, err)
			return
		}
	}
	s.GetFee(c)
}

// Withdraw claims the profit of the token subject on a network. Admin tokens claim the admin fees.
func (s *bridgeService) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "network is required")
		return
	}
	claimant := subjectOf(c)
	amount, err := s.liquidity.Withdraw(c.Request.Context(), claimant, req.Network)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, withdrawResponse{Claimant: claimant, Network: req.Network, Amount: amount})
}

// Requeue moves a failed deposit back to pending
func (s *bridgeService) Requeue(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "nonce is required")
		return
	}
	if err := s.deposits.Requeue(c.Request.Context(), req.Nonce); err != nil {
		fail(c, err)
		return
	}
	d, err := s.deposits.GetByNonce(c.Request.Context(), req.Nonce)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, newDepositResponse(d))
}

func (s *bridgeService) pageLimit(c *gin.Context) (uint, uint) {
	limit := s.cfg.DefaultPageLimit
	if v, err := strconv.ParseUint(c.Query("limit"), 10, 32); err == nil && v > 0 {
		limit = uint(v)
	}
	if limit > s.cfg.MaxPageLimit {
		limit = s.cfg.MaxPageLimit
	}
	var offset uint
	if v, err := strconv.ParseUint(c.Query("offset"), 10, 32); err == nil {
		offset = uint(v)
	}
	return limit, offset
}

// Deposits lists deposits by status, pending and failed ones by default
func (s *bridgeService) Deposits(c *gin.Context) {
	statuses := []models.DepositStatus{models.DepositStatusPending, models.DepositStatusFailed}
	if q := c.Query("status"); q != "" {
		statuses = statuses[:0]
		for _, st := range strings.Split(q, ",") {
			switch status := models.DepositStatus(strings.TrimSpace(st)); status {
			case models.DepositStatusNone, models.DepositStatusPending, models.DepositStatusCompleted, models.DepositStatusFailed:
				statuses = append(statuses, status)
			default:
				abort(c, http.StatusBadRequest, "unknown status "+st)
				return
			}
		}
	}
	limit, offset := s.pageLimit(c)
	deposits, err := s.deposits.List(c.Request.Context(), statuses, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]depositResponse, 0, len(deposits))
	for _, d := range deposits {
		out = append(out, newDepositResponse(d))
	}
	respond(c, out)
}

// AddLiquidity credits the native transfers into a pool pushed by an address activity
// webhook. Activities go through the same pipeline as the polled ones, so a transfer
// seen by both is credited once.
func (s *bridgeService) AddLiquidity(c *gin.Context) {
	var hook addressActivityWebhook
	if err := c.ShouldBindJSON(&hook); err != nil {
		abort(c, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	net, err := s.networks.ByWebhookNetwork(hook.Event.Network)
	if err != nil {
		log.Warnf("unknown webhook network %q", hook.Event.Network)
		abort(c, http.StatusBadRequest, "unknown network")
		return
	}
	ingester, ok := s.ingesters[net.Name]
	if !ok || net.PoolAddress == "" {
		abort(c, http.StatusBadRequest, "liquidity is not tracked on "+net.Name)
		return
	}
	activities := liquidityActivities(net, hook.Event.Activity)
	_, credited, err := ingester.Process(c.Request.Context(), activities)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, addLiquidityResponse{Network: net.Name, Received: len(hook.Event.Activity), Credited: credited})
}

// liquidityActivities keeps the native transfers into the pool of net
func liquidityActivities(net network.Config, activity []addressActivity) []synchronizer.Activity {
	pool := strings.ToLower(net.PoolAddress)
	var out []synchronizer.Activity
	for _, a := range activity {
		mLog := log.WithFields("network", net.Name, "txId", a.Hash)
		if strings.ToLower(a.ToAddress) != pool {
			mLog.Debugf("ignored transfer to %s", a.ToAddress)
			continue
		}
		if category := strings.ToLower(a.Category); category != "external" && category != "coin" {
			mLog.Infof("ignored non native transfer of %s", a.Asset)
			continue
		}
		if !a.Value.IsPositive() || !common.IsHexAddress(a.FromAddress) {
			continue
		}
		block, _ := strconv.ParseUint(strings.TrimPrefix(a.BlockNum, "0x"), 16, 64)
		txID := common.HexToHash(a.Hash).Hex()
		out = append(out, synchronizer.Activity{
			DedupKey: txID,
			Position: models.Position{Block: block},
			Liquidity: &models.LiquidityDeposit{
				Wallet:  strings.ToLower(a.FromAddress),
				Network: net.Name,
				Amount:  a.Value.Truncate(net.NativeDecimals),
				Asset:   net.NativeSymbol,
				TxID:    txID,
			},
		})
	}
	return out
}
