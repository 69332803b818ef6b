package server

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/liquidity"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/quote"
)

const (
	defaultErrorCode   = 1
	defaultSuccessCode = 0
)

type response struct {
	Code int64       `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

type bridgeRequest struct {
	FromNetwork string          `json:"fromNetwork" binding:"required"`
	ToNetwork   string          `json:"toNetwork" binding:"required"`
	FromToken   string          `json:"fromToken" binding:"required"`
	ToToken     string          `json:"toToken" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	FromAddress string          `json:"fromAddress"`
	Recipient   string          `json:"recipient"`
}

func (r bridgeRequest) toQuoteRequest() quote.Request {
	return quote.Request{
		FromNetwork: r.FromNetwork,
		ToNetwork:   r.ToNetwork,
		FromToken:   r.FromToken,
		ToToken:     r.ToToken,
		Amount:      r.Amount,
		FromAddress: r.FromAddress,
		Recipient:   r.Recipient,
	}
}

type precheckResult struct {
	CanProceed   bool            `json:"canProceed"`
	Reason       string          `json:"reason,omitempty"`
	Path         string          `json:"path,omitempty"`
	EstimatedOut decimal.Decimal `json:"estimatedOut"`
}

type quoteResponse struct {
	FeePct        decimal.Decimal `json:"feePct"`
	USDValue      decimal.Decimal `json:"usdValue"`
	TokenAmount   decimal.Decimal `json:"tokenAmount"`
	NativeAmount  decimal.Decimal `json:"nativeAmount"`
	NeedsApproval bool            `json:"needsApproval"`
	Precheck      precheckResult  `json:"precheck"`
	DepositID     uint64          `json:"depositId,omitempty"`
	Nonce         string          `json:"nonce,omitempty"`
	NonceHash     string          `json:"nonceHash,omitempty"`
	PoolAddress   string          `json:"poolAddress,omitempty"`
}

func newQuoteResponse(q *quote.Quote) quoteResponse {
	resp := quoteResponse{
		FeePct:        q.FeePct,
		USDValue:      q.USDValue,
		TokenAmount:   q.TokenAmount,
		NativeAmount:  q.NativeAmount,
		NeedsApproval: q.NeedsApproval,
		Precheck: precheckResult{
			CanProceed:   q.Precheck.CanProceed,
			Reason:       q.Precheck.Reason,
			Path:         string(q.Precheck.Path),
			EstimatedOut: q.Precheck.EstimatedOut,
		},
		DepositID:   q.DepositID,
		Nonce:       q.Nonce,
		PoolAddress: q.PoolAddress,
	}
	if q.Nonce != "" {
		resp.NonceHash = q.NonceHash.Hex()
	}
	return resp
}

type nonceRequest struct {
	Nonce string `json:"nonce" binding:"required"`
}

type depositResponse struct {
	ID                 uint64          `json:"id"`
	Nonce              string          `json:"nonce"`
	NonceHash          string          `json:"nonceHash"`
	Status             string          `json:"status"`
	Depositor          string          `json:"depositor"`
	Recipient          string          `json:"recipient"`
	SourceNetwork      string          `json:"sourceNetwork"`
	DestinationNetwork string          `json:"destinationNetwork"`
	TokenFrom          string          `json:"tokenFrom"`
	TokenTo            string          `json:"tokenTo"`
	AmountIn           decimal.Decimal `json:"amountIn"`
	AmountOut          decimal.Decimal `json:"amountOut"`
	DestNativeAmount   decimal.Decimal `json:"destNativeAmount"`
	TxHash             string          `json:"txHash,omitempty"`
	ReleaseTxHash      string          `json:"releaseTxHash,omitempty"`
	ReleaseType        string          `json:"releaseType,omitempty"`
	Retries            int             `json:"retries"`
	LastError          string          `json:"lastError,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func newDepositResponse(d *models.Deposit) depositResponse {
	return depositResponse{
		ID:                 d.ID,
		Nonce:              d.Nonce,
		NonceHash:          d.NonceHash.Hex(),
		Status:             d.Status.String(),
		Depositor:          d.Depositor,
		Recipient:          d.Recipient,
		SourceNetwork:      d.SourceNetwork,
		DestinationNetwork: d.DestinationNetwork,
		TokenFrom:          d.TokenFrom,
		TokenTo:            d.TokenTo,
		AmountIn:           d.AmountIn,
		AmountOut:          d.AmountOut,
		DestNativeAmount:   d.DestNativeAmount,
		TxHash:             d.TxHash,
		ReleaseTxHash:      d.ReleaseTxHash,
		ReleaseType:        string(d.ReleaseType),
		Retries:            d.Retries,
		LastError:          d.LastError,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type poolResponse struct {
	Network           string          `json:"network"`
	NetworkSlug       string          `json:"networkSlug"`
	TVL               decimal.Decimal `json:"tvl"`
	TVLUSD            decimal.Decimal `json:"tvlUsd"`
	FeesGenerated     decimal.Decimal `json:"feesGenerated"`
	Total             decimal.Decimal `json:"total"`
	Profit            decimal.Decimal `json:"profit"`
	TotalWithdrawn    decimal.Decimal `json:"totalWithdrawn"`
	APY               decimal.Decimal `json:"apy"`
	NativeTokenSymbol string          `json:"nativeTokenSymbol"`
	NativeTokenPrice  decimal.Decimal `json:"nativeTokenPrice"`
}

func newPoolResponse(p liquidity.PoolView, nativePrice decimal.Decimal) poolResponse {
	return poolResponse{
		Network:           p.Network,
		NetworkSlug:       p.NetworkSlug,
		TVL:               p.TVL,
		TVLUSD:            p.TVL.Mul(nativePrice),
		FeesGenerated:     p.FeesGenerated,
		Total:             p.Total,
		Profit:            p.Profit,
		TotalWithdrawn:    p.TotalWithdrawn,
		APY:               p.APY,
		NativeTokenSymbol: p.NativeSymbol,
		NativeTokenPrice:  nativePrice,
	}
}

type positionResponse struct {
	Network string                `json:"network"`
	Amount  decimal.Decimal       `json:"amount"`
	Profit  decimal.Decimal       `json:"profit"`
	Active  bool                  `json:"active"`
	History []models.Contribution `json:"history"`
}

type userLiquidityResponse struct {
	WalletAddress  string             `json:"walletAddress"`
	TotalLiquidity decimal.Decimal    `json:"totalLiquidity"`
	Profit         decimal.Decimal    `json:"profit"`
	Positions      []positionResponse `json:"positions"`
}

type feeResponse struct {
	FeePct   decimal.Decimal `json:"feePct"`
	LPFeePct decimal.Decimal `json:"lpFeePct"`
	TotalFee decimal.Decimal `json:"totalFee"`
}

type setFeeRequest struct {
	FeePct   *decimal.Decimal `json:"feePct"`
	LPFeePct *decimal.Decimal `json:"lpFeePct"`
}

type withdrawRequest struct {
	Network string `json:"network" binding:"required"`
}

type withdrawResponse struct {
	Claimant string          `json:"claimant"`
	Network  string          `json:"network"`
	Amount   decimal.Decimal `json:"amount"`
}

// addressActivityWebhook is the payload of an address activity webhook
type addressActivityWebhook struct {
	WebhookID string `json:"webhookId"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Event     struct {
		Network  string            `json:"network"`
		Activity []addressActivity `json:"activity"`
	} `json:"event"`
}

type addressActivity struct {
	FromAddress string          `json:"fromAddress"`
	ToAddress   string          `json:"toAddress"`
	BlockNum    string          `json:"blockNum"`
	Hash        string          `json:"hash"`
	Value       decimal.Decimal `json:"value"`
	Asset       string          `json:"asset"`
	Category    string          `json:"category"`
}

type addLiquidityResponse struct {
	Network  string `json:"network"`
	Received int    `json:"received"`
	Credited int    `json:"credited"`
}
