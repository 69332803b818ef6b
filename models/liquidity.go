package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidityProvider is an LP position on one network
type LiquidityProvider struct {
	ID            uint64
	WalletAddress string
	Network       string
	Amount        decimal.Decimal
	Profit        decimal.Decimal
	Active        bool
	History       []Contribution
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Contribution is a confirmed inbound transfer credited to an LP
type Contribution struct {
	TxID      string          `json:"hash"`
	Amount    decimal.Decimal `json:"amount"`
	Asset     string          `json:"asset"`
	CreatedAt time.Time       `json:"timestamp"`
}

// Pool is the ledger of the operator pool on a network
type Pool struct {
	Network        string
	NetworkSlug    string
	TVL            decimal.Decimal
	Total          decimal.Decimal
	FeesGenerated  decimal.Decimal
	Profit         decimal.Decimal
	TotalWithdrawn decimal.Decimal
	AdminFees      decimal.Decimal
	RetainedLPFees decimal.Decimal
	CreatedAt      time.Time
}

// FeeDistribution records the fee booked for a completed deposit
type FeeDistribution struct {
	DepositID     uint64
	Network       string
	FeeAmount     decimal.Decimal
	AdminShare    decimal.Decimal
	LPPool        decimal.Decimal
	LPDistributed bool
	CreatedAt     time.Time
}

// Withdrawal is a profit claim by an LP or the admin
type Withdrawal struct {
	ID        uint64
	Claimant  string
	Network   string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// PoolDelta holds the increments applied to a pool ledger
type PoolDelta struct {
	TVL            decimal.Decimal
	Total          decimal.Decimal
	FeesGenerated  decimal.Decimal
	Profit         decimal.Decimal
	TotalWithdrawn decimal.Decimal
	AdminFees      decimal.Decimal
	RetainedLPFees decimal.Decimal
}

// LiquidityDeposit is a confirmed inbound transfer into a pool, not yet credited
type LiquidityDeposit struct {
	Wallet    string
	Network   string
	Amount    decimal.Decimal
	Asset     string
	TxID      string
	Timestamp time.Time
}
