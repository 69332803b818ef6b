package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DepositStatus is the state of a bridge request
type DepositStatus string

const (
	// DepositStatusNone means the request was prechecked but the deposit is not confirmed on-chain yet
	DepositStatusNone DepositStatus = "none"
	// DepositStatusPending means the deposit was confirmed on the source network and awaits payout
	DepositStatusPending DepositStatus = "pending"
	// DepositStatusCompleted means the payout was executed on the destination network
	DepositStatusCompleted DepositStatus = "completed"
	// DepositStatusFailed means the payout exhausted its retries
	DepositStatusFailed DepositStatus = "failed"
)

// String returns a string representation of the status
func (s DepositStatus) String() string {
	return string(s)
}

// ReleaseType is the kind of payout executed on the destination network
type ReleaseType string

const (
	ReleaseNativeTransfer ReleaseType = "native-transfer"
	ReleaseTokenTransfer  ReleaseType = "token-transfer"
	ReleaseSwap           ReleaseType = "swap"
)

// TxState is what a network reports about a submitted payout
type TxState string

const (
	TxStateNotFound TxState = "not-found"
	TxStatePending  TxState = "pending"
	TxStateSuccess  TxState = "success"
	TxStateReverted TxState = "reverted"
)

// BeforeBroadcast is called with the hash of a signed payout before it is sent.
// An error aborts the broadcast.
type BeforeBroadcast func(txHash string) error

// Deposit is a bridge request, from precheck to payout
type Deposit struct {
	ID                   uint64
	Nonce                string
	NonceHash            common.Hash
	Depositor            string
	Recipient            string
	TokenFrom            string
	TokenTo              string
	FromTokenAddress     string
	ToTokenAddress       string
	PoolAddress          string
	AmountIn             decimal.Decimal
	AmountOut            decimal.Decimal
	DestNativeAmount     decimal.Decimal
	SourceNetwork        string
	DestinationNetwork   string
	Status               DepositStatus
	TxHash               string
	ReleaseTxHash        string
	ReleaseType          ReleaseType
	// ReleaseAttemptTxHash is the hash of the signed payout, stored before it is broadcast
	ReleaseAttemptTxHash string
	// ReleaseNativeUsed is the native amount the attempted payout takes out of the pool
	ReleaseNativeUsed    decimal.Decimal
	Retries              int
	LastError            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// BridgeDeposit is the decoded on-chain deposit event
type BridgeDeposit struct {
	NonceHash     common.Hash
	From          string
	TokenFrom     string
	// Amount is expressed in base units of the source token
	Amount        *big.Int
	To            string
	TokenTo       string
	PoolAddress   string
	DestChainID   uint64
	SourceNetwork string
	TxHash        string
	LogIndex      uint
	BlockNumber   uint64
}
