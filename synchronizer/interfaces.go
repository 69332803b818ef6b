package synchronizer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v4"
	"github.com/valtbridge/bridge-service/hedera"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
)

// ActivitySource is an ordered stream of confirmed activity of one chain or account
type ActivitySource interface {
	Name() string
	// Fetch returns the confirmed activity strictly after from. Batch.Next is the
	// position the source scanned through, even when it holds no activity.
	Fetch(ctx context.Context, from models.Position) (Batch, error)
}

// Handler hands a decoded activity over to the ledgers. It must be idempotent.
type Handler interface {
	Handle(ctx context.Context, a Activity) error
}

// storageInterface gathers the methods required to persist the ingestion progress
type storageInterface interface {
	GetCursor(ctx context.Context, source string, dbTx pgx.Tx) (models.Position, error)
	SaveCursor(ctx context.Context, source string, pos models.Position, dbTx pgx.Tx) error
	IsProcessed(ctx context.Context, source, key string, dbTx pgx.Tx) (bool, error)
	MarkProcessed(ctx context.Context, source, key string, dbTx pgx.Tx) error
}

type evmClientInterface interface {
	Network() network.Config
	LatestBlock(ctx context.Context) (uint64, error)
	FilterBridgeDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error)
	BlockByNumber(ctx context.Context, number uint64) (*types.Block, error)
	Sender(tx *types.Transaction) (common.Address, error)
	IsContract(ctx context.Context, addr common.Address) (bool, error)
}

type mirrorClientInterface interface {
	ContractLogs(ctx context.Context, contractID, fromTimestamp string) ([]hedera.ContractLog, error)
	Transactions(ctx context.Context, accountID, fromTimestamp string) ([]hedera.Transaction, error)
}

type depositConfirmer interface {
	ConfirmDeposit(ctx context.Context, event models.BridgeDeposit) error
}

type liquidityAdder interface {
	AddLiquidity(ctx context.Context, d models.LiquidityDeposit) (bool, error)
}
