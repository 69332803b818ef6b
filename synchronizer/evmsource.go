package synchronizer

import (
	"context"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/valtbridge/bridge-service/etherman"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/utils"
)

const (
	defaultChunkSize = 10
	defaultMaxChunks = 100
)

func chunking(cfg Config) (uint64, uint64) {
	chunkSize, maxChunks := cfg.SyncChunkSize, cfg.MaxChunksPerCycle
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}
	if maxChunks == 0 {
		maxChunks = defaultMaxChunks
	}
	return chunkSize, maxChunks
}

// confirmedRange returns the first and last block to scan after from. ok is false when
// there is no new confirmed block.
func confirmedRange(ctx context.Context, client evmClientInterface, from models.Position) (uint64, uint64, bool, error) {
	net := client.Network()
	latest, err := client.LatestBlock(ctx)
	if err != nil {
		return 0, 0, false, err
	}
	if latest < net.Confirmations {
		return 0, 0, false, nil
	}
	confirmed := latest - net.Confirmations
	start := from.Block + 1
	if from.IsZero() {
		start = net.StartBlock
		if start == 0 {
			start = confirmed
		}
	}
	if start > confirmed {
		return 0, 0, false, nil
	}
	return start, confirmed, true, nil
}

// EVMDepositSource reads the BridgeDeposit logs of the bridge contract by block range chunks
type EVMDepositSource struct {
	client    evmClientInterface
	chunkSize uint64
	maxChunks uint64
}

// NewEVMDepositSource creates the deposit source of an EVM network
func NewEVMDepositSource(client evmClientInterface, cfg Config) *EVMDepositSource {
	chunkSize, maxChunks := chunking(cfg)
	return &EVMDepositSource{client: client, chunkSize: chunkSize, maxChunks: maxChunks}
}

// Name returns the cursor key of the source
func (s *EVMDepositSource) Name() string {
	return s.client.Network().Name + "-deposits"
}

// Fetch reads the deposit logs of confirmed blocks after from
func (s *EVMDepositSource) Fetch(ctx context.Context, from models.Position) (Batch, error) {
	batch := Batch{Next: from}
	start, confirmed, ok, err := confirmedRange(ctx, s.client, from)
	if err != nil || !ok {
		return batch, err
	}
	net := s.client.Network()
	for i := uint64(0); i < s.maxChunks && start <= confirmed; i++ {
		end := start + s.chunkSize - 1
		if end > confirmed {
			end = confirmed
		}
		logs, err := s.client.FilterBridgeDeposits(ctx, start, end)
		if err != nil {
			if i == 0 {
				return batch, err
			}
			log.Warnf("network %s: error reading logs of blocks %d-%d, keeping the %d chunks already read: %v", net.Name, start, end, i, err)
			return batch, nil
		}
		for _, vLog := range logs {
			if vLog.Removed {
				continue
			}
			deposit, err := etherman.DecodeBridgeDeposit(vLog)
			if err != nil {
				log.Debugf("network %s: skipping log %s:%d: %v", net.Name, vLog.TxHash.Hex(), vLog.Index, err)
				continue
			}
			deposit.SourceNetwork = net.Name
			batch.Activities = append(batch.Activities, Activity{
				DedupKey: etherman.DedupKey(deposit.TxHash, deposit.LogIndex),
				Position: models.Position{Block: vLog.BlockNumber, LogIndex: vLog.Index},
				Deposit:  deposit,
			})
		}
		batch.Next = models.Position{Block: end}
		start = end + 1
	}
	return batch, nil
}

// EVMLiquiditySource scans confirmed blocks for native transfers into the pool address
type EVMLiquiditySource struct {
	client    evmClientInterface
	pool      common.Address
	maxBlocks uint64
}

// NewEVMLiquiditySource creates the liquidity source of an EVM network
func NewEVMLiquiditySource(client evmClientInterface, cfg Config) *EVMLiquiditySource {
	chunkSize, maxChunks := chunking(cfg)
	return &EVMLiquiditySource{
		client:    client,
		pool:      common.HexToAddress(client.Network().PoolAddress),
		maxBlocks: chunkSize * maxChunks,
	}
}

// Name returns the cursor key of the source
func (s *EVMLiquiditySource) Name() string {
	return s.client.Network().Name + "-liquidity"
}

// Fetch reads the native transfers to the pool in confirmed blocks after from.
// Zero value transfers and transfers sent by contracts are ignored.
func (s *EVMLiquiditySource) Fetch(ctx context.Context, from models.Position) (Batch, error) {
	batch := Batch{Next: from}
	start, confirmed, ok, err := confirmedRange(ctx, s.client, from)
	if err != nil || !ok {
		return batch, err
	}
	net := s.client.Network()
	if confirmed-start >= s.maxBlocks {
		confirmed = start + s.maxBlocks - 1
	}
	for number := start; number <= confirmed; number++ {
		block, err := s.client.BlockByNumber(ctx, number)
		if err != nil {
			if number == start {
				return batch, err
			}
			log.Warnf("network %s: error reading block %d: %v", net.Name, number, err)
			return batch, nil
		}
		var found []Activity
		for _, tx := range block.Transactions() {
			if tx.To() == nil || *tx.To() != s.pool || tx.Value().Sign() <= 0 {
				continue
			}
			sender, err := s.client.Sender(tx)
			if err != nil {
				log.Warnf("network %s: cannot recover sender of %s: %v", net.Name, tx.Hash().Hex(), err)
				continue
			}
			isContract, err := s.client.IsContract(ctx, sender)
			if err != nil {
				if number == start {
					return batch, err
				}
				return batch, nil
			}
			if isContract {
				log.Infof("network %s: ignoring transfer %s sent by contract %s", net.Name, tx.Hash().Hex(), sender.Hex())
				continue
			}
			txID := tx.Hash().Hex()
			found = append(found, Activity{
				DedupKey: txID,
				Position: models.Position{Block: number},
				Liquidity: &models.LiquidityDeposit{
					Wallet:    strings.ToLower(sender.Hex()),
					Network:   net.Name,
					Amount:    utils.FromBaseUnits(tx.Value(), net.ValueDecimals()),
					Asset:     net.NativeSymbol,
					TxID:      txID,
					Timestamp: blockTime(block.Time()),
				},
			})
		}
		batch.Activities = append(batch.Activities, found...)
		batch.Next = models.Position{Block: number}
	}
	return batch, nil
}

func blockTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}
