package synchronizer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/etherman"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
)

// HederaDepositSource reads the BridgeDeposit logs of the bridge contract from the mirror node
type HederaDepositSource struct {
	mirror mirrorClientInterface
	net    network.Config
}

// NewHederaDepositSource creates the deposit source of the hedera network
func NewHederaDepositSource(mirror mirrorClientInterface, net network.Config) *HederaDepositSource {
	return &HederaDepositSource{mirror: mirror, net: net}
}

// Name returns the cursor key of the source
func (s *HederaDepositSource) Name() string {
	return s.net.Name + "-deposits"
}

// Fetch reads the contract logs at or after the cursor timestamp. Logs not after the
// cursor are dropped by the watcher.
func (s *HederaDepositSource) Fetch(ctx context.Context, from models.Position) (Batch, error) {
	batch := Batch{Next: from}
	logs, err := s.mirror.ContractLogs(ctx, s.net.BridgeContract, from.Timestamp)
	if err != nil {
		return batch, err
	}
	for _, l := range logs {
		pos := models.Position{Timestamp: l.Timestamp, LogIndex: l.Index}
		if batch.Next.Less(pos) {
			batch.Next = pos
		}
		deposit, err := etherman.DecodeBridgeDeposit(l.ToLog())
		if err != nil {
			log.Debugf("network %s: skipping log %s:%d: %v", s.net.Name, l.TransactionHash, l.Index, err)
			continue
		}
		deposit.SourceNetwork = s.net.Name
		deposit.TxHash = l.TransactionHash
		batch.Activities = append(batch.Activities, Activity{
			DedupKey: etherman.DedupKey(l.TransactionHash, l.Index),
			Position: pos,
			Deposit:  deposit,
		})
	}
	return batch, nil
}

// HederaLiquiditySource reads the hbar transfers credited to the pool account
type HederaLiquiditySource struct {
	mirror mirrorClientInterface
	net    network.Config
}

// NewHederaLiquiditySource creates the liquidity source of the hedera network
func NewHederaLiquiditySource(mirror mirrorClientInterface, net network.Config) *HederaLiquiditySource {
	return &HederaLiquiditySource{mirror: mirror, net: net}
}

// Name returns the cursor key of the source
func (s *HederaLiquiditySource) Name() string {
	return s.net.Name + "-liquidity"
}

// Fetch reads the successful crypto transfers crediting the pool at or after the cursor timestamp
func (s *HederaLiquiditySource) Fetch(ctx context.Context, from models.Position) (Batch, error) {
	batch := Batch{Next: from}
	txs, err := s.mirror.Transactions(ctx, s.net.PoolAddress, from.Timestamp)
	if err != nil {
		return batch, err
	}
	for _, tx := range txs {
		pos := models.Position{Timestamp: tx.ConsensusTimestamp, TxID: tx.TransactionID}
		if tx.ConsensusTimestamp == from.Timestamp && tx.TransactionID == from.TxID {
			continue
		}
		if batch.Next.Less(pos) {
			batch.Next = pos
		}
		if !tx.IsSuccessfulTransfer() {
			continue
		}
		credit, sender := tx.Credit(s.net.PoolAddress)
		if credit <= 0 || sender == "" {
			continue
		}
		batch.Activities = append(batch.Activities, Activity{
			DedupKey: tx.TransactionID,
			Position: pos,
			Liquidity: &models.LiquidityDeposit{
				Wallet:    sender,
				Network:   s.net.Name,
				Amount:    decimal.New(credit, -s.net.NativeDecimals),
				Asset:     s.net.NativeSymbol,
				TxID:      tx.TransactionID,
				Timestamp: consensusTime(tx.ConsensusTimestamp),
			},
		})
	}
	return batch, nil
}

// consensusTime parses a mirror node "seconds.nanos" timestamp
func consensusTime(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2) //nolint:gomnd
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	var nanos int64
	if len(parts) == 2 { //nolint:gomnd
		frac := (parts[1] + "000000000")[:9]
		nanos, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(secs, nanos).UTC()
}

// cursorValue is the numeric form of a position exported as a metric
func cursorValue(p models.Position) float64 {
	if p.Block > 0 {
		return float64(p.Block)
	}
	t := consensusTime(p.Timestamp)
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix())
}
