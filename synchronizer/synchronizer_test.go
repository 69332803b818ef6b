package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/hedera"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

type memStorage struct {
	cursors      map[string]models.Position
	processed    map[string]bool
	saves        int
	processedHit int
}

func newMemStorage() *memStorage {
	return &memStorage{cursors: map[string]models.Position{}, processed: map[string]bool{}}
}

func (m *memStorage) GetCursor(ctx context.Context, source string, dbTx pgx.Tx) (models.Position, error) {
	pos, ok := m.cursors[source]
	if !ok {
		return models.Position{}, gerror.ErrStorageNotFound
	}
	return pos, nil
}

func (m *memStorage) SaveCursor(ctx context.Context, source string, pos models.Position, dbTx pgx.Tx) error {
	m.saves++
	m.cursors[source] = pos
	return nil
}

func (m *memStorage) IsProcessed(ctx context.Context, source, key string, dbTx pgx.Tx) (bool, error) {
	m.processedHit++
	return m.processed[source+"/"+key], nil
}

func (m *memStorage) MarkProcessed(ctx context.Context, source, key string, dbTx pgx.Tx) error {
	m.processed[source+"/"+key] = true
	return nil
}

type staticSource struct {
	name    string
	batches []Batch
	err     error
	froms   []models.Position
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Fetch(ctx context.Context, from models.Position) (Batch, error) {
	s.froms = append(s.froms, from)
	if s.err != nil {
		return Batch{Next: from}, s.err
	}
	b := s.batches[0]
	if len(s.batches) > 1 {
		s.batches = s.batches[1:]
	}
	return b, nil
}

type recordingHandler struct {
	handled []string
	failOn  string
}

func (h *recordingHandler) Handle(ctx context.Context, a Activity) error {
	if a.DedupKey == h.failOn {
		return errors.New("ledger unavailable")
	}
	h.handled = append(h.handled, a.DedupKey)
	return nil
}

func block(n uint64, keys ...string) []Activity {
	var out []Activity
	for i, k := range keys {
		out = append(out, Activity{DedupKey: k, Position: models.Position{Block: n, LogIndex: uint(i)}})
	}
	return out
}

func TestPollIsIdempotent(t *testing.T) {
	storage := newMemStorage()
	activities := append(block(11, "a", "b"), block(12, "c")...)
	source := &staticSource{name: "base-deposits", batches: []Batch{{Activities: activities, Next: models.Position{Block: 12}}}}
	handler := &recordingHandler{failOn: "c"}
	w, err := NewWatcher(storage, source, handler, models.Position{Block: 10}, Config{})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = w.Poll(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, handler.handled)
	assert.Equal(t, 0, storage.saves, "cursor must not move when a record fails")

	handler.failOn = ""
	handled, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	assert.Equal(t, []string{"a", "b", "c"}, handler.handled)
	assert.Equal(t, models.Position{Block: 12}, storage.cursors["base-deposits"])

	// a fresh watcher without the in-memory cache still skips processed keys
	storage.cursors = map[string]models.Position{}
	handler2 := &recordingHandler{}
	w2, err := NewWatcher(storage, source, handler2, models.Position{Block: 10}, Config{})
	require.NoError(t, err)
	handled, err = w2.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, handled)
	assert.Empty(t, handler2.handled)
}

func TestPollCursorIsMonotonic(t *testing.T) {
	storage := newMemStorage()
	storage.cursors["base-deposits"] = models.Position{Block: 50}
	source := &staticSource{name: "base-deposits", batches: []Batch{
		{Activities: block(40, "old"), Next: models.Position{Block: 45}},
	}}
	handler := &recordingHandler{}
	w, err := NewWatcher(storage, source, handler, models.Position{}, Config{})
	require.NoError(t, err)

	_, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, handler.handled)
	assert.Equal(t, models.Position{Block: 50}, storage.cursors["base-deposits"])
	assert.Equal(t, 0, storage.saves)
	assert.Equal(t, models.Position{Block: 50}, source.froms[0])
}

func TestPollAdvancesOnEmptyBatch(t *testing.T) {
	storage := newMemStorage()
	source := &staticSource{name: "base-deposits", batches: []Batch{{Next: models.Position{Block: 99}}}}
	w, err := NewWatcher(storage, source, &recordingHandler{}, models.Position{Block: 10}, Config{})
	require.NoError(t, err)

	_, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Position{Block: 99}, storage.cursors["base-deposits"])
	assert.Equal(t, models.Position{Block: 10}, source.froms[0])
}

func TestPollFetchErrorKeepsCursor(t *testing.T) {
	storage := newMemStorage()
	storage.cursors["base-deposits"] = models.Position{Block: 7}
	source := &staticSource{name: "base-deposits", err: gerror.ErrAllEndpointsFailed}
	w, err := NewWatcher(storage, source, &recordingHandler{}, models.Position{}, Config{})
	require.NoError(t, err)

	_, err = w.Poll(context.Background())
	require.ErrorIs(t, err, gerror.ErrAllEndpointsFailed)
	assert.Equal(t, models.Position{Block: 7}, storage.cursors["base-deposits"])
	assert.Equal(t, 0, storage.saves)
}

func TestPipelineUsesCache(t *testing.T) {
	storage := newMemStorage()
	handler := &recordingHandler{}
	p, err := NewPipeline("hedera-liquidity", storage, handler, 16)
	require.NoError(t, err)

	ctx := context.Background()
	_, handled, err := p.Process(ctx, block(1, "tx-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, handled)
	hits := storage.processedHit

	_, handled, err = p.Process(ctx, block(1, "tx-1"))
	require.NoError(t, err)
	assert.Equal(t, 0, handled)
	assert.Equal(t, hits, storage.processedHit, "cached keys must not reach storage")
}

type fakeEVMClient struct {
	net       network.Config
	latest    uint64
	logs      map[uint64][]types.Log
	failFrom  uint64
	ranges    [][2]uint64
	blocks    map[uint64]*types.Block
	senders   map[common.Hash]common.Address
	contracts map[common.Address]bool
}

func (f *fakeEVMClient) Network() network.Config { return f.net }

func (f *fakeEVMClient) LatestBlock(ctx context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeEVMClient) FilterBridgeDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	if f.failFrom != 0 && fromBlock >= f.failFrom {
		return nil, gerror.ErrAllEndpointsFailed
	}
	f.ranges = append(f.ranges, [2]uint64{fromBlock, toBlock})
	var out []types.Log
	for n := fromBlock; n <= toBlock; n++ {
		out = append(out, f.logs[n]...)
	}
	return out, nil
}

func (f *fakeEVMClient) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	if f.failFrom != 0 && number >= f.failFrom {
		return nil, gerror.ErrAllEndpointsFailed
	}
	if b, ok := f.blocks[number]; ok {
		return b, nil
	}
	return types.NewBlockWithHeader(&types.Header{Number: new(big.Int).SetUint64(number)}), nil
}

func (f *fakeEVMClient) Sender(tx *types.Transaction) (common.Address, error) {
	return f.senders[tx.Hash()], nil
}

func (f *fakeEVMClient) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	return f.contracts[addr], nil
}

func TestEVMDepositSourceChunks(t *testing.T) {
	client := &fakeEVMClient{
		net:    network.Config{Name: "base", Confirmations: 5, StartBlock: 50},
		latest: 100,
		logs: map[uint64][]types.Log{
			55: {{Topics: []common.Hash{common.HexToHash("0x01")}, BlockNumber: 55}},
		},
	}
	source := NewEVMDepositSource(client, Config{SyncChunkSize: 10, MaxChunksPerCycle: 2})
	assert.Equal(t, "base-deposits", source.Name())

	batch, err := source.Fetch(context.Background(), models.Position{})
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{50, 59}, {60, 69}}, client.ranges)
	assert.Empty(t, batch.Activities, "undecodable logs are skipped")
	assert.Equal(t, models.Position{Block: 69}, batch.Next)

	client.ranges = nil
	batch, err = source.Fetch(context.Background(), models.Position{Block: 90})
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{91, 95}}, client.ranges)
	assert.Equal(t, models.Position{Block: 95}, batch.Next)

	batch, err = source.Fetch(context.Background(), models.Position{Block: 95})
	require.NoError(t, err)
	assert.Equal(t, models.Position{Block: 95}, batch.Next)
}

func TestFreshCursorScansStartBlock(t *testing.T) {
	client := &fakeEVMClient{
		net:    network.Config{Name: "base", Confirmations: 0, StartBlock: 100},
		latest: 100,
	}
	source := NewEVMDepositSource(client, Config{SyncChunkSize: 10, MaxChunksPerCycle: 1})

	batch, err := source.Fetch(context.Background(), models.Position{})
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{100, 100}}, client.ranges)
	assert.Equal(t, models.Position{Block: 100}, batch.Next)
}

func TestEVMDepositSourcePartialFailure(t *testing.T) {
	client := &fakeEVMClient{
		net:      network.Config{Name: "base", Confirmations: 0, StartBlock: 1},
		latest:   100,
		failFrom: 21,
	}
	source := NewEVMDepositSource(client, Config{SyncChunkSize: 10, MaxChunksPerCycle: 5})

	batch, err := source.Fetch(context.Background(), models.Position{Block: 0})
	require.NoError(t, err)
	assert.Equal(t, models.Position{Block: 20}, batch.Next)

	_, err = source.Fetch(context.Background(), models.Position{Block: 20})
	require.ErrorIs(t, err, gerror.ErrAllEndpointsFailed)
}

func TestEVMLiquiditySource(t *testing.T) {
	pool := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	user := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	contract := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	toPool := types.NewTx(&types.LegacyTx{Nonce: 1, To: &pool, Value: big.NewInt(2e18), Gas: 21000, GasPrice: big.NewInt(1)})
	zero := types.NewTx(&types.LegacyTx{Nonce: 2, To: &pool, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1)})
	fromContract := types.NewTx(&types.LegacyTx{Nonce: 3, To: &pool, Value: big.NewInt(1e18), Gas: 21000, GasPrice: big.NewInt(1)})
	other := common.HexToAddress("0x00000000000000000000000000000000000000ee")
	elsewhere := types.NewTx(&types.LegacyTx{Nonce: 4, To: &other, Value: big.NewInt(1e18), Gas: 21000, GasPrice: big.NewInt(1)})

	header := &types.Header{Number: big.NewInt(8), Time: 1700000000}
	client := &fakeEVMClient{
		net:    network.Config{Name: "base", NativeSymbol: "ETH", NativeDecimals: 18, PoolAddress: pool.Hex(), Confirmations: 2},
		latest: 10,
		blocks: map[uint64]*types.Block{
			8: types.NewBlockWithHeader(header).WithBody([]*types.Transaction{toPool, zero, fromContract, elsewhere}, nil),
		},
		senders: map[common.Hash]common.Address{
			toPool.Hash():       user,
			zero.Hash():         user,
			fromContract.Hash(): contract,
			elsewhere.Hash():    user,
		},
		contracts: map[common.Address]bool{contract: true},
	}
	source := NewEVMLiquiditySource(client, Config{})
	assert.Equal(t, "base-liquidity", source.Name())

	batch, err := source.Fetch(context.Background(), models.Position{Block: 5})
	require.NoError(t, err)
	assert.Equal(t, models.Position{Block: 8}, batch.Next)
	require.Len(t, batch.Activities, 1)
	d := batch.Activities[0].Liquidity
	require.NotNil(t, d)
	assert.Equal(t, toPool.Hash().Hex(), batch.Activities[0].DedupKey)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", d.Wallet)
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "ETH", d.Asset)
	assert.Equal(t, int64(1700000000), d.Timestamp.Unix())
}

type fakeMirror struct {
	logs []hedera.ContractLog
	txs  []hedera.Transaction
	from string
}

func (f *fakeMirror) ContractLogs(ctx context.Context, contractID, fromTimestamp string) ([]hedera.ContractLog, error) {
	f.from = fromTimestamp
	return f.logs, nil
}

func (f *fakeMirror) Transactions(ctx context.Context, accountID, fromTimestamp string) ([]hedera.Transaction, error) {
	f.from = fromTimestamp
	return f.txs, nil
}

func cryptoTransfer(ts, id, result string, from string, amount int64) hedera.Transaction {
	return hedera.Transaction{
		ConsensusTimestamp: ts,
		TransactionID:      id,
		Name:               "CRYPTOTRANSFER",
		Result:             result,
		Transfers: []hedera.Transfer{
			{Account: from, Amount: -amount},
			{Account: "0.0.99", Amount: amount},
		},
	}
}

func TestHederaLiquiditySource(t *testing.T) {
	mirror := &fakeMirror{txs: []hedera.Transaction{
		cryptoTransfer("1700000000.000000001", "0.0.5-1700000000-0", "SUCCESS", "0.0.5", 100000000),
		cryptoTransfer("1700000001.000000001", "0.0.6-1700000001-0", "INSUFFICIENT_PAYER_BALANCE", "0.0.6", 100000000),
		cryptoTransfer("1700000002.500000000", "0.0.7-1700000002-0", "SUCCESS", "0.0.7", 250000000),
	}}
	net := network.Config{Name: "hedera", NativeSymbol: "HBAR", NativeDecimals: 8, PoolAddress: "0.0.99"}
	source := NewHederaLiquiditySource(mirror, net)

	cursor := models.Position{Timestamp: "1700000000.000000001", TxID: "0.0.5-1700000000-0"}
	batch, err := source.Fetch(context.Background(), cursor)
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000000001", mirror.from)
	require.Len(t, batch.Activities, 1, "the cursor tx and failed txs are skipped")
	d := batch.Activities[0].Liquidity
	assert.Equal(t, "0.0.7", d.Wallet)
	assert.Equal(t, "2.5", d.Amount.String())
	assert.Equal(t, "0.0.7-1700000002-0", batch.Activities[0].DedupKey)
	assert.Equal(t, int64(500000000), int64(d.Timestamp.Nanosecond()))
	assert.Equal(t, models.Position{Timestamp: "1700000002.500000000", TxID: "0.0.7-1700000002-0"}, batch.Next)
}

func TestHederaDepositSourceSkipsForeignLogs(t *testing.T) {
	mirror := &fakeMirror{logs: []hedera.ContractLog{
		{Index: 0, Timestamp: "1700000000.000000001", Topics: []string{"0x01"}, TransactionHash: "0xaa"},
		{Index: 1, Timestamp: "1700000000.000000001", Topics: []string{"0x02"}, TransactionHash: "0xaa"},
	}}
	source := NewHederaDepositSource(mirror, network.Config{Name: "hedera", BridgeContract: "0.0.10115692"})
	assert.Equal(t, "hedera-deposits", source.Name())

	batch, err := source.Fetch(context.Background(), models.Position{})
	require.NoError(t, err)
	assert.Empty(t, batch.Activities)
	assert.Equal(t, models.Position{Timestamp: "1700000000.000000001", LogIndex: 1}, batch.Next)
}

func TestConsensusTime(t *testing.T) {
	ts := consensusTime("1700000000.000000042")
	assert.Equal(t, int64(1700000000), ts.Unix())
	assert.Equal(t, 42, ts.Nanosecond())
	assert.True(t, consensusTime("garbage").IsZero())
	assert.Equal(t, float64(12), cursorValue(models.Position{Block: 12}))
	assert.Equal(t, float64(1700000000), cursorValue(models.Position{Timestamp: fmt.Sprintf("%d.1", 1700000000)}))
}
