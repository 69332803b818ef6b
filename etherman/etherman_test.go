package etherman

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

type fakeEthClient struct {
	ethClienter
	blockNumber uint64
	balance     *big.Int
	code        []byte
	callOut     []byte
	err         error
	calls       int
}

func (f *fakeEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	f.calls++
	return f.blockNumber, f.err
}

func (f *fakeEthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.calls++
	return f.balance, f.err
}

func (f *fakeEthClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	return f.code, f.err
}

func (f *fakeEthClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	return f.callOut, f.err
}

func testClient(t *testing.T, net network.Config, clients ...*fakeEthClient) *Client {
	var endpoints []endpoint
	for i, c := range clients {
		endpoints = append(endpoints, endpoint{url: string(rune('a' + i)), client: c})
	}
	c, err := newClient(Config{}, net, nil, endpoints)
	require.NoError(t, err)
	return c
}

func preset(t *testing.T, name string) network.Config {
	net, err := network.Preset(name)
	require.NoError(t, err)
	return net
}

func bridgeDepositLog(t *testing.T, amount int64) types.Log {
	data, err := bridgeABI.Events[bridgeDepositEvent].Inputs.NonIndexed().Pack(
		amount,
		common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		uint64(8453),
	)
	require.NoError(t, err)
	return types.Log{
		Topics: []common.Hash{
			BridgeDepositSignatureHash,
			utils.NonceHash("3b241101-e2bb-4255-8caf-4136c566a962"),
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000cc").Bytes()),
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000dd").Bytes()),
		},
		Data:        data,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
		BlockNumber: 120,
	}
}

func TestDecodeBridgeDeposit(t *testing.T) {
	deposit, err := DecodeBridgeDeposit(bridgeDepositLog(t, 1500000))
	require.NoError(t, err)
	assert.Equal(t, utils.NonceHash("3b241101-e2bb-4255-8caf-4136c566a962"), deposit.NonceHash)
	assert.Equal(t, common.HexToAddress("0xcc").Hex(), deposit.From)
	assert.Equal(t, common.HexToAddress("0xdd").Hex(), deposit.TokenFrom)
	assert.Equal(t, "1500000", deposit.Amount.String())
	assert.Equal(t, common.HexToAddress("0xaa").Hex(), deposit.To)
	assert.Equal(t, common.HexToAddress("0xbb").Hex(), deposit.PoolAddress)
	assert.Equal(t, uint64(8453), deposit.DestChainID)
	assert.Equal(t, uint(3), deposit.LogIndex)
	assert.Equal(t, uint64(120), deposit.BlockNumber)
}

func TestDecodeBridgeDepositSkipsOtherLogs(t *testing.T) {
	vLog := bridgeDepositLog(t, 1500000)
	vLog.Topics[0] = common.HexToHash("0xdead")
	_, err := DecodeBridgeDeposit(vLog)
	assert.ErrorIs(t, err, ErrNotBridgeDeposit)

	vLog = bridgeDepositLog(t, 1500000)
	vLog.Data = vLog.Data[:10]
	_, err = DecodeBridgeDeposit(vLog)
	assert.ErrorIs(t, err, ErrNotBridgeDeposit)

	_, err = DecodeBridgeDeposit(bridgeDepositLog(t, 0))
	assert.ErrorIs(t, err, ErrNotBridgeDeposit)

	vLog = bridgeDepositLog(t, 1500000)
	vLog.Topics = vLog.Topics[:2]
	_, err = DecodeBridgeDeposit(vLog)
	assert.ErrorIs(t, err, ErrNotBridgeDeposit)
}

func TestEndpointFallback(t *testing.T) {
	net := preset(t, network.Base)
	down := &fakeEthClient{err: errors.New("connection refused")}
	up := &fakeEthClient{blockNumber: 42}
	c := testClient(t, net, down, up)

	number, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), number)
	assert.Equal(t, 1, down.calls)
	assert.Equal(t, 1, up.calls)

	// first endpoint wins when healthy
	c = testClient(t, net, up, down)
	_, err = c.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, down.calls)

	c = testClient(t, net, down, &fakeEthClient{err: errors.New("timeout")})
	_, err = c.LatestBlock(context.Background())
	assert.ErrorIs(t, err, gerror.ErrAllEndpointsFailed)
}

func TestIsContractCached(t *testing.T) {
	ec := &fakeEthClient{code: []byte{0x60, 0x80}}
	c := testClient(t, preset(t, network.Base), ec)
	addr := common.HexToAddress("0x1234")
	for i := 0; i < 3; i++ {
		isContract, err := c.IsContract(context.Background(), addr)
		require.NoError(t, err)
		assert.True(t, isContract)
	}
	assert.Equal(t, 1, ec.calls)
}

func TestNativeBalanceRelayDecimals(t *testing.T) {
	net := preset(t, network.Hedera)
	net.PoolAddress = "0.0.1234"
	weibars, _ := new(big.Int).SetString("5000000000000000000", 10)
	c := testClient(t, net, &fakeEthClient{balance: weibars})

	balance, err := c.NativeBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "5", balance.String())

	assert.Equal(t, weibars.String(), c.valueScale(big.NewInt(500000000)).String())
}

func TestAmountsOut(t *testing.T) {
	net := preset(t, network.Base)
	usdc, err := net.Token("USDC")
	require.NoError(t, err)

	out, err := routerABI.Methods["getAmountsOut"].Outputs.Pack([]*big.Int{big.NewInt(1), big.NewInt(1800000000)})
	require.NoError(t, err)
	c := testClient(t, net, &fakeEthClient{callOut: out})
	quote, err := c.AmountsOut(context.Background(), decimal.NewFromInt(1), usdc)
	require.NoError(t, err)
	assert.Equal(t, "1800", quote.String())

	c = testClient(t, net, &fakeEthClient{err: errors.New("execution reverted: UniswapV2Library: INSUFFICIENT_LIQUIDITY")})
	_, err = c.AmountsOut(context.Background(), decimal.NewFromInt(1), usdc)
	assert.ErrorIs(t, err, gerror.ErrNoLiquidityPath)
}

func TestSendWithoutKey(t *testing.T) {
	c := testClient(t, preset(t, network.Base), &fakeEthClient{})
	_, err := c.TransferNative(context.Background(), "0x00000000000000000000000000000000000000aa", decimal.NewFromInt(1), nil)
	require.Error(t, err)
}

type txEthClient struct {
	fakeEthClient
	sendErr    error
	sent       int
	receipt    *types.Receipt
	receiptErr error
	byHashErr  error
}

func (f *txEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 7, nil
}

func (f *txEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1000000000), nil
}

func (f *txEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent++
	return f.sendErr
}

func (f *txEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *txEthClient) TransactionByHash(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error) {
	if f.byHashErr != nil {
		return nil, false, f.byHashErr
	}
	return &types.Transaction{}, true, nil
}

func keyedClient(t *testing.T, clients ...*txEthClient) *Client {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	var endpoints []endpoint
	for i, c := range clients {
		endpoints = append(endpoints, endpoint{url: string(rune('a' + i)), client: c})
	}
	c, err := newClient(Config{}, preset(t, network.Base), key, endpoints)
	require.NoError(t, err)
	return c
}

func TestSendFailureAfterSigningIsUnconfirmed(t *testing.T) {
	refused := errors.New("connection refused")
	a, b := &txEthClient{sendErr: refused}, &txEthClient{sendErr: refused}
	c := keyedClient(t, a, b)

	var signed string
	txHash, err := c.TransferNative(context.Background(), "0x00000000000000000000000000000000000000aa", decimal.NewFromInt(1),
		func(txHash string) error {
			signed = txHash
			return nil
		})
	require.ErrorIs(t, err, gerror.ErrTxUnconfirmed)
	assert.NotEmpty(t, signed)
	assert.Equal(t, signed, txHash)
	assert.Equal(t, 1, a.sent)
	assert.Equal(t, 1, b.sent)
}

func TestFailedBeforeBroadcastHookAbortsSend(t *testing.T) {
	a := &txEthClient{}
	c := keyedClient(t, a)
	dbErr := errors.New("db down")

	_, err := c.TransferNative(context.Background(), "0x00000000000000000000000000000000000000aa", decimal.NewFromInt(1),
		func(string) error { return dbErr })
	require.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, gerror.ErrTxUnconfirmed)
	assert.Zero(t, a.sent)
}

func TestTxState(t *testing.T) {
	txHash := common.HexToHash("0x01").Hex()
	success := &types.Receipt{Status: types.ReceiptStatusSuccessful}
	reverted := &types.Receipt{Status: types.ReceiptStatusFailed}

	state, err := keyedClient(t, &txEthClient{byHashErr: ethereum.NotFound}, &txEthClient{receipt: success}).TxState(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, models.TxStateSuccess, state)

	state, err = keyedClient(t, &txEthClient{receipt: reverted}).TxState(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, models.TxStateReverted, state)

	state, err = keyedClient(t, &txEthClient{}).TxState(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatePending, state)

	state, err = keyedClient(t, &txEthClient{byHashErr: ethereum.NotFound}, &txEthClient{receiptErr: errors.New("timeout")}).
		TxState(context.Background(), txHash)
	require.NoError(t, err)
	assert.Equal(t, models.TxStateNotFound, state)

	_, err = keyedClient(t, &txEthClient{receiptErr: errors.New("timeout")}).TxState(context.Background(), txHash)
	require.ErrorIs(t, err, gerror.ErrAllEndpointsFailed)

	_, err = keyedClient(t, &txEthClient{}).TxState(context.Background(), "0.0.1001@1700000000.1")
	require.Error(t, err)
}
