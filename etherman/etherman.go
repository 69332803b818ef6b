package etherman

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const (
	nativeTransferGas       = 21000
	defaultTransferGas      = 100000
	defaultSwapGas          = 300000
	defaultContractCache    = 1024
	defaultReceiptTimeout   = 2 * time.Minute
	defaultReceiptPollDelay = 2 * time.Second
)

type ethClienter interface {
	ethereum.ChainReader
	ethereum.LogFilterer
	ethereum.TransactionReader
	ethereum.ContractCaller
	ethereum.TransactionSender
	ethereum.GasPricer
	ethereum.ChainStateReader
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type endpoint struct {
	url    string
	client ethClienter
}

// Client talks to one EVM network through an ordered list of JSON-RPC endpoints.
// Reads try each endpoint in order and return the first success.
type Client struct {
	cfg       Config
	network   network.Config
	endpoints []endpoint
	bridge    common.Address
	pool      common.Address
	key       *ecdsa.PrivateKey
	contracts *lru.Cache[common.Address, bool]
}

// NewClient dials every rpc endpoint of the network. key may be nil for read only clients.
func NewClient(cfg Config, net network.Config, key *ecdsa.PrivateKey) (*Client, error) {
	var endpoints []endpoint
	for _, url := range net.RPCURLs {
		ethClient, err := ethclient.Dial(url)
		if err != nil {
			log.Errorf("error connecting to %s: %+v", url, err)
			continue
		}
		endpoints = append(endpoints, endpoint{url: url, client: ethClient})
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("network %s: no reachable rpc endpoint", net.Name)
	}
	return newClient(cfg, net, key, endpoints)
}

func newClient(cfg Config, net network.Config, key *ecdsa.PrivateKey, endpoints []endpoint) (*Client, error) {
	size := cfg.ContractCacheSize
	if size <= 0 {
		size = defaultContractCache
	}
	cache, err := lru.New[common.Address, bool](size)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg,
		network:   net,
		endpoints: endpoints,
		key:       key,
		contracts: cache,
	}
	if net.BridgeContract != "" {
		if c.bridge, err = network.ToEVMAddress(net.BridgeContract); err != nil {
			return nil, err
		}
	}
	switch {
	case net.PoolAddress != "":
		if c.pool, err = network.ToEVMAddress(net.PoolAddress); err != nil {
			return nil, err
		}
	case key != nil:
		c.pool = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Network returns the network the client is connected to
func (c *Client) Network() network.Config {
	return c.network
}

// PoolAddress returns the account holding the pool funds
func (c *Client) PoolAddress() common.Address {
	return c.pool
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout.Duration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout.Duration)
}

// withFallback runs fn against every endpoint in order until one succeeds
func (c *Client) withFallback(ctx context.Context, op string, fn func(ctx context.Context, ec ethClienter) error) error {
	var lastErr error
	for _, e := range c.endpoints {
		callCtx, cancel := c.callCtx(ctx)
		err := fn(callCtx, e.client)
		cancel()
		if err == nil {
			return nil
		}
		if isRevert(err) || errors.Is(err, ethereum.NotFound) {
			return err
		}
		log.Warnf("%s on network %s failed using %s: %v", op, c.network.Name, e.url, err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Wrapf(gerror.ErrAllEndpointsFailed, "%s on network %s: %v", op, c.network.Name, lastErr)
}

func isRevert(err error) bool {
	return strings.Contains(err.Error(), "execution reverted")
}

// LatestBlock returns the last block number known by the network
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.withFallback(ctx, "eth_blockNumber", func(ctx context.Context, ec ethClienter) error {
		var err error
		number, err = ec.BlockNumber(ctx)
		return err
	})
	return number, err
}

// FilterBridgeDeposits returns the BridgeDeposit logs of the bridge contract in [fromBlock, toBlock]
func (c *Client) FilterBridgeDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.bridge},
		Topics:    [][]common.Hash{{BridgeDepositSignatureHash}},
	}
	var logs []types.Log
	err := c.withFallback(ctx, "eth_getLogs", func(ctx context.Context, ec ethClienter) error {
		var err error
		logs, err = ec.FilterLogs(ctx, query)
		return err
	})
	return logs, err
}

// BlockByNumber returns the full block with its transactions
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*types.Block, error) {
	var block *types.Block
	err := c.withFallback(ctx, "eth_getBlockByNumber", func(ctx context.Context, ec ethClienter) error {
		var err error
		block, err = ec.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		return err
	})
	return block, err
}

// Sender recovers the signer of a transaction of this network
func (c *Client) Sender(tx *types.Transaction) (common.Address, error) {
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(c.network.ChainID))
	return types.Sender(signer, tx)
}

// IsContract reports whether code is deployed at addr. Results are cached.
func (c *Client) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	if isContract, ok := c.contracts.Get(addr); ok {
		return isContract, nil
	}
	var code []byte
	err := c.withFallback(ctx, "eth_getCode", func(ctx context.Context, ec ethClienter) error {
		var err error
		code, err = ec.CodeAt(ctx, addr, nil)
		return err
	})
	if err != nil {
		return false, err
	}
	c.contracts.Add(addr, len(code) > 0)
	return len(code) > 0, nil
}

func (c *Client) call(ctx context.Context, op string, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{From: c.pool, To: &to, Data: data}
	var out []byte
	err := c.withFallback(ctx, op, func(ctx context.Context, ec ethClienter) error {
		var err error
		out, err = ec.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}

// valueScale converts native base units into the units of msg.value on the endpoint
func (c *Client) valueScale(amount *big.Int) *big.Int {
	shift := c.network.ValueDecimals() - c.network.NativeDecimals
	if shift <= 0 {
		return amount
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil) //nolint:gomnd
	return new(big.Int).Mul(amount, factor)
}

func (c *Client) valueUnscale(amount *big.Int) *big.Int {
	shift := c.network.ValueDecimals() - c.network.NativeDecimals
	if shift <= 0 {
		return amount
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil) //nolint:gomnd
	return new(big.Int).Quo(amount, factor)
}

// NativeBalance returns the native balance of the pool
func (c *Client) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance *big.Int
	err := c.withFallback(ctx, "eth_getBalance", func(ctx context.Context, ec ethClienter) error {
		var err error
		balance, err = ec.BalanceAt(ctx, c.pool, nil)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return utils.FromBaseUnits(c.valueUnscale(balance), c.network.NativeDecimals), nil
}

// TokenBalance returns the balance of the pool for an ERC20 token
func (c *Client) TokenBalance(ctx context.Context, token network.Token) (decimal.Decimal, error) {
	tokenAddr, err := token.EVMAddress()
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := c.erc20Uint(ctx, "balanceOf", tokenAddr, c.pool)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.FromBaseUnits(balance, token.Decimals), nil
}

// Allowance returns how much of token owner allowed the bridge contract to spend
func (c *Client) Allowance(ctx context.Context, token network.Token, owner common.Address) (decimal.Decimal, error) {
	tokenAddr, err := token.EVMAddress()
	if err != nil {
		return decimal.Zero, err
	}
	allowance, err := c.erc20Uint(ctx, "allowance", tokenAddr, owner, c.bridge)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.FromBaseUnits(allowance, token.Decimals), nil
}

func (c *Client) erc20Uint(ctx context.Context, method string, tokenAddr common.Address, args ...interface{}) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, method, tokenAddr, data)
	if err != nil {
		return nil, err
	}
	values, err := erc20ABI.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "unpacking %s of %s", method, tokenAddr.Hex())
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output %T", method, values[0])
	}
	return value, nil
}

func (c *Client) swapPath(token network.Token) ([]common.Address, error) {
	if c.network.Router == "" || c.network.WrappedNative == "" {
		return nil, errors.Wrapf(gerror.ErrNoLiquidityPath, "no router configured on %s", c.network.Name)
	}
	wrapped, err := network.ToEVMAddress(c.network.WrappedNative)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := token.EVMAddress()
	if err != nil {
		return nil, err
	}
	return []common.Address{wrapped, tokenAddr}, nil
}

// AmountsOut quotes how much of token the router returns for nativeAmount
func (c *Client) AmountsOut(ctx context.Context, nativeAmount decimal.Decimal, token network.Token) (decimal.Decimal, error) {
	path, err := c.swapPath(token)
	if err != nil {
		return decimal.Zero, err
	}
	router, err := network.ToEVMAddress(c.network.Router)
	if err != nil {
		return decimal.Zero, err
	}
	data, err := routerABI.Pack("getAmountsOut", utils.ToBaseUnits(nativeAmount, c.network.NativeDecimals), path)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := c.call(ctx, "getAmountsOut", router, data)
	if err != nil {
		if isRevert(err) {
			return decimal.Zero, errors.Wrap(gerror.ErrNoLiquidityPath, err.Error())
		}
		return decimal.Zero, err
	}
	values, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return decimal.Zero, errors.Wrap(gerror.ErrNoLiquidityPath, err.Error())
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) < len(path) {
		return decimal.Zero, errors.Wrapf(gerror.ErrNoLiquidityPath, "unexpected router output on %s", c.network.Name)
	}
	return utils.FromBaseUnits(amounts[len(amounts)-1], token.Decimals), nil
}

// TransferNative sends amount of the native currency from the pool to the recipient
func (c *Client) TransferNative(ctx context.Context, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error) {
	recipient, err := network.ToEVMAddress(to)
	if err != nil {
		return "", err
	}
	value := c.valueScale(utils.ToBaseUnits(amount, c.network.NativeDecimals))
	return c.sendAndWait(ctx, recipient, value, nil, nativeTransferGas, onSigned)
}

// TransferToken sends amount of an ERC20 token from the pool to the recipient
func (c *Client) TransferToken(ctx context.Context, token network.Token, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error) {
	recipient, err := network.ToEVMAddress(to)
	if err != nil {
		return "", err
	}
	tokenAddr, err := token.EVMAddress()
	if err != nil {
		return "", err
	}
	data, err := erc20ABI.Pack("transfer", recipient, utils.ToBaseUnits(amount, token.Decimals))
	if err != nil {
		return "", err
	}
	gas := c.cfg.GasLimitTransfer
	if gas == 0 {
		gas = defaultTransferGas
	}
	return c.sendAndWait(ctx, tokenAddr, big.NewInt(0), data, gas, onSigned)
}

// SwapNativeForToken swaps nativeAmount through the router and sends the output to the recipient.
// The swap reverts if less than minOut is received.
func (c *Client) SwapNativeForToken(ctx context.Context, token network.Token, nativeAmount, minOut decimal.Decimal, to string,
	onSigned models.BeforeBroadcast) (string, error) {
	recipient, err := network.ToEVMAddress(to)
	if err != nil {
		return "", err
	}
	path, err := c.swapPath(token)
	if err != nil {
		return "", err
	}
	router, err := network.ToEVMAddress(c.network.Router)
	if err != nil {
		return "", err
	}
	deadline := big.NewInt(time.Now().Add(utils.SwapDeadlineSeconds * time.Second).Unix())
	data, err := routerABI.Pack("swapExactETHForTokens", utils.ToBaseUnits(minOut, token.Decimals), path, recipient, deadline)
	if err != nil {
		return "", err
	}
	gas := c.cfg.GasLimitSwap
	if gas == 0 {
		gas = defaultSwapGas
	}
	value := c.valueScale(utils.ToBaseUnits(nativeAmount, c.network.NativeDecimals))
	return c.sendAndWait(ctx, router, value, data, gas, onSigned)
}

// sendAndWait signs a transaction from the pool, broadcasts it and waits for its receipt.
// onSigned, when set, gets the hash before the broadcast and aborts it on error. Once signed,
// failures are reported with the tx hash and ErrTxUnconfirmed or ErrTxReverted, since a send
// error does not prove that no endpoint relayed the transaction.
func (c *Client) sendAndWait(ctx context.Context, to common.Address, value *big.Int, data []byte, gas uint64,
	onSigned models.BeforeBroadcast) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("network %s: operator key is not configured", c.network.Name)
	}
	from := crypto.PubkeyToAddress(c.key.PublicKey)
	var (
		nonce    uint64
		gasPrice *big.Int
	)
	err := c.withFallback(ctx, "eth_getTransactionCount", func(ctx context.Context, ec ethClienter) error {
		var err error
		nonce, err = ec.PendingNonceAt(ctx, from)
		return err
	})
	if err != nil {
		return "", err
	}
	err = c.withFallback(ctx, "eth_gasPrice", func(ctx context.Context, ec ethClienter) error {
		var err error
		gasPrice, err = ec.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(c.network.ChainID))
	signedTx, err := types.SignTx(tx, signer, c.key)
	if err != nil {
		return "", err
	}
	txHash := signedTx.Hash()
	if onSigned != nil {
		if err := onSigned(txHash.Hex()); err != nil {
			return "", errors.Wrapf(err, "tx %s not sent", txHash.Hex())
		}
	}
	err = c.withFallback(ctx, "eth_sendRawTransaction", func(ctx context.Context, ec ethClienter) error {
		err := ec.SendTransaction(ctx, signedTx)
		if err != nil && strings.Contains(err.Error(), "already known") {
			return nil
		}
		return err
	})
	if err != nil {
		return txHash.Hex(), errors.Wrapf(gerror.ErrTxUnconfirmed, "tx %s: %v", txHash.Hex(), err)
	}
	log.Infof("network %s: tx %s sent to %s, waiting for receipt", c.network.Name, txHash.Hex(), to.Hex())
	return c.waitReceipt(ctx, txHash)
}

// TxState looks a transaction up on every endpoint. It is only reported as not found
// when no endpoint knows it.
func (c *Client) TxState(ctx context.Context, txHash string) (models.TxState, error) {
	if !strings.HasPrefix(txHash, "0x") || len(txHash) != 2+2*common.HashLength {
		return "", fmt.Errorf("invalid tx hash %q", txHash)
	}
	hash := common.HexToHash(txHash)
	var (
		lastErr  error
		answered bool
	)
	for _, e := range c.endpoints {
		state, err := c.txStateAt(ctx, e.client, hash)
		if err != nil {
			log.Warnf("tx lookup on network %s failed using %s: %v", c.network.Name, e.url, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		answered = true
		if state != models.TxStateNotFound {
			return state, nil
		}
	}
	if !answered {
		return "", errors.Wrapf(gerror.ErrAllEndpointsFailed, "tx lookup on network %s: %v", c.network.Name, lastErr)
	}
	return models.TxStateNotFound, nil
}

func (c *Client) txStateAt(ctx context.Context, ec ethClienter, hash common.Hash) (models.TxState, error) {
	callCtx, cancel := c.callCtx(ctx)
	defer cancel()
	receipt, err := ec.TransactionReceipt(callCtx, hash)
	if err == nil && receipt != nil {
		if receipt.Status != types.ReceiptStatusSuccessful {
			return models.TxStateReverted, nil
		}
		return models.TxStateSuccess, nil
	}
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		return "", err
	}
	_, _, err = ec.TransactionByHash(callCtx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return models.TxStateNotFound, nil
	} else if err != nil {
		return "", err
	}
	// Known but without receipt: in the mempool or mined on a node that has not indexed it yet
	return models.TxStatePending, nil
}

func (c *Client) waitReceipt(ctx context.Context, txHash common.Hash) (string, error) {
	timeout := c.cfg.ReceiptTimeout.Duration
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}
	interval := c.cfg.ReceiptPollInterval.Duration
	if interval <= 0 {
		interval = defaultReceiptPollDelay
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		var receipt *types.Receipt
		err := c.withFallback(waitCtx, "eth_getTransactionReceipt", func(ctx context.Context, ec ethClienter) error {
			var err error
			receipt, err = ec.TransactionReceipt(ctx, txHash)
			return err
		})
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return txHash.Hex(), errors.Wrapf(gerror.ErrTxReverted, "tx %s", txHash.Hex())
			}
			return txHash.Hex(), nil
		}
		select {
		case <-waitCtx.Done():
			return txHash.Hex(), errors.Wrapf(gerror.ErrTxUnconfirmed, "tx %s", txHash.Hex())
		case <-time.After(interval):
		}
	}
}
