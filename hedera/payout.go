package hedera

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/ethereum/go-ethereum/common"
	hederasdk "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/etherman"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

// txExpiry bounds how long after its valid start a transaction can still reach consensus,
// the network rejecting valid durations above three minutes
const txExpiry = 3*time.Minute + 30*time.Second

// PayoutClient funds payouts from the hedera pool account. Transfers are submitted
// with the hedera sdk and signed with the operator key, so the pool is the operator
// account. Swaps go through the JSON-RPC relay.
type PayoutClient struct {
	net    network.Config
	client *hederasdk.Client
	pool   hederasdk.AccountID
	mirror *MirrorClient
	relay  *etherman.Client
}

// NewPayoutClient creates the payout client of the hedera network. relay may be nil,
// in which case no swap fallback is available.
func NewPayoutClient(cfg Config, net network.Config, mirror *MirrorClient, relay *etherman.Client) (*PayoutClient, error) {
	operatorID, err := hederasdk.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hedera operator id")
	}
	pool := operatorID
	if net.PoolAddress != "" {
		if pool, err = ParseAccountID(net.PoolAddress); err != nil {
			return nil, err
		}
		if pool.String() != operatorID.String() {
			return nil, fmt.Errorf("hedera pool account %s must be the operator account %s: transfers are signed with the operator key only",
				net.PoolAddress, operatorID.String())
		}
	}
	operatorKey, err := hederasdk.PrivateKeyFromString(cfg.OperatorKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hedera operator key")
	}
	var client *hederasdk.Client
	if net.Mainnet {
		client = hederasdk.ClientForMainnet()
	} else {
		client = hederasdk.ClientForTestnet()
	}
	client.SetOperator(operatorID, operatorKey)
	if cfg.RequestTimeout.Duration > 0 {
		timeout := cfg.RequestTimeout.Duration
		client.SetRequestTimeout(&timeout)
	}
	return &PayoutClient{net: net, client: client, pool: pool, mirror: mirror, relay: relay}, nil
}

// ParseAccountID accepts an account id (0.0.x), a long-zero EVM address or an EVM alias
func ParseAccountID(s string) (hederasdk.AccountID, error) {
	if network.IsEntityID(s) {
		return hederasdk.AccountIDFromString(s)
	}
	if !common.IsHexAddress(s) {
		return hederasdk.AccountID{}, fmt.Errorf("invalid hedera account %q", s)
	}
	addr := common.HexToAddress(s)
	if isLongZero(addr) {
		return hederasdk.AccountID{
			Shard:   uint64(binary.BigEndian.Uint32(addr[0:4])),
			Realm:   binary.BigEndian.Uint64(addr[4:12]),
			Account: binary.BigEndian.Uint64(addr[12:20]),
		}, nil
	}
	return hederasdk.AccountIDFromEvmAddress(0, 0, strings.TrimPrefix(strings.ToLower(s), "0x"))
}

func isLongZero(addr common.Address) bool {
	for _, b := range addr[:12] {
		if b != 0 {
			return false
		}
	}
	return true
}

// Network returns the hedera network configuration
func (p *PayoutClient) Network() network.Config {
	return p.net
}

// NativeBalance returns the hbar balance of the pool
func (p *PayoutClient) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	balance, err := hederasdk.NewAccountBalanceQuery().SetAccountID(p.pool).Execute(p.client)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "hedera account balance query")
	}
	return decimal.New(balance.Hbars.AsTinybar(), -p.net.NativeDecimals), nil
}

// TokenBalance returns the balance of an HTS token held by the pool
func (p *PayoutClient) TokenBalance(ctx context.Context, token network.Token) (decimal.Decimal, error) {
	balance, err := p.mirror.TokenBalance(ctx, p.pool.String(), token.Address)
	if err != nil {
		return decimal.Zero, err
	}
	return utils.FromBaseUnits(balance, token.Decimals), nil
}

// AmountsOut quotes a swap of hbar for token through the relay
func (p *PayoutClient) AmountsOut(ctx context.Context, nativeAmount decimal.Decimal, token network.Token) (decimal.Decimal, error) {
	if p.relay == nil {
		return decimal.Zero, errors.Wrap(gerror.ErrNoLiquidityPath, "no relay configured for hedera")
	}
	return p.relay.AmountsOut(ctx, nativeAmount, token)
}

// SwapNativeForToken swaps hbar for token through the relay, sending the output to the recipient
func (p *PayoutClient) SwapNativeForToken(ctx context.Context, token network.Token, nativeAmount, minOut decimal.Decimal, to string,
	onSigned models.BeforeBroadcast) (string, error) {
	if p.relay == nil {
		return "", errors.Wrap(gerror.ErrNoLiquidityPath, "no relay configured for hedera")
	}
	recipient, err := network.ToEVMAddress(to)
	if err != nil {
		return "", err
	}
	return p.relay.SwapNativeForToken(ctx, token, nativeAmount, minOut, recipient.Hex(), onSigned)
}

// TransferNative sends hbar from the pool to the recipient
func (p *PayoutClient) TransferNative(ctx context.Context, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error) {
	recipient, err := ParseAccountID(to)
	if err != nil {
		return "", err
	}
	tinybars := utils.ToBaseUnits(amount, p.net.NativeDecimals).Int64()
	tx := hederasdk.NewTransferTransaction().
		AddHbarTransfer(p.pool, hederasdk.HbarFromTinybar(-tinybars)).
		AddHbarTransfer(recipient, hederasdk.HbarFromTinybar(tinybars))
	return p.execute(ctx, tx, onSigned)
}

// TransferToken sends an HTS token from the pool to the recipient
func (p *PayoutClient) TransferToken(ctx context.Context, token network.Token, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error) {
	recipient, err := ParseAccountID(to)
	if err != nil {
		return "", err
	}
	tokenID, err := hederasdk.TokenIDFromString(token.Address)
	if err != nil {
		return "", errors.Wrapf(err, "invalid hts token %s", token.Address)
	}
	units := utils.ToBaseUnits(amount, token.Decimals).Int64()
	tx := hederasdk.NewTransferTransaction().
		AddTokenTransfer(tokenID, p.pool, -units).
		AddTokenTransfer(tokenID, recipient, units)
	return p.execute(ctx, tx, onSigned)
}

// execute freezes tx, so that its id is final, hands the id to onSigned and submits it.
// Once onSigned accepted the id, failures are reported as ErrTxUnconfirmed or ErrTxReverted.
func (p *PayoutClient) execute(ctx context.Context, tx *hederasdk.TransferTransaction, onSigned models.BeforeBroadcast) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	frozen, err := tx.FreezeWith(p.client)
	if err != nil {
		return "", errors.Wrap(err, "freezing hedera transfer")
	}
	txID := frozen.GetTransactionID().String()
	if onSigned != nil {
		if err := onSigned(txID); err != nil {
			return "", errors.Wrapf(err, "tx %s not sent", txID)
		}
	}
	resp, err := frozen.Execute(p.client)
	if err != nil {
		return txID, errors.Wrapf(gerror.ErrTxUnconfirmed, "tx %s: submitting hedera transfer: %v", txID, err)
	}
	receipt, err := resp.GetReceipt(p.client)
	var statusErr hederasdk.ErrHederaReceiptStatus
	if errors.As(err, &statusErr) {
		return txID, errors.Wrapf(gerror.ErrTxReverted, "tx %s: %s", txID, statusErr.Status.String())
	}
	if err != nil {
		return txID, errors.Wrapf(gerror.ErrTxUnconfirmed, "tx %s: %v", txID, err)
	}
	if receipt.Status != hederasdk.StatusSuccess {
		return txID, errors.Wrapf(gerror.ErrTxReverted, "tx %s: %s", txID, receipt.Status.String())
	}
	log.Infof("hedera transfer %s executed", txID)
	return txID, nil
}

// TxState reports the outcome of a payout. Relay swaps are looked up on the relay,
// sdk transfers on the mirror node.
func (p *PayoutClient) TxState(ctx context.Context, txHash string) (models.TxState, error) {
	if strings.HasPrefix(txHash, "0x") {
		if p.relay == nil {
			return "", fmt.Errorf("no relay configured for hedera to look up %s", txHash)
		}
		return p.relay.TxState(ctx, txHash)
	}
	return mirrorTxState(ctx, p.mirror, txHash, time.Now())
}

// mirrorTxState reads a transfer from the mirror node. A transaction the mirror node does
// not know is pending until it expires, as it may still reach consensus.
func mirrorTxState(ctx context.Context, mirror *MirrorClient, txID string, now time.Time) (models.TxState, error) {
	_, validStart, err := parseTransactionID(txID)
	if err != nil {
		return "", err
	}
	txs, err := mirror.TransactionsByID(ctx, txID)
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		if now.Before(validStart.Add(txExpiry)) {
			return models.TxStatePending, nil
		}
		return models.TxStateNotFound, nil
	}
	if txs[0].Result != transactionSuccess {
		return models.TxStateReverted, nil
	}
	return models.TxStateSuccess, nil
}
