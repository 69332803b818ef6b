package releasetxman

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/messagepush"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

type fakeClient struct {
	net       network.Config
	native    decimal.Decimal
	tokens    map[string]decimal.Decimal
	quotePer1 decimal.Decimal
	// signErr fails a payout before it is signed, sendErr after
	signErr  error
	sendErr  error
	states   map[string]models.TxState
	stateErr error

	nativeSent []decimal.Decimal
	tokenSent  []decimal.Decimal
	swaps      [][2]decimal.Decimal
}

func (f *fakeClient) Network() network.Config { return f.net }

func (f *fakeClient) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	return f.native, nil
}

func (f *fakeClient) TokenBalance(ctx context.Context, token network.Token) (decimal.Decimal, error) {
	return f.tokens[token.Symbol], nil
}

func (f *fakeClient) AmountsOut(ctx context.Context, nativeAmount decimal.Decimal, token network.Token) (decimal.Decimal, error) {
	if f.quotePer1.IsZero() {
		return decimal.Zero, gerror.ErrNoLiquidityPath
	}
	return nativeAmount.Mul(f.quotePer1).Truncate(token.Decimals), nil
}

// send signs txHash, hands it to onSigned and broadcasts it
func (f *fakeClient) send(txHash string, onSigned models.BeforeBroadcast, broadcast func()) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	if err := onSigned(txHash); err != nil {
		return "", err
	}
	if f.sendErr != nil {
		return txHash, f.sendErr
	}
	broadcast()
	if f.states == nil {
		f.states = map[string]models.TxState{}
	}
	f.states[txHash] = models.TxStateSuccess
	return txHash, nil
}

func (f *fakeClient) TransferNative(ctx context.Context, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error) {
	return f.send("0xnative", onSigned, func() { f.nativeSent = append(f.nativeSent, amount) })
}

func (f *fakeClient) TransferToken(ctx context.Context, token network.Token, to string, amount decimal.Decimal, onSigned models.BeforeBroadcast) (string, error) {
	return f.send("0xtoken", onSigned, func() { f.tokenSent = append(f.tokenSent, amount) })
}

func (f *fakeClient) SwapNativeForToken(ctx context.Context, token network.Token, nativeAmount, minOut decimal.Decimal, to string,
	onSigned models.BeforeBroadcast) (string, error) {
	return f.send("0xswap", onSigned, func() { f.swaps = append(f.swaps, [2]decimal.Decimal{nativeAmount, minOut}) })
}

func (f *fakeClient) TxState(ctx context.Context, txHash string) (models.TxState, error) {
	if f.stateErr != nil {
		return "", f.stateErr
	}
	if state, ok := f.states[txHash]; ok {
		return state, nil
	}
	return models.TxStateNotFound, nil
}

type fakeLedger struct {
	deposits    []*models.Deposit
	maxRetries  int
	completeErr []error
}

func (l *fakeLedger) NextPending(ctx context.Context, network string) (*models.Deposit, error) {
	for _, d := range l.deposits {
		if d.DestinationNetwork == network && d.Status == models.DepositStatusPending {
			c := *d
			return &c, nil
		}
	}
	return nil, gerror.ErrStorageNotFound
}

func (l *fakeLedger) get(id uint64) *models.Deposit {
	for _, d := range l.deposits {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (l *fakeLedger) RecordReleaseAttempt(ctx context.Context, id uint64, txHash string, releaseType models.ReleaseType,
	nativeUsed decimal.Decimal) error {
	d := l.get(id)
	if d == nil || d.Status != models.DepositStatusPending || d.ReleaseAttemptTxHash != "" {
		return gerror.ErrInvalidTransition
	}
	d.ReleaseAttemptTxHash, d.ReleaseType, d.ReleaseNativeUsed = txHash, releaseType, nativeUsed
	return nil
}

// Decline moves the deposit behind the others, as its update time changes
func (l *fakeLedger) Decline(ctx context.Context, id uint64, cause error) error {
	for i, d := range l.deposits {
		if d.ID == id && d.Status == models.DepositStatusPending {
			d.LastError = cause.Error()
			l.deposits = append(append(l.deposits[:i:i], l.deposits[i+1:]...), d)
			return nil
		}
	}
	return gerror.ErrInvalidTransition
}

func (l *fakeLedger) Complete(ctx context.Context, id uint64, releaseTxHash string, releaseType models.ReleaseType) error {
	if len(l.completeErr) > 0 {
		err := l.completeErr[0]
		l.completeErr = l.completeErr[1:]
		return err
	}
	d := l.get(id)
	if d == nil || d.Status != models.DepositStatusPending {
		return gerror.ErrInvalidTransition
	}
	d.Status, d.ReleaseTxHash, d.ReleaseType = models.DepositStatusCompleted, releaseTxHash, releaseType
	return nil
}

func (l *fakeLedger) fail(id uint64, cause error, maxRetries int) (models.DepositStatus, error) {
	d := l.get(id)
	if d == nil || d.Status != models.DepositStatusPending {
		return "", gerror.ErrInvalidTransition
	}
	d.Retries++
	d.LastError = cause.Error()
	if d.Retries >= maxRetries {
		d.Status = models.DepositStatusFailed
	}
	return d.Status, nil
}

func (l *fakeLedger) Fail(ctx context.Context, id uint64, cause error) (models.DepositStatus, error) {
	return l.fail(id, cause, l.maxRetries)
}

func (l *fakeLedger) FailNow(ctx context.Context, id uint64, cause error) (models.DepositStatus, error) {
	return l.fail(id, cause, 1)
}

type fakeFees struct {
	distributed []uint64
}

func (f *fakeFees) Distribute(ctx context.Context, depositID uint64) (bool, error) {
	f.distributed = append(f.distributed, depositID)
	return true, nil
}

type fakeLiquidity struct {
	decreased map[string]decimal.Decimal
}

func (f *fakeLiquidity) DecreaseTVL(ctx context.Context, network string, amount decimal.Decimal) error {
	f.decreased[network] = f.decreased[network].Add(amount)
	return nil
}

type env struct {
	client    *fakeClient
	ledger    *fakeLedger
	fees      *fakeFees
	liquidity *fakeLiquidity
	producer  messagepush.KafkaProducer
	tm        *ReleaseTxManager
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEnv(t *testing.T, deposits ...*models.Deposit) *env {
	net, err := network.Preset(network.Base)
	require.NoError(t, err)
	e := &env{
		client:    &fakeClient{net: net, tokens: map[string]decimal.Decimal{}},
		ledger:    &fakeLedger{deposits: deposits, maxRetries: 3},
		fees:      &fakeFees{},
		liquidity: &fakeLiquidity{decreased: map[string]decimal.Decimal{}},
	}
	e.producer, err = messagepush.NewKafkaProducer(messagepush.Config{Topic: "bridge_status"})
	require.NoError(t, err)
	e.tm, err = NewReleaseTxManager(Config{}, e.ledger, e.fees, e.liquidity,
		map[string]PayoutClient{net.Name: e.client}, NewMemoryLocker(), e.producer)
	require.NoError(t, err)
	e.tm.retryDelay = 0
	return e
}

func pending(id uint64, token, amount, native string) *models.Deposit {
	return &models.Deposit{
		ID:                 id,
		Nonce:              "n-" + token,
		Recipient:          "0x00000000000000000000000000000000000000b2",
		TokenTo:            token,
		AmountOut:          d(amount),
		DestNativeAmount:   d(native),
		SourceNetwork:      network.Ethereum,
		DestinationNetwork: network.Base,
		Status:             models.DepositStatusPending,
		UpdatedAt:          time.Now(),
	}
}

func TestDirectTokenPayout(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50.1234567", "0.02"))
	e.client.tokens["USDC"] = d("1000")

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)

	require.Len(t, e.client.tokenSent, 1)
	assert.Equal(t, "50.123456", e.client.tokenSent[0].String())
	dep := e.ledger.get(1)
	assert.Equal(t, models.DepositStatusCompleted, dep.Status)
	assert.Equal(t, "0xtoken", dep.ReleaseTxHash)
	assert.Equal(t, models.ReleaseTokenTransfer, dep.ReleaseType)
	assert.Equal(t, []uint64{1}, e.fees.distributed)
	assert.Empty(t, e.liquidity.decreased)

	msgs := e.producer.GetFakeMessages("bridge_status")
	require.Len(t, msgs, 1)
	assert.True(t, strings.Contains(msgs[0], `\"status\":\"completed\"`))

	done, err = e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSwapFallbackPayout(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50", "1"))
	e.client.native = d("5")
	e.client.quotePer1 = d("900")

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)

	require.Len(t, e.client.swaps, 1)
	assert.Equal(t, "1", e.client.swaps[0][0].String())
	assert.Equal(t, "895.5", e.client.swaps[0][1].String())
	assert.Empty(t, e.client.tokenSent)
	assert.Equal(t, models.ReleaseSwap, e.ledger.get(1).ReleaseType)
	assert.Equal(t, "1", e.liquidity.decreased[network.Base].String())
}

func TestNativePayout(t *testing.T) {
	e := newEnv(t, pending(1, "ETH", "0.5", "0.5"))
	e.client.native = d("2")

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, e.client.nativeSent, 1)
	assert.Equal(t, models.ReleaseNativeTransfer, e.ledger.get(1).ReleaseType)
	assert.Equal(t, "0.5", e.liquidity.decreased[network.Base].String())
}

func TestInsufficientLiquidityLeavesDepositPending(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50", "0.02"))
	e.client.native = d("0.01")

	for i := 0; i < 3; i++ {
		done, err := e.tm.ProcessNext(context.Background(), network.Base)
		require.NoError(t, err)
		assert.False(t, done)
	}
	dep := e.ledger.get(1)
	assert.Equal(t, models.DepositStatusPending, dep.Status)
	assert.Equal(t, 0, dep.Retries)
	assert.Equal(t, gerror.ErrInsufficientLiquidity.Error(), dep.LastError)
	assert.Empty(t, dep.ReleaseAttemptTxHash)
	assert.Empty(t, e.client.tokenSent)
	assert.Empty(t, e.client.swaps)
	assert.Empty(t, e.fees.distributed)
	assert.Empty(t, e.producer.GetFakeMessages("bridge_status"))

	// Liquidity comes back
	e.client.tokens["USDC"] = d("100")
	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, models.DepositStatusCompleted, e.ledger.get(1).Status)
}

func TestDeclinedDepositDoesNotBlockOthers(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50", "0.02"), pending(2, "ETH", "0.005", "0.005"))
	e.client.native = d("0.01")

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, models.DepositStatusPending, e.ledger.get(1).Status)
	assert.Equal(t, models.DepositStatusCompleted, e.ledger.get(2).Status)
	require.Len(t, e.client.nativeSent, 1)
}

func TestUnconfirmedPayoutFailsAtOnce(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50", "0.02"))
	e.client.tokens["USDC"] = d("1000")
	e.client.sendErr = gerror.ErrTxUnconfirmed

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.False(t, done)
	dep := e.ledger.get(1)
	assert.Equal(t, models.DepositStatusFailed, dep.Status)
	assert.Empty(t, dep.ReleaseTxHash)
	assert.Equal(t, "0xtoken", dep.ReleaseAttemptTxHash)
}

func TestBroadcastErrorAfterSigningFailsAtOnce(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50", "0.02"))
	e.client.tokens["USDC"] = d("1000")
	e.client.sendErr = errors.New("connection reset")

	_, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	dep := e.ledger.get(1)
	assert.Equal(t, models.DepositStatusFailed, dep.Status)
	assert.Equal(t, 1, dep.Retries)
}

func TestTransientSendErrorRetries(t *testing.T) {
	e := newEnv(t, pending(1, "USDC", "50", "0.02"))
	e.client.tokens["USDC"] = d("1000")
	e.client.signErr = errors.New("connection refused")

	_, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, e.ledger.get(1).Status)
	assert.Equal(t, 1, e.ledger.get(1).Retries)
	assert.Empty(t, e.ledger.get(1).ReleaseAttemptTxHash)

	e.client.signErr = nil
	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, models.DepositStatusCompleted, e.ledger.get(1).Status)
}

func TestUnrecordedPayoutIsNotPaidTwiceAfterRestart(t *testing.T) {
	e := newEnv(t, pending(1, "ETH", "0.5", "0.5"))
	e.client.native = d("2")
	dbErr := errors.New("db down")
	e.ledger.completeErr = []error{dbErr, dbErr, dbErr}

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.ErrorIs(t, err, dbErr)
	assert.False(t, done)
	assert.Equal(t, models.DepositStatusPending, e.ledger.get(1).Status)
	assert.Equal(t, "0xnative", e.ledger.get(1).ReleaseAttemptTxHash)
	assert.Empty(t, e.liquidity.decreased)

	// A new process shares nothing with the first one but the ledger and the chain
	restarted, err := NewReleaseTxManager(Config{}, e.ledger, e.fees, e.liquidity,
		map[string]PayoutClient{network.Base: e.client}, NewMemoryLocker(), nil)
	require.NoError(t, err)
	restarted.retryDelay = 0

	done, err = restarted.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, e.client.nativeSent, 1)
	dep := e.ledger.get(1)
	assert.Equal(t, models.DepositStatusCompleted, dep.Status)
	assert.Equal(t, "0xnative", dep.ReleaseTxHash)
	assert.Equal(t, models.ReleaseNativeTransfer, dep.ReleaseType)
	assert.Equal(t, "0.5", e.liquidity.decreased[network.Base].String())
	assert.Equal(t, []uint64{1}, e.fees.distributed)
}

func TestReleaseAttemptReconciliation(t *testing.T) {
	attempted := func() *models.Deposit {
		dep := pending(1, "USDC", "50", "0.02")
		dep.ReleaseAttemptTxHash, dep.ReleaseType = "0xsigned", models.ReleaseTokenTransfer
		return dep
	}

	t.Run("pending tx is left alone", func(t *testing.T) {
		e := newEnv(t, attempted())
		e.client.tokens["USDC"] = d("1000")
		e.client.states = map[string]models.TxState{"0xsigned": models.TxStatePending}
		done, err := e.tm.ProcessNext(context.Background(), network.Base)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, models.DepositStatusPending, e.ledger.get(1).Status)
		assert.Empty(t, e.client.tokenSent)
	})
	t.Run("lookup error changes nothing", func(t *testing.T) {
		e := newEnv(t, attempted())
		e.client.stateErr = errors.New("rpc down")
		_, err := e.tm.ProcessNext(context.Background(), network.Base)
		require.Error(t, err)
		assert.Equal(t, models.DepositStatusPending, e.ledger.get(1).Status)
		assert.Equal(t, 0, e.ledger.get(1).Retries)
	})
	t.Run("reverted tx fails the deposit", func(t *testing.T) {
		e := newEnv(t, attempted())
		e.client.states = map[string]models.TxState{"0xsigned": models.TxStateReverted}
		_, err := e.tm.ProcessNext(context.Background(), network.Base)
		require.NoError(t, err)
		dep := e.ledger.get(1)
		assert.Equal(t, models.DepositStatusFailed, dep.Status)
		assert.Contains(t, dep.LastError, gerror.ErrTxReverted.Error())
	})
	t.Run("unknown tx fails the deposit without paying", func(t *testing.T) {
		e := newEnv(t, attempted())
		e.client.tokens["USDC"] = d("1000")
		_, err := e.tm.ProcessNext(context.Background(), network.Base)
		require.NoError(t, err)
		dep := e.ledger.get(1)
		assert.Equal(t, models.DepositStatusFailed, dep.Status)
		assert.Contains(t, dep.LastError, gerror.ErrTxUnconfirmed.Error())
		assert.Empty(t, e.client.tokenSent)
		msgs := e.producer.GetFakeMessages("bridge_status")
		require.Len(t, msgs, 1)
		assert.True(t, strings.Contains(msgs[0], `\"status\":\"failed\"`))
	})
}

func TestLockHeldElsewhereSkips(t *testing.T) {
	e := newEnv(t, pending(1, "ETH", "0.5", "0.5"))
	e.client.native = d("2")
	unlock, err := e.tm.locker.Lock(context.Background(), "payout:"+network.Base)
	require.NoError(t, err)

	done, err := e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, e.client.nativeSent)

	unlock()
	done, err = e.tm.ProcessNext(context.Background(), network.Base)
	require.NoError(t, err)
	assert.True(t, done)
}

type fakeLockStorage struct {
	held map[string]string
}

func (f *fakeLockStorage) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	f.held[key] = "token-" + key
	return f.held[key], true, nil
}

func (f *fakeLockStorage) ReleaseLock(ctx context.Context, key, token string) error {
	if f.held[key] == token {
		delete(f.held, key)
	}
	return nil
}

func TestRedisLocker(t *testing.T) {
	storage := &fakeLockStorage{held: map[string]string{}}
	l := NewRedisLocker(storage, 0)

	unlock, err := l.Lock(context.Background(), "payout:base")
	require.NoError(t, err)
	_, err = l.Lock(context.Background(), "payout:base")
	require.ErrorIs(t, err, gerror.ErrLockNotAcquired)
	unlock()
	assert.Empty(t, storage.held)
}
