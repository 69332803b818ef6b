package feedistributor

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/registry"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

type memStore struct {
	deposits  map[uint64]*models.Deposit
	fees      map[uint64]*models.FeeDistribution
	lps       []*models.LiquidityProvider
	pools     map[string]*models.Pool
	registers map[string]decimal.Decimal
	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{
		deposits: map[uint64]*models.Deposit{},
		fees:     map[uint64]*models.FeeDistribution{},
		pools:    map[string]*models.Pool{"base": {Network: "base"}},
		registers: map[string]decimal.Decimal{
			registry.KeyFeePct:   decimal.NewFromInt(2),
			registry.KeyLPFeePct: decimal.NewFromInt(50),
		},
	}
}

func (m *memStore) GetDepositByID(ctx context.Context, id uint64, dbTx pgx.Tx) (*models.Deposit, error) {
	d, ok := m.deposits[id]
	if !ok {
		return nil, gerror.ErrStorageNotFound
	}
	return d, nil
}

func (m *memStore) GetCompletedDepositsWithoutFee(ctx context.Context, limit uint, dbTx pgx.Tx) ([]*models.Deposit, error) {
	var out []*models.Deposit
	for id := uint64(1); id <= uint64(len(m.deposits)); id++ {
		d := m.deposits[id]
		if _, booked := m.fees[id]; d.Status == models.DepositStatusCompleted && !booked {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) GetFeeDistribution(ctx context.Context, depositID uint64, dbTx pgx.Tx) (*models.FeeDistribution, error) {
	f, ok := m.fees[depositID]
	if !ok {
		return nil, gerror.ErrStorageNotFound
	}
	return f, nil
}

func (m *memStore) AddFeeDistribution(ctx context.Context, f *models.FeeDistribution, dbTx pgx.Tx) error {
	if _, ok := m.fees[f.DepositID]; ok {
		return gerror.ErrAlreadyExists
	}
	m.fees[f.DepositID] = f
	return nil
}

func (m *memStore) GetActiveLPs(ctx context.Context, network string, dbTx pgx.Tx) ([]*models.LiquidityProvider, error) {
	var out []*models.LiquidityProvider
	for _, lp := range m.lps {
		if lp.Network == network && lp.Active {
			out = append(out, lp)
		}
	}
	return out, nil
}

func (m *memStore) CreditLPProfit(ctx context.Context, lpID uint64, amount decimal.Decimal, dbTx pgx.Tx) error {
	for _, lp := range m.lps {
		if lp.ID == lpID {
			lp.Profit = lp.Profit.Add(amount)
		}
	}
	return nil
}

func (m *memStore) UpdatePool(ctx context.Context, network string, delta models.PoolDelta, dbTx pgx.Tx) error {
	p, ok := m.pools[network]
	if !ok {
		return gerror.ErrStorageNotFound
	}
	p.FeesGenerated = p.FeesGenerated.Add(delta.FeesGenerated)
	p.Profit = p.Profit.Add(delta.Profit)
	p.AdminFees = p.AdminFees.Add(delta.AdminFees)
	p.RetainedLPFees = p.RetainedLPFees.Add(delta.RetainedLPFees)
	return nil
}

func (m *memStore) GetRegister(ctx context.Context, key string, dbTx pgx.Tx) (decimal.Decimal, error) {
	return m.registers[key], nil
}

func (m *memStore) SetRegister(ctx context.Context, key string, value decimal.Decimal, dbTx pgx.Tx) error {
	m.registers[key] = value
	return nil
}

func (m *memStore) IncrementRegister(ctx context.Context, key string, delta decimal.Decimal, dbTx pgx.Tx) (decimal.Decimal, error) {
	m.registers[key] = m.registers[key].Add(delta)
	return m.registers[key], nil
}

func (m *memStore) BeginDBTransaction(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (m *memStore) Commit(ctx context.Context, dbTx pgx.Tx) error {
	m.commits++
	return nil
}

func (m *memStore) Rollback(ctx context.Context, dbTx pgx.Tx) error {
	m.rollbacks++
	return nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (m *memStore) addCompleted(id uint64, native string) {
	m.deposits[id] = &models.Deposit{
		ID:                 id,
		DestinationNetwork: "base",
		AmountOut:          d("50"),
		DestNativeAmount:   d(native),
		Status:             models.DepositStatusCompleted,
		ReleaseTxHash:      "0xrelease",
	}
}

func newDistributor(t *testing.T, store *memStore, policy Policy) *FeeDistributor {
	f, err := NewFeeDistributor(Config{ZeroLiquidityPolicy: policy}, store, registry.NewRegistry(store))
	require.NoError(t, err)
	return f
}

func TestComputeFee(t *testing.T) {
	split := ComputeFee(d("98"), d("2"), d("50"))
	assert.Equal(t, "2", split.FeeAmount.String())
	assert.Equal(t, "1", split.AdminShare.String())
	assert.Equal(t, "1", split.LPPool.String())

	split = ComputeFee(d("1"), d("3"), d("25"))
	assert.True(t, split.AdminShare.Add(split.LPPool).Equal(split.FeeAmount))

	assert.True(t, ComputeFee(d("10"), decimal.Zero, d("50")).FeeAmount.IsZero())
}

func TestSharesAddUpToPool(t *testing.T) {
	lps := []*models.LiquidityProvider{{Amount: d("1")}, {Amount: d("1")}, {Amount: d("1")}}
	shares := Shares(lps, d("1"))
	assert.Equal(t, "0.333333333333333333", shares[0].String())
	assert.Equal(t, "0.333333333333333334", shares[2].String())
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	assert.Equal(t, "1", sum.String())

	assert.True(t, Shares([]*models.LiquidityProvider{{Amount: decimal.Zero}}, d("1"))[0].IsZero())
}

func TestDistributeProRata(t *testing.T) {
	store := newMemStore()
	store.addCompleted(1, "98")
	store.lps = []*models.LiquidityProvider{
		{ID: 1, Network: "base", Amount: d("30"), Active: true},
		{ID: 2, Network: "base", Amount: d("70"), Active: true},
		{ID: 3, Network: "base", Amount: d("500"), Active: false},
		{ID: 4, Network: "hedera", Amount: d("500"), Active: true},
	}
	f := newDistributor(t, store, PolicyAdmin)

	booked, err := f.Distribute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, booked)
	assert.Equal(t, "0.3", store.lps[0].Profit.String())
	assert.Equal(t, "0.7", store.lps[1].Profit.String())
	assert.True(t, store.lps[2].Profit.IsZero())
	assert.True(t, store.lps[3].Profit.IsZero())
	assert.Equal(t, "1", store.registers[registry.KeyTotalFee].String())
	pool := store.pools["base"]
	assert.Equal(t, "2", pool.FeesGenerated.String())
	assert.Equal(t, "2", pool.Profit.String())
	assert.Equal(t, "1", pool.AdminFees.String())
	assert.True(t, store.fees[1].LPDistributed)

	booked, err = f.Distribute(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, booked, "a deposit fee is booked once")
	assert.Equal(t, "0.3", store.lps[0].Profit.String())
	assert.Equal(t, "2", pool.FeesGenerated.String())
	assert.Equal(t, 1, store.commits)
}

func TestZeroLiquidityPolicy(t *testing.T) {
	cases := []struct {
		policy   Policy
		admin    string
		retained string
		total    string
	}{
		{PolicyAdmin, "2", "0", "2"},
		{PolicyRetain, "1", "1", "1"},
		{PolicyDrop, "1", "0", "1"},
	}
	for _, c := range cases {
		t.Run(string(c.policy), func(t *testing.T) {
			store := newMemStore()
			store.addCompleted(1, "98")
			booked, err := newDistributor(t, store, c.policy).Distribute(context.Background(), 1)
			require.NoError(t, err)
			assert.True(t, booked)
			pool := store.pools["base"]
			assert.Equal(t, c.admin, pool.AdminFees.String())
			assert.Equal(t, c.retained, pool.RetainedLPFees.String())
			assert.Equal(t, c.total, store.registers[registry.KeyTotalFee].String())
			assert.False(t, store.fees[1].LPDistributed)
		})
	}

	_, err := NewFeeDistributor(Config{ZeroLiquidityPolicy: "burn"}, newMemStore(), nil)
	require.Error(t, err)
}

func TestDistributeRequiresCompletedDeposit(t *testing.T) {
	store := newMemStore()
	store.addCompleted(1, "98")
	store.deposits[1].Status = models.DepositStatusPending
	_, err := newDistributor(t, store, PolicyAdmin).Distribute(context.Background(), 1)
	require.ErrorIs(t, err, gerror.ErrInvalidTransition)
	assert.Equal(t, 1, store.rollbacks)
	assert.Empty(t, store.fees)
}

func TestSweep(t *testing.T) {
	store := newMemStore()
	store.addCompleted(1, "98")
	store.addCompleted(2, "49")
	store.addCompleted(3, "98")
	store.deposits[3].Status = models.DepositStatusPending
	f := newDistributor(t, store, PolicyAdmin)

	booked, err := f.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, booked)
	assert.Equal(t, "3", store.pools["base"].FeesGenerated.String())

	booked, err = f.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, booked)
}
