package liquidity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/network"
	"github.com/valtbridge/bridge-service/registry"
	"github.com/valtbridge/bridge-service/utils"
)

// AdminClaimant is the claimant withdrawing the admin fees of a network
const AdminClaimant = "admin"

var (
	daysPerYear = decimal.NewFromInt(365) //nolint:gomnd
	hundred     = decimal.NewFromInt(100) //nolint:gomnd
)

// PoolView is a pool ledger with its annualized yield
type PoolView struct {
	models.Pool
	NativeSymbol string
	APY          decimal.Decimal
}

// Ledger tracks LP positions and the pool ledger of every network
type Ledger struct {
	storage      storageInterface
	registry     registryInterface
	networks     *network.Set
	timeProvider utils.TimeProvider
}

// NewLedger creates the liquidity ledger
func NewLedger(storage interface{}, reg registryInterface, networks *network.Set, timeProvider utils.TimeProvider) *Ledger {
	if timeProvider == nil {
		timeProvider = utils.NewTimeProviderSystemLocalTime()
	}
	return &Ledger{storage: storage.(storageInterface), registry: reg, networks: networks, timeProvider: timeProvider}
}

// Init creates the pool ledger of every configured network
func (l *Ledger) Init(ctx context.Context) error {
	for _, name := range l.networks.Names() {
		net, _ := l.networks.Get(name)
		if err := l.storage.EnsurePool(ctx, net.Name, net.Slug, nil); err != nil {
			return err
		}
	}
	return nil
}

// normalizeWallet keeps hedera account ids as is and lowercases EVM addresses
func normalizeWallet(wallet string) string {
	if network.IsEntityID(wallet) {
		return wallet
	}
	return strings.ToLower(wallet)
}

func (l *Ledger) withTx(ctx context.Context, op string, fn func(dbTx pgx.Tx) (bool, error)) (bool, error) {
	dbTx, err := l.storage.BeginDBTransaction(ctx)
	if err != nil {
		return false, err
	}
	done, err := fn(dbTx)
	if err != nil || !done {
		if rollbackErr := l.storage.Rollback(ctx, dbTx); rollbackErr != nil {
			log.Errorf("%s: error rolling back state. RollbackErr: %v, err: %v", op, rollbackErr, err)
		}
		return false, err
	}
	if err := l.storage.Commit(ctx, dbTx); err != nil {
		log.Errorf("%s: error committing dbTx: %v", op, err)
		if rollbackErr := l.storage.Rollback(ctx, dbTx); rollbackErr != nil {
			log.Errorf("%s: error rolling back state. RollbackErr: %v", op, rollbackErr)
		}
		return false, err
	}
	return true, nil
}

// AddLiquidity credits a confirmed inbound transfer to its LP and to the pool ledger.
// Transfers are identified by their tx id, a transfer credited before is ignored and
// false is returned.
func (l *Ledger) AddLiquidity(ctx context.Context, d models.LiquidityDeposit) (bool, error) {
	if !d.Amount.IsPositive() {
		return false, fmt.Errorf("liquidity deposit %s: non positive amount %s", d.TxID, d.Amount.String())
	}
	if d.TxID == "" || d.Wallet == "" {
		return false, fmt.Errorf("liquidity deposit without tx id or wallet")
	}
	net, err := l.networks.Get(d.Network)
	if err != nil {
		return false, err
	}
	wallet := normalizeWallet(d.Wallet)
	createdAt := d.Timestamp
	if createdAt.IsZero() {
		createdAt = l.timeProvider.Now()
	}
	return l.withTx(ctx, "AddLiquidity", func(dbTx pgx.Tx) (bool, error) {
		exists, err := l.storage.ContributionExists(ctx, d.TxID, dbTx)
		if err != nil || exists {
			return false, err
		}
		if err := l.storage.EnsurePool(ctx, net.Name, net.Slug, dbTx); err != nil {
			return false, err
		}
		lpID, err := l.storage.UpsertLP(ctx, wallet, net.Name, d.Amount, dbTx)
		if err != nil {
			return false, err
		}
		added, err := l.storage.AddContribution(ctx, lpID, models.Contribution{
			TxID:      d.TxID,
			Amount:    d.Amount,
			Asset:     d.Asset,
			CreatedAt: createdAt,
		}, dbTx)
		if err != nil || !added {
			return false, err
		}
		return true, l.storage.UpdatePool(ctx, net.Name, models.PoolDelta{TVL: d.Amount, Total: d.Amount}, dbTx)
	})
}

// Withdraw zeroes the profit of the claimant on network and returns the amount zeroed.
// When claimant is AdminClaimant the admin fees of the network are withdrawn instead.
// Funds are moved on-chain separately.
func (l *Ledger) Withdraw(ctx context.Context, claimant, networkName string) (decimal.Decimal, error) {
	if _, err := l.networks.Get(networkName); err != nil {
		return decimal.Zero, err
	}
	isAdmin := claimant == AdminClaimant
	if !isAdmin {
		claimant = normalizeWallet(claimant)
	}
	var amount decimal.Decimal
	_, err := l.withTx(ctx, "Withdraw", func(dbTx pgx.Tx) (bool, error) {
		var err error
		if isAdmin {
			amount, err = l.storage.ResetPoolAdminFees(ctx, networkName, dbTx)
		} else {
			amount, err = l.storage.ResetLPProfit(ctx, claimant, networkName, dbTx)
		}
		if err != nil {
			return false, err
		}
		if !amount.IsPositive() {
			return false, nil
		}
		if isAdmin {
			if _, err := l.registry.Increment(ctx, registry.KeyTotalFee, amount.Neg(), dbTx); err != nil {
				return false, err
			}
		}
		delta := models.PoolDelta{TotalWithdrawn: amount, Profit: amount.Neg()}
		if err := l.storage.UpdatePool(ctx, networkName, delta, dbTx); err != nil {
			return false, err
		}
		_, err = l.storage.AddWithdrawal(ctx, &models.Withdrawal{Claimant: claimant, Network: networkName, Amount: amount}, dbTx)
		return err == nil, err
	})
	if err != nil {
		return decimal.Zero, err
	}
	log.WithFields("network", networkName, "claimant", claimant).Infof("withdrawal of %s", amount.String())
	return amount, nil
}

// DecreaseTVL removes the native currency paid out of a pool from its TVL
func (l *Ledger) DecreaseTVL(ctx context.Context, networkName string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	return l.storage.UpdatePool(ctx, networkName, models.PoolDelta{TVL: amount.Neg()}, nil)
}

// UserLiquidity returns the LP positions of a wallet on every network
func (l *Ledger) UserLiquidity(ctx context.Context, wallet string) ([]*models.LiquidityProvider, error) {
	return l.storage.GetLPsByWallet(ctx, normalizeWallet(wallet), nil)
}

// Position returns the LP position of a wallet on a network with its contribution history
func (l *Ledger) Position(ctx context.Context, wallet, networkName string) (*models.LiquidityProvider, error) {
	return l.storage.GetLP(ctx, normalizeWallet(wallet), networkName, nil)
}

// Pools returns the ledger of every pool
func (l *Ledger) Pools(ctx context.Context) ([]PoolView, error) {
	pools, err := l.storage.GetPools(ctx, nil)
	if err != nil {
		return nil, err
	}
	views := make([]PoolView, 0, len(pools))
	for _, p := range pools {
		views = append(views, l.view(p))
	}
	return views, nil
}

// Pool returns the ledger of the pool of a network
func (l *Ledger) Pool(ctx context.Context, networkName string) (PoolView, error) {
	p, err := l.storage.GetPool(ctx, networkName, nil)
	if err != nil {
		return PoolView{}, err
	}
	return l.view(p), nil
}

func (l *Ledger) view(p *models.Pool) PoolView {
	v := PoolView{Pool: *p, APY: APY(p.Profit, p.TVL, p.CreatedAt, l.timeProvider.Now())}
	if net, err := l.networks.Get(p.Network); err == nil {
		v.NativeSymbol = net.NativeSymbol
	}
	return v
}

// APY annualizes the profit of a pool over its lifetime: profit/tvl * 365/days * 100.
// Pools younger than a day count as one day old.
func APY(profit, tvl decimal.Decimal, createdAt, now time.Time) decimal.Decimal {
	if !tvl.IsPositive() || !profit.IsPositive() {
		return decimal.Zero
	}
	days := int64(now.Sub(createdAt) / (24 * time.Hour)) //nolint:gomnd
	if days < 1 {
		days = 1
	}
	return profit.Div(tvl).Mul(daysPerYear).Div(decimal.NewFromInt(days)).Mul(hundred)
}
