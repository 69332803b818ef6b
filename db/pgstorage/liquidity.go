package pgstorage

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
)

const lpColumns = "id, wallet_address, network, amount, profit, active, created_at, updated_at"

func scanLP(row pgx.Row) (*models.LiquidityProvider, error) {
	var lp models.LiquidityProvider
	err := row.Scan(&lp.ID, &lp.WalletAddress, &lp.Network, &lp.Amount, &lp.Profit, &lp.Active, &lp.CreatedAt, &lp.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &lp, nil
}

func scanLPs(rows pgx.Rows) ([]*models.LiquidityProvider, error) {
	var lps []*models.LiquidityProvider
	for rows.Next() {
		lp, err := scanLP(rows)
		if err != nil {
			return nil, err
		}
		lps = append(lps, lp)
	}
	return lps, rows.Err()
}

// UpsertLP creates the LP position or increases its amount, reactivating it
func (p *PostgresStorage) UpsertLP(ctx context.Context, wallet, network string, amount decimal.Decimal, dbTx pgx.Tx) (uint64, error) {
	const upsertLPSQL = `INSERT INTO bridge.lp (wallet_address, network, amount, profit, active) VALUES ($1, $2, $3, 0, TRUE)
		ON CONFLICT (wallet_address, network) DO UPDATE SET amount = bridge.lp.amount + EXCLUDED.amount, active = TRUE,
		updated_at = NOW() RETURNING id`
	var id uint64
	err := p.getExecQuerier(dbTx).QueryRow(ctx, upsertLPSQL, wallet, network, amount).Scan(&id)
	return id, err
}

// AddContribution appends a contribution to the LP history. It reports false when the
// transaction id was already recorded.
func (p *PostgresStorage) AddContribution(ctx context.Context, lpID uint64, c models.Contribution, dbTx pgx.Tx) (bool, error) {
	const addContributionSQL = `INSERT INTO bridge.lp_contribution (tx_id, lp_id, amount, asset, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (tx_id) DO NOTHING`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, addContributionSQL, c.TxID, lpID, c.Amount, c.Asset, c.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ContributionExists checks whether an inbound transfer was already credited
func (p *PostgresStorage) ContributionExists(ctx context.Context, txID string, dbTx pgx.Tx) (bool, error) {
	const existsSQL = "SELECT EXISTS(SELECT 1 FROM bridge.lp_contribution WHERE tx_id = $1)"
	var exists bool
	err := p.getExecQuerier(dbTx).QueryRow(ctx, existsSQL, txID).Scan(&exists)
	return exists, err
}

// GetLP gets an LP position with its contribution history
func (p *PostgresStorage) GetLP(ctx context.Context, wallet, network string, dbTx pgx.Tx) (*models.LiquidityProvider, error) {
	getLPSQL := "SELECT " + lpColumns + " FROM bridge.lp WHERE wallet_address = $1 AND network = $2"
	e := p.getExecQuerier(dbTx)
	lp, err := scanLP(e.QueryRow(ctx, getLPSQL, wallet, network))
	if err != nil {
		return nil, err
	}
	const getHistorySQL = "SELECT tx_id, amount, asset, created_at FROM bridge.lp_contribution WHERE lp_id = $1 ORDER BY created_at ASC"
	rows, err := e.Query(ctx, getHistorySQL, lp.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Contribution
		if err := rows.Scan(&c.TxID, &c.Amount, &c.Asset, &c.CreatedAt); err != nil {
			return nil, err
		}
		lp.History = append(lp.History, c)
	}
	return lp, rows.Err()
}

// GetLPsByWallet lists the positions of a wallet across networks
func (p *PostgresStorage) GetLPsByWallet(ctx context.Context, wallet string, dbTx pgx.Tx) ([]*models.LiquidityProvider, error) {
	getLPsSQL := "SELECT " + lpColumns + " FROM bridge.lp WHERE wallet_address = $1 ORDER BY network"
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getLPsSQL, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLPs(rows)
}

// GetActiveLPs lists the active LPs of a network, locking them for the surrounding transaction
func (p *PostgresStorage) GetActiveLPs(ctx context.Context, network string, dbTx pgx.Tx) ([]*models.LiquidityProvider, error) {
	getLPsSQL := "SELECT " + lpColumns + " FROM bridge.lp WHERE network = $1 AND active ORDER BY id ASC FOR UPDATE"
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getLPsSQL, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLPs(rows)
}

// CreditLPProfit adds a fee share to an LP
func (p *PostgresStorage) CreditLPProfit(ctx context.Context, lpID uint64, amount decimal.Decimal, dbTx pgx.Tx) error {
	const creditSQL = "UPDATE bridge.lp SET profit = profit + $2, updated_at = NOW() WHERE id = $1"
	_, err := p.getExecQuerier(dbTx).Exec(ctx, creditSQL, lpID, amount)
	return err
}

// ResetLPProfit zeroes the profit of an LP and returns the previous value
func (p *PostgresStorage) ResetLPProfit(ctx context.Context, wallet, network string, dbTx pgx.Tx) (decimal.Decimal, error) {
	const resetSQL = `WITH old AS (SELECT id, profit FROM bridge.lp WHERE wallet_address = $1 AND network = $2 FOR UPDATE)
		UPDATE bridge.lp l SET profit = 0, updated_at = NOW() FROM old WHERE l.id = old.id RETURNING old.profit`
	var profit decimal.Decimal
	err := p.getExecQuerier(dbTx).QueryRow(ctx, resetSQL, wallet, network).Scan(&profit)
	if err != nil {
		return decimal.Zero, notFound(err)
	}
	return profit, nil
}

// EnsurePool creates the pool row of a network when missing
func (p *PostgresStorage) EnsurePool(ctx context.Context, network, slug string, dbTx pgx.Tx) error {
	const ensurePoolSQL = "INSERT INTO bridge.pool (network, network_slug) VALUES ($1, $2) ON CONFLICT (network) DO NOTHING"
	_, err := p.getExecQuerier(dbTx).Exec(ctx, ensurePoolSQL, network, slug)
	return err
}

const poolColumns = "network, network_slug, tvl, total, fees_generated, profit, total_withdrawn, admin_fees, retained_lp_fees, created_at"

func scanPool(row pgx.Row) (*models.Pool, error) {
	var pool models.Pool
	err := row.Scan(&pool.Network, &pool.NetworkSlug, &pool.TVL, &pool.Total, &pool.FeesGenerated, &pool.Profit,
		&pool.TotalWithdrawn, &pool.AdminFees, &pool.RetainedLPFees, &pool.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &pool, nil
}

// GetPool gets the pool ledger of a network
func (p *PostgresStorage) GetPool(ctx context.Context, network string, dbTx pgx.Tx) (*models.Pool, error) {
	getPoolSQL := "SELECT " + poolColumns + " FROM bridge.pool WHERE network = $1"
	return scanPool(p.getExecQuerier(dbTx).QueryRow(ctx, getPoolSQL, network))
}

// GetPools lists every pool ledger
func (p *PostgresStorage) GetPools(ctx context.Context, dbTx pgx.Tx) ([]*models.Pool, error) {
	getPoolsSQL := "SELECT " + poolColumns + " FROM bridge.pool ORDER BY network"
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getPoolsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pools []*models.Pool
	for rows.Next() {
		pool, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}

// UpdatePool applies the deltas to the pool ledger of a network
func (p *PostgresStorage) UpdatePool(ctx context.Context, network string, delta models.PoolDelta, dbTx pgx.Tx) error {
	const updatePoolSQL = `UPDATE bridge.pool SET tvl = tvl + $2, total = total + $3, fees_generated = fees_generated + $4,
		profit = profit + $5, total_withdrawn = total_withdrawn + $6, admin_fees = admin_fees + $7,
		retained_lp_fees = retained_lp_fees + $8 WHERE network = $1`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, updatePoolSQL, network, delta.TVL, delta.Total, delta.FeesGenerated,
		delta.Profit, delta.TotalWithdrawn, delta.AdminFees, delta.RetainedLPFees)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows)
	}
	return nil
}

// ResetPoolAdminFees zeroes the admin accumulator of a network and returns the previous value
func (p *PostgresStorage) ResetPoolAdminFees(ctx context.Context, network string, dbTx pgx.Tx) (decimal.Decimal, error) {
	const resetSQL = `WITH old AS (SELECT network, admin_fees FROM bridge.pool WHERE network = $1 FOR UPDATE)
		UPDATE bridge.pool p SET admin_fees = 0 FROM old WHERE p.network = old.network RETURNING old.admin_fees`
	var fees decimal.Decimal
	err := p.getExecQuerier(dbTx).QueryRow(ctx, resetSQL, network).Scan(&fees)
	if err != nil {
		return decimal.Zero, notFound(err)
	}
	return fees, nil
}

// AddWithdrawal logs a profit claim
func (p *PostgresStorage) AddWithdrawal(ctx context.Context, w *models.Withdrawal, dbTx pgx.Tx) (uint64, error) {
	const addWithdrawalSQL = "INSERT INTO bridge.withdrawal (claimant, network, amount) VALUES ($1, $2, $3) RETURNING id"
	var id uint64
	err := p.getExecQuerier(dbTx).QueryRow(ctx, addWithdrawalSQL, w.Claimant, w.Network, w.Amount).Scan(&id)
	return id, err
}
