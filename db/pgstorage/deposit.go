package pgstorage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

const depositColumns = `id, nonce, nonce_hash, depositor, recipient, token_from, token_to, from_token_address, to_token_address,
	pool_address, amount_in, amount_out, dest_native_amount, source_network, destination_network, status, tx_hash,
	release_tx_hash, release_type, release_attempt_tx_hash, release_native_used, retries, last_error, created_at, updated_at`

func scanDeposit(row pgx.Row) (*models.Deposit, error) {
	var (
		d         models.Deposit
		nonceHash []byte
	)
	err := row.Scan(&d.ID, &d.Nonce, &nonceHash, &d.Depositor, &d.Recipient, &d.TokenFrom, &d.TokenTo, &d.FromTokenAddress,
		&d.ToTokenAddress, &d.PoolAddress, &d.AmountIn, &d.AmountOut, &d.DestNativeAmount, &d.SourceNetwork,
		&d.DestinationNetwork, &d.Status, &d.TxHash, &d.ReleaseTxHash, &d.ReleaseType, &d.ReleaseAttemptTxHash,
		&d.ReleaseNativeUsed, &d.Retries, &d.LastError, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	d.NonceHash = common.BytesToHash(nonceHash)
	return &d, nil
}

// AddDeposit stores a new bridge request and returns its id
func (p *PostgresStorage) AddDeposit(ctx context.Context, d *models.Deposit, dbTx pgx.Tx) (uint64, error) {
	const addDepositSQL = `INSERT INTO bridge.deposit (nonce, nonce_hash, depositor, recipient, token_from, token_to,
		from_token_address, to_token_address, pool_address, amount_in, amount_out, dest_native_amount, source_network,
		destination_network, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`
	var id uint64
	err := p.getExecQuerier(dbTx).QueryRow(ctx, addDepositSQL, d.Nonce, d.NonceHash.Bytes(), d.Depositor, d.Recipient,
		d.TokenFrom, d.TokenTo, d.FromTokenAddress, d.ToTokenAddress, d.PoolAddress, d.AmountIn, d.AmountOut,
		d.DestNativeAmount, d.SourceNetwork, d.DestinationNetwork, d.Status).Scan(&id)
	if isUniqueViolation(err) {
		return 0, gerror.ErrAlreadyExists
	}
	return id, err
}

// GetDepositByNonce gets a deposit by its off-chain nonce
func (p *PostgresStorage) GetDepositByNonce(ctx context.Context, nonce string, dbTx pgx.Tx) (*models.Deposit, error) {
	getDepositSQL := "SELECT " + depositColumns + " FROM bridge.deposit WHERE nonce = $1"
	return scanDeposit(p.getExecQuerier(dbTx).QueryRow(ctx, getDepositSQL, nonce))
}

// GetDepositByNonceHash gets a deposit by the hash emitted on-chain
func (p *PostgresStorage) GetDepositByNonceHash(ctx context.Context, nonceHash common.Hash, dbTx pgx.Tx) (*models.Deposit, error) {
	getDepositSQL := "SELECT " + depositColumns + " FROM bridge.deposit WHERE nonce_hash = $1"
	return scanDeposit(p.getExecQuerier(dbTx).QueryRow(ctx, getDepositSQL, nonceHash.Bytes()))
}

// GetDepositByID gets a deposit by id
func (p *PostgresStorage) GetDepositByID(ctx context.Context, id uint64, dbTx pgx.Tx) (*models.Deposit, error) {
	getDepositSQL := "SELECT " + depositColumns + " FROM bridge.deposit WHERE id = $1"
	return scanDeposit(p.getExecQuerier(dbTx).QueryRow(ctx, getDepositSQL, id))
}

// ConfirmDeposit moves a deposit from none to pending. It reports false when no
// deposit in status none matches the hash.
func (p *PostgresStorage) ConfirmDeposit(ctx context.Context, nonceHash common.Hash, txHash string, dbTx pgx.Tx) (bool, error) {
	const confirmDepositSQL = `UPDATE bridge.deposit SET status = 'pending', tx_hash = $2, updated_at = NOW()
		WHERE nonce_hash = $1 AND status = 'none'`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, confirmDepositSQL, nonceHash.Bytes(), txHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetNextPendingDeposit returns the pending deposit of the destination network that was
// least recently touched, so that a declined deposit does not hold back the ones behind it
func (p *PostgresStorage) GetNextPendingDeposit(ctx context.Context, network string, dbTx pgx.Tx) (*models.Deposit, error) {
	getPendingSQL := "SELECT " + depositColumns + ` FROM bridge.deposit
		WHERE destination_network = $1 AND status = 'pending' ORDER BY updated_at ASC, id ASC LIMIT 1`
	return scanDeposit(p.getExecQuerier(dbTx).QueryRow(ctx, getPendingSQL, network))
}

// CompleteDeposit sets the release hash and the completed status in a single statement
func (p *PostgresStorage) CompleteDeposit(ctx context.Context, id uint64, releaseTxHash string, releaseType models.ReleaseType, dbTx pgx.Tx) (bool, error) {
	const completeDepositSQL = `UPDATE bridge.deposit SET status = 'completed', release_tx_hash = $2, release_type = $3,
		last_error = '', updated_at = NOW() WHERE id = $1 AND status = 'pending'`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, completeDepositSQL, id, releaseTxHash, releaseType)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetDepositReleaseAttempt stores the signed payout of a pending deposit before it is
// broadcast. It reports false when the deposit is not pending or already has an attempt.
func (p *PostgresStorage) SetDepositReleaseAttempt(ctx context.Context, id uint64, txHash string, releaseType models.ReleaseType,
	nativeUsed decimal.Decimal, dbTx pgx.Tx) (bool, error) {
	const setAttemptSQL = `UPDATE bridge.deposit SET release_attempt_tx_hash = $2, release_type = $3, release_native_used = $4,
		updated_at = NOW() WHERE id = $1 AND status = 'pending' AND release_attempt_tx_hash = ''`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, setAttemptSQL, id, txHash, releaseType, nativeUsed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordDepositDecline stores why a pending deposit cannot be paid yet. Its status and
// retries are left untouched.
func (p *PostgresStorage) RecordDepositDecline(ctx context.Context, id uint64, lastError string, dbTx pgx.Tx) (bool, error) {
	const recordDeclineSQL = `UPDATE bridge.deposit SET last_error = $2, updated_at = NOW() WHERE id = $1 AND status = 'pending'`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, recordDeclineSQL, id, lastError)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordDepositFailure increases the retry counter of a pending deposit and moves it to
// failed once maxRetries is reached. It returns the resulting status.
func (p *PostgresStorage) RecordDepositFailure(ctx context.Context, id uint64, lastError string, maxRetries int, dbTx pgx.Tx) (models.DepositStatus, error) {
	const recordFailureSQL = `UPDATE bridge.deposit SET retries = retries + 1, last_error = $2,
		status = CASE WHEN retries + 1 >= $3 THEN 'failed' ELSE status END, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' RETURNING status`
	var status models.DepositStatus
	err := p.getExecQuerier(dbTx).QueryRow(ctx, recordFailureSQL, id, lastError, maxRetries).Scan(&status)
	if err != nil {
		return "", notFound(err)
	}
	return status, nil
}

// RequeueDeposit moves a failed deposit back to pending and drops its payout attempt
func (p *PostgresStorage) RequeueDeposit(ctx context.Context, nonce string, dbTx pgx.Tx) (bool, error) {
	const requeueSQL = `UPDATE bridge.deposit SET status = 'pending', retries = 0, release_attempt_tx_hash = '',
		release_type = '', release_native_used = 0, updated_at = NOW()
		WHERE nonce = $1 AND status = 'failed'`
	tag, err := p.getExecQuerier(dbTx).Exec(ctx, requeueSQL, nonce)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetDepositsByStatus lists deposits in any of the given statuses
func (p *PostgresStorage) GetDepositsByStatus(ctx context.Context, statuses []models.DepositStatus, limit, offset uint, dbTx pgx.Tx) ([]*models.Deposit, error) {
	getDepositsSQL := "SELECT " + depositColumns + " FROM bridge.deposit WHERE status = ANY($1) ORDER BY id ASC LIMIT $2 OFFSET $3"
	s := make([]string, 0, len(statuses))
	for _, st := range statuses {
		s = append(s, st.String())
	}
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getDepositsSQL, pq.Array(s), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeposits(rows)
}

// GetCompletedDepositsWithoutFee lists completed deposits whose fee was never booked
func (p *PostgresStorage) GetCompletedDepositsWithoutFee(ctx context.Context, limit uint, dbTx pgx.Tx) ([]*models.Deposit, error) {
	getDepositsSQL := "SELECT " + prefixColumns("d.") + ` FROM bridge.deposit d
		LEFT JOIN bridge.fee_distribution f ON f.deposit_id = d.id
		WHERE d.status = 'completed' AND f.deposit_id IS NULL ORDER BY d.id ASC LIMIT $1`
	rows, err := p.getExecQuerier(dbTx).Query(ctx, getDepositsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeposits(rows)
}

func scanDeposits(rows pgx.Rows) ([]*models.Deposit, error) {
	var deposits []*models.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

func prefixColumns(prefix string) string {
	return prefix + "id, " + prefix + "nonce, " + prefix + "nonce_hash, " + prefix + "depositor, " + prefix + "recipient, " +
		prefix + "token_from, " + prefix + "token_to, " + prefix + "from_token_address, " + prefix + "to_token_address, " +
		prefix + "pool_address, " + prefix + "amount_in, " + prefix + "amount_out, " + prefix + "dest_native_amount, " +
		prefix + "source_network, " + prefix + "destination_network, " + prefix + "status, " + prefix + "tx_hash, " +
		prefix + "release_tx_hash, " + prefix + "release_type, " + prefix + "release_attempt_tx_hash, " +
		prefix + "release_native_used, " + prefix + "retries, " + prefix + "last_error, " +
		prefix + "created_at, " + prefix + "updated_at"
}
