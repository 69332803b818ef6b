package pgstorage

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

// AddFeeDistribution books the fee of a deposit. A second booking for the same
// deposit returns gerror.ErrAlreadyExists.
func (p *PostgresStorage) AddFeeDistribution(ctx context.Context, f *models.FeeDistribution, dbTx pgx.Tx) error {
	const addFeeSQL = `INSERT INTO bridge.fee_distribution (deposit_id, network, fee_amount, admin_share, lp_pool, lp_distributed)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := p.getExecQuerier(dbTx).Exec(ctx, addFeeSQL, f.DepositID, f.Network, f.FeeAmount, f.AdminShare, f.LPPool, f.LPDistributed)
	if isUniqueViolation(err) {
		return gerror.ErrAlreadyExists
	}
	return err
}

// GetFeeDistribution gets the fee booked for a deposit
func (p *PostgresStorage) GetFeeDistribution(ctx context.Context, depositID uint64, dbTx pgx.Tx) (*models.FeeDistribution, error) {
	const getFeeSQL = `SELECT deposit_id, network, fee_amount, admin_share, lp_pool, lp_distributed, created_at
		FROM bridge.fee_distribution WHERE deposit_id = $1`
	var f models.FeeDistribution
	err := p.getExecQuerier(dbTx).QueryRow(ctx, getFeeSQL, depositID).Scan(&f.DepositID, &f.Network, &f.FeeAmount,
		&f.AdminShare, &f.LPPool, &f.LPDistributed, &f.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}
