package pgstorage

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
)

// GetRegister reads a numeric register
func (p *PostgresStorage) GetRegister(ctx context.Context, key string, dbTx pgx.Tx) (decimal.Decimal, error) {
	const getRegisterSQL = "SELECT value FROM bridge.register WHERE key = $1"
	var value decimal.Decimal
	err := p.getExecQuerier(dbTx).QueryRow(ctx, getRegisterSQL, key).Scan(&value)
	if err != nil {
		return decimal.Zero, notFound(err)
	}
	return value, nil
}

// SetRegister writes a numeric register
func (p *PostgresStorage) SetRegister(ctx context.Context, key string, value decimal.Decimal, dbTx pgx.Tx) error {
	const setRegisterSQL = `INSERT INTO bridge.register (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	_, err := p.getExecQuerier(dbTx).Exec(ctx, setRegisterSQL, key, value)
	return err
}

// IncrementRegister adds delta to a register and returns the new value
func (p *PostgresStorage) IncrementRegister(ctx context.Context, key string, delta decimal.Decimal, dbTx pgx.Tx) (decimal.Decimal, error) {
	const incrementRegisterSQL = `INSERT INTO bridge.register (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = bridge.register.value + EXCLUDED.value, updated_at = NOW()
		RETURNING value`
	var value decimal.Decimal
	err := p.getExecQuerier(dbTx).QueryRow(ctx, incrementRegisterSQL, key, delta).Scan(&value)
	return value, err
}
