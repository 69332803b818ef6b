package pgstorage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4"
	"github.com/valtbridge/bridge-service/models"
)

// GetCursor gets the last persisted position of a source
func (p *PostgresStorage) GetCursor(ctx context.Context, source string, dbTx pgx.Tx) (models.Position, error) {
	const getCursorSQL = "SELECT position FROM bridge.cursor WHERE source = $1"
	var (
		raw []byte
		pos models.Position
	)
	err := p.getExecQuerier(dbTx).QueryRow(ctx, getCursorSQL, source).Scan(&raw)
	if err != nil {
		return pos, notFound(err)
	}
	err = json.Unmarshal(raw, &pos)
	return pos, err
}

// SaveCursor persists the position of a source
func (p *PostgresStorage) SaveCursor(ctx context.Context, source string, pos models.Position, dbTx pgx.Tx) error {
	const saveCursorSQL = `INSERT INTO bridge.cursor (source, position, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (source) DO UPDATE SET position = EXCLUDED.position, updated_at = NOW()`
	raw, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	_, err = p.getExecQuerier(dbTx).Exec(ctx, saveCursorSQL, source, string(raw))
	return err
}

// IsProcessed checks whether the dedup key of a source was already handled
func (p *PostgresStorage) IsProcessed(ctx context.Context, source, key string, dbTx pgx.Tx) (bool, error) {
	const isProcessedSQL = "SELECT EXISTS(SELECT 1 FROM bridge.processed_tx WHERE source = $1 AND dedup_key = $2)"
	var exists bool
	err := p.getExecQuerier(dbTx).QueryRow(ctx, isProcessedSQL, source, key).Scan(&exists)
	return exists, err
}

// MarkProcessed records a dedup key. Recording an existing key is a no-op.
func (p *PostgresStorage) MarkProcessed(ctx context.Context, source, key string, dbTx pgx.Tx) error {
	const markProcessedSQL = "INSERT INTO bridge.processed_tx (source, dedup_key) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	_, err := p.getExecQuerier(dbTx).Exec(ctx, markProcessedSQL, source, key)
	return err
}
