package pgstorage

import (
	"context"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/valtbridge/bridge-service/utils"
)

const slowQueryThreshold = 500 * time.Millisecond

// execQuerierWrapper logs every statement with the trace id of the context and warns about slow ones
type execQuerierWrapper struct {
	execQuerier
}

func (w *execQuerierWrapper) Exec(ctx context.Context, sql string, arguments ...interface{}) (commandTag pgconn.CommandTag, err error) {
	logger := log.WithFields(utils.TraceID, ctx.Value(utils.CtxTraceID))
	startTime := time.Now()
	logger.Debugf("DB query begin, method[Exec], sql[%v], arguments[%v]", removeNewLine(sql), arguments)

	tag, err := w.execQuerier.Exec(ctx, sql, arguments...)

	elapsed := time.Since(startTime)
	logger.Debugf("DB query end, method[Exec], sql[%v] rowsAffected[%v] err[%v] processTime[%v]",
		removeNewLine(sql), tag.RowsAffected(), err, elapsed.String())
	warnIfSlow(logger, "Exec", sql, elapsed)
	return tag, err
}

func (w *execQuerierWrapper) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	logger := log.WithFields(utils.TraceID, ctx.Value(utils.CtxTraceID))
	startTime := time.Now()
	logger.Debugf("DB query begin, method[Query], sql[%v], arguments[%v]", removeNewLine(sql), args)

	rows, err := w.execQuerier.Query(ctx, sql, args...)

	elapsed := time.Since(startTime)
	logger.Debugf("DB query end, method[Query], sql[%v] err[%v] processTime[%v]", removeNewLine(sql), err, elapsed.String())
	warnIfSlow(logger, "Query", sql, elapsed)
	return rows, err
}

func (w *execQuerierWrapper) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	logger := log.WithFields(utils.TraceID, ctx.Value(utils.CtxTraceID))
	startTime := time.Now()
	logger.Debugf("DB query begin, method[QueryRow], sql[%v], arguments[%v]", removeNewLine(sql), args)

	row := w.execQuerier.QueryRow(ctx, sql, args...)

	elapsed := time.Since(startTime)
	logger.Debugf("DB query end, method[QueryRow], sql[%v] processTime[%v]", removeNewLine(sql), elapsed.String())
	warnIfSlow(logger, "QueryRow", sql, elapsed)
	return row
}

func warnIfSlow(logger *log.Logger, method, sql string, elapsed time.Duration) {
	if elapsed > slowQueryThreshold {
		logger.Warnf("slow DB query, method[%s], sql[%v], processTime[%v]", method, removeNewLine(sql), elapsed.String())
	}
}

func removeNewLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
