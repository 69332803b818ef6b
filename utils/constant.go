package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	CtxTraceID contextKey = "traceID"
)

const (
	TraceID = "traceID"
)

const (
	// SlippageToleranceBps is the tolerance applied to router quotes, in thousandths (0.5%)
	SlippageToleranceBps = 5
	slippageDenominator  = 1000

	// SwapDeadlineSeconds bounds how long a submitted swap stays executable
	SwapDeadlineSeconds = 600
)

// NewTraceContext returns a child context carrying a fresh trace id for the db wrapper logs
func NewTraceContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, CtxTraceID, uuid.NewString())
}
