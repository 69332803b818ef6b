package synchronizer

import (
	"context"

	"github.com/0xPolygonHermez/zkevm-node/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/valtbridge/bridge-service/models"
)

const defaultProcessedCacheSize = 4096

// Activity is a decoded record read from a source. Exactly one of Deposit and
// Liquidity is set.
type Activity struct {
	DedupKey  string
	Position  models.Position
	Deposit   *models.BridgeDeposit
	Liquidity *models.LiquidityDeposit
}

// Batch is the result of fetching a source
type Batch struct {
	Activities []Activity
	Next       models.Position
}

// Pipeline de-duplicates activities of a source and hands them to the handler.
// Polling watchers and push webhooks share it so both are reconciled the same way.
type Pipeline struct {
	source  string
	storage storageInterface
	handler Handler
	seen    *lru.Cache[string, struct{}]
}

// NewPipeline creates the ingestion pipeline of a source
func NewPipeline(source string, storage interface{}, handler Handler, cacheSize int) (*Pipeline, error) {
	if cacheSize <= 0 {
		cacheSize = defaultProcessedCacheSize
	}
	seen, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		source:  source,
		storage: storage.(storageInterface),
		handler: handler,
		seen:    seen,
	}, nil
}

// Source returns the name of the source the pipeline reconciles
func (p *Pipeline) Source() string {
	return p.source
}

func (p *Pipeline) isProcessed(ctx context.Context, key string) (bool, error) {
	if p.seen.Contains(key) {
		return true, nil
	}
	processed, err := p.storage.IsProcessed(ctx, p.source, key, nil)
	if err != nil {
		return false, err
	}
	if processed {
		p.seen.Add(key, struct{}{})
	}
	return processed, nil
}

// Process hands every activity not seen before to the handler, in order. It stops at the
// first failure. The returned position is the highest position handed off.
func (p *Pipeline) Process(ctx context.Context, activities []Activity) (models.Position, int, error) {
	var (
		maxSeen models.Position
		handled int
	)
	for _, a := range activities {
		processed, err := p.isProcessed(ctx, a.DedupKey)
		if err != nil {
			return maxSeen, handled, err
		}
		if !processed {
			if err := p.handler.Handle(ctx, a); err != nil {
				log.Warnf("source %s: error handling %s: %v", p.source, a.DedupKey, err)
				return maxSeen, handled, err
			}
			if err := p.storage.MarkProcessed(ctx, p.source, a.DedupKey, nil); err != nil {
				return maxSeen, handled, err
			}
			p.seen.Add(a.DedupKey, struct{}{})
			handled++
		} else {
			log.Debugf("source %s: %s already processed", p.source, a.DedupKey)
		}
		if maxSeen.Less(a.Position) {
			maxSeen = a.Position
		}
	}
	return maxSeen, handled, nil
}
