package synchronizer

import (
	"context"
	"errors"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/valtbridge/bridge-service/metrics"
	"github.com/valtbridge/bridge-service/models"
	"github.com/valtbridge/bridge-service/utils/gerror"
)

// Synchronizer keeps a source reconciled with the ledgers
type Synchronizer interface {
	Sync() error
	Stop()
}

// Watcher polls one activity source and persists its cursor
type Watcher struct {
	source   ActivitySource
	storage  storageInterface
	pipeline *Pipeline
	start    models.Position
	cfg      Config
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWatcher creates the watcher of a source. start is used as cursor until one is stored.
func NewWatcher(storage interface{}, source ActivitySource, handler Handler, start models.Position, cfg Config) (*Watcher, error) {
	pipeline, err := NewPipeline(source.Name(), storage, handler, cfg.ProcessedCacheSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		source:   source,
		storage:  storage.(storageInterface),
		pipeline: pipeline,
		start:    start,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Sync polls the source until Stop is called. The next cycle is scheduled only after
// the previous one finished, so cycles of a source never overlap.
func (w *Watcher) Sync() error {
	name := w.source.Name()
	log.Infof("source %s: synchronization started", name)
	wait := time.Duration(0)
	for {
		select {
		case <-w.ctx.Done():
			log.Debugf("source %s: watcher ctx done", name)
			return nil
		case <-time.After(wait):
			wait = w.cfg.SyncInterval.Duration
			if _, err := w.Poll(w.ctx); err != nil {
				if w.ctx.Err() != nil {
					continue
				}
				log.Warnf("source %s: poll failed, retrying next cycle: %v", name, err)
			}
		}
	}
}

// Pipeline returns the ingestion pipeline of the watched source, shared with push webhooks
func (w *Watcher) Pipeline() *Pipeline {
	return w.pipeline
}

// Stop cancels the polling loop
func (w *Watcher) Stop() {
	w.cancel()
}

// Poll runs one cycle: reads the activity after the stored cursor, hands every record
// to the pipeline and stores the new cursor. On error the cursor is left untouched so
// the whole range is read again on the next cycle.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	name := w.source.Name()
	cursor, err := w.storage.GetCursor(ctx, name, nil)
	if errors.Is(err, gerror.ErrStorageNotFound) {
		cursor = w.start
	} else if err != nil {
		return 0, err
	}

	batch, err := w.source.Fetch(ctx, cursor)
	if err != nil {
		return 0, err
	}
	fresh := make([]Activity, 0, len(batch.Activities))
	for _, a := range batch.Activities {
		if cursor.Less(a.Position) {
			fresh = append(fresh, a)
		}
	}

	maxSeen, handled, err := w.pipeline.Process(ctx, fresh)
	if err != nil {
		return handled, err
	}

	next := cursor
	if next.Less(maxSeen) {
		next = maxSeen
	}
	if next.Less(batch.Next) {
		next = batch.Next
	}
	if next != cursor {
		if err := w.storage.SaveCursor(ctx, name, next, nil); err != nil {
			return handled, err
		}
		log.Debugf("source %s: cursor moved to %+v, %d new records", name, next, handled)
	}
	metrics.SetCursorPosition(name, cursorValue(next))
	return handled, nil
}
