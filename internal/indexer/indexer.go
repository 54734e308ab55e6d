package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dshills/recall-mcp/internal/embedder"
	"github.com/dshills/recall-mcp/internal/storage"
	"github.com/dshills/recall-mcp/pkg/types"
)

// StoreSource resolves the stores jobs are written back to.
type StoreSource interface {
	GetStore(project *string) (storage.Store, error)
	// AllStores returns the global store and every project store on disk.
	AllStores(ctx context.Context) ([]storage.Store, error)
}

// Options configures batching.
type Options struct {
	BatchSize      int           // max jobs per embed call (default: 10)
	BatchWait      time.Duration // max wait after a batch's first job (default: 2s)
	StopTimeout    time.Duration // bounded join on Stop (default: 5s)
	RescanSchedule string        // optional cron spec for repeating the backlog scan
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.BatchWait <= 0 {
		o.BatchWait = 2 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
}

// Statistics counts pipeline outcomes since construction.
type Statistics struct {
	Batches  int64 `json:"batches"`
	Embedded int64 `json:"embedded"`
	Dropped  int64 `json:"dropped"`
	Queued   int   `json:"queued"`
	Running  bool  `json:"running"`
}

// Indexer is the background embedding worker.
type Indexer struct {
	embedder embedder.Embedder
	stores   StoreSource
	opts     Options
	logger   zerolog.Logger

	running runFlag

	mu      sync.Mutex
	queue   *Queue
	pending map[string]struct{} // ids enqueued and not yet processed
	done    chan struct{}
	cron    *cron.Cron

	batches  atomic.Int64
	embedded atomic.Int64
	dropped  atomic.Int64
}

// New creates a stopped Indexer.
func New(emb embedder.Embedder, stores StoreSource, opts Options, logger zerolog.Logger) *Indexer {
	opts.setDefaults()
	return &Indexer{
		embedder: emb,
		stores:   stores,
		opts:     opts,
		logger:   logger.With().Str("component", "indexer").Logger(),
		pending:  make(map[string]struct{}),
	}
}

// Start launches the batch loop, which begins with a backlog scan. Calling
// Start on a running Indexer does nothing.
func (idx *Indexer) Start(ctx context.Context) error {
	if !idx.running.TrySet() {
		return nil
	}

	q := NewQueue()

	var sched *cron.Cron
	if idx.opts.RescanSchedule != "" {
		sched = cron.New()
		if _, err := sched.AddFunc(idx.opts.RescanSchedule, func() { idx.scan(ctx, q, true) }); err != nil {
			idx.running.TryClear()
			return fmt.Errorf("invalid rescan schedule %q: %w", idx.opts.RescanSchedule, err)
		}
	}

	idx.mu.Lock()
	idx.queue = q
	idx.pending = make(map[string]struct{})
	idx.done = make(chan struct{})
	idx.cron = sched
	done := idx.done
	idx.mu.Unlock()

	go idx.loop(ctx, q, done)
	if sched != nil {
		sched.Start()
	}

	idx.logger.Info().
		Int("batch_size", idx.opts.BatchSize).
		Dur("batch_wait", idx.opts.BatchWait).
		Str("rescan", idx.opts.RescanSchedule).
		Msg("embedding worker started")
	return nil
}

// Enqueue submits a job. It is a no-op returning false when the worker is
// not running.
func (idx *Indexer) Enqueue(job types.EmbeddingJob) bool {
	if !idx.running.IsSet() {
		return false
	}

	idx.mu.Lock()
	q := idx.queue
	idx.mu.Unlock()
	return idx.push(q, job)
}

// push adds job to q and marks it pending. It fails once q is closed, so a
// scan left over from a stopped run cannot feed a later one.
func (idx *Indexer) push(q *Queue, job types.EmbeddingJob) bool {
	if q == nil {
		return false
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !q.Push(job) {
		return false
	}
	idx.pending[job.MemoryID] = struct{}{}
	return true
}

// Stop halts the loop, waits for it up to StopTimeout and shuts the
// embedder down. Jobs still queued are discarded.
func (idx *Indexer) Stop() {
	if !idx.running.TryClear() {
		return
	}

	idx.mu.Lock()
	q, done, sched := idx.queue, idx.done, idx.cron
	idx.cron = nil
	idx.mu.Unlock()

	if sched != nil {
		<-sched.Stop().Done()
	}
	q.Close()

	select {
	case <-done:
	case <-time.After(idx.opts.StopTimeout):
		idx.logger.Warn().Dur("timeout", idx.opts.StopTimeout).Msg("embedding loop did not stop in time")
	}

	if s, ok := idx.embedder.(interface{ Shutdown() error }); ok {
		if err := s.Shutdown(); err != nil {
			idx.logger.Warn().Err(err).Msg("embedder shutdown failed")
		}
	}
	idx.logger.Info().Msg("embedding worker stopped")
}

// Running reports whether the loop is active.
func (idx *Indexer) Running() bool { return idx.running.IsSet() }

// QueueLen returns the number of jobs waiting.
func (idx *Indexer) QueueLen() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.queue == nil {
		return 0
	}
	return idx.queue.Len()
}

// Stats returns a snapshot of the counters.
func (idx *Indexer) Stats() Statistics {
	return Statistics{
		Batches:  idx.batches.Load(),
		Embedded: idx.embedded.Load(),
		Dropped:  idx.dropped.Load(),
		Queued:   idx.QueueLen(),
		Running:  idx.Running(),
	}
}

// loop serves q, the queue created by the Start that launched it, until q
// is closed. A loop that outlives its Stop never touches a later queue.
func (idx *Indexer) loop(ctx context.Context, q *Queue, done chan struct{}) {
	defer close(done)

	idx.scan(ctx, q, false)

	for !q.Closed() {
		if batch := idx.collectBatch(q); len(batch) > 0 {
			idx.processBatch(ctx, batch)
		}
	}
}

// collectBatch waits for a first job, then gathers more until the batch is
// full or BatchWait has passed since that first job.
func (idx *Indexer) collectBatch(q *Queue) []types.EmbeddingJob {
	first, ok := q.Pop(idx.opts.BatchWait)
	if !ok {
		return nil
	}

	batch := []types.EmbeddingJob{first}
	deadline := time.Now().Add(idx.opts.BatchWait)
	for len(batch) < idx.opts.BatchSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		job, ok := q.Pop(remaining)
		if !ok {
			break
		}
		batch = append(batch, job)
	}
	return batch
}

func (idx *Indexer) processBatch(ctx context.Context, batch []types.EmbeddingJob) {
	defer idx.release(batch)

	logger := idx.logger.With().Str("batch_id", uuid.NewString()).Int("count", len(batch)).Logger()

	texts := make([]string, len(batch))
	for i, job := range batch {
		texts[i] = job.Content
	}

	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		idx.dropped.Add(int64(len(batch)))
		logger.Warn().Err(err).Msg("embedding batch failed; dropping")
		return
	}
	idx.batches.Add(1)

	stored := 0
	for i, job := range batch {
		if i >= len(vectors) {
			break
		}
		store, err := idx.stores.GetStore(job.Project)
		if err != nil {
			logger.Warn().Err(err).Str("memory_id", job.MemoryID).Msg("store unavailable for embedding")
			continue
		}
		if err := store.StoreEmbedding(ctx, job.MemoryID, vectors[i]); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				logger.Debug().Str("memory_id", job.MemoryID).Msg("memory deleted before embedding")
				continue
			}
			logger.Warn().Err(err).Str("memory_id", job.MemoryID).Msg("failed to store embedding")
			continue
		}
		stored++
	}
	idx.embedded.Add(int64(stored))
	logger.Debug().Int("stored", stored).Msg("embedding batch stored")
}

func (idx *Indexer) release(batch []types.EmbeddingJob) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, job := range batch {
		delete(idx.pending, job.MemoryID)
	}
}

// scan pushes every memory that has no vector onto q. With skipPending
// set, memories already waiting in the queue are left alone.
func (idx *Indexer) scan(ctx context.Context, q *Queue, skipPending bool) {
	stores, err := idx.stores.AllStores(ctx)
	if err != nil {
		idx.logger.Warn().Err(err).Msg("backlog scan failed")
		return
	}

	total := 0
	for _, store := range stores {
		missing, err := store.MemoriesWithoutEmbeddings(ctx, 0)
		if err != nil {
			idx.logger.Warn().Err(err).Str("store", store.Path()).Msg("backlog query failed")
			continue
		}
		for i := range missing {
			if skipPending && idx.isPending(missing[i].ID) {
				continue
			}
			if idx.push(q, types.JobFor(&missing[i])) {
				total++
			}
		}
	}

	if total > 0 {
		idx.logger.Info().Int("count", total).Int("stores", len(stores)).Msg("backlog enqueued")
	}
}

func (idx *Indexer) isPending(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.pending[id]
	return ok
}
