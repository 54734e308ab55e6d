// Package indexer embeds stored memories in the background.
//
// Writes never wait for embeddings. The write path enqueues an
// EmbeddingJob and returns; a single loop drains the queue in batches of
// up to BatchSize jobs, or whatever arrived within BatchWait of the first
// job, and sends each batch to the embedder in one call.
//
// # Lifecycle
//
//	idx := indexer.New(client, registry, indexer.Options{BatchSize: 10, BatchWait: 2 * time.Second}, logger)
//	if err := idx.Start(ctx); err != nil {
//	    return err
//	}
//	defer idx.Stop()
//
//	idx.Enqueue(types.JobFor(mem))
//
// Start first scans every store for memories without vectors and enqueues
// them. The queue itself is not persisted, so this backlog scan is how jobs
// lost to a crash or a failed batch come back.
//
// # Failure Handling
//
// A failed batch is logged and dropped, with no retry and no requeue.
// Its memories stay un-embedded until the next backlog scan. Setting
// RescanSchedule (a cron spec such as "@every 15m") repeats that scan
// while running.
package indexer
