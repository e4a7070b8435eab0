// Package batch runs a per-chunk operation over a list of records in parallel.
//
// Records are split into consecutive chunks of Config.BatchSize. A fixed pool
// of Config.MaxWorkers goroutines processes the chunks, and results are
// collected in submission order, so result i always belongs to chunk i no
// matter which worker finished first.
//
// Example usage:
//
//	results, err := batch.Process(ctx, records, func(ctx context.Context, chunk []map[string]any) (json.RawMessage, error) {
//		return ep.Post(ctx, "recognition/v2/classify/", endpoint.Args{"records": chunk})
//	}, batch.Config{MaxWorkers: 3, BatchSize: 10, Output: true})
//
// The first chunk (in submission order) whose operation fails ends the call
// with a *ChunkError. The other chunks still run, and Process returns only
// after the pool has drained. Cancelling ctx skips chunks not yet started.
//
// With Config.Output set, a progress bar advances by the size of every
// collected chunk and the per-record outcome is tallied into Stats.
package batch
