package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Config holds batch processing configuration.
type Config struct {
	// MaxWorkers is the size of the worker pool (default 3).
	MaxWorkers int

	// BatchSize is the number of records per chunk (default 1).
	BatchSize int

	// Output enables the progress bar and the final stats log line.
	Output bool

	// Progress receives the progress bar (default os.Stderr).
	Progress io.Writer

	// Tally turns one chunk result into per-record stats. The default reads
	// JSON replies with TallyJSON. A zero Stats counts the whole chunk as
	// succeeded.
	Tally func(result any) Stats

	// Logger overrides the package logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers: 3,
		BatchSize:  1,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.Progress == nil {
		c.Progress = os.Stderr
	}
	if c.Tally == nil {
		c.Tally = defaultTally
	}
	if c.Logger == nil {
		logger := log.With().Str("component", "batch").Logger()
		c.Logger = &logger
	}
	return c
}

// ChunkError reports the failure of one chunk.
type ChunkError struct {
	// Index is the chunk position in submission order.
	Index int
	// Start is the index of the chunk's first record in the input.
	Start int
	Err   error
}

// Error implements the error interface.
func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (records from %d): %v", e.Index, e.Start, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Chunks splits records into consecutive slices of at most size records.
// The last chunk may be shorter. size < 1 is treated as 1.
func Chunks[R any](records []R, size int) [][]R {
	if size < 1 {
		size = 1
	}
	chunks := make([][]R, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// slot is the completion slot of one chunk.
type slot[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Process applies fn to every chunk of records using a bounded worker pool
// and returns the results in chunk order. Collection stops at the first
// failing chunk, but every submitted chunk still runs to completion before
// Process returns. The results of the chunks collected before the failing
// one are returned with the error.
//
// Cancelling ctx skips the chunks that have not started yet.
func Process[R, T any](ctx context.Context, records []R, fn func(context.Context, []R) (T, error), cfg Config) ([]T, error) {
	cfg = cfg.withDefaults()
	logger := cfg.Logger

	chunks := Chunks(records, cfg.BatchSize)
	if len(chunks) == 0 {
		return []T{}, nil
	}

	start := time.Now()
	slots := make([]*slot[T], len(chunks))
	for i := range slots {
		slots[i] = &slot[T]{done: make(chan struct{})}
	}

	queue := make(chan int)
	go func() {
		defer close(queue)
		for i := range chunks {
			select {
			case queue <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	workers := cfg.MaxWorkers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	logger.Debug().
		Int("records", len(records)).
		Int("chunks", len(chunks)).
		Int("workers", workers).
		Msg("Starting batch")

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				s := slots[idx]
				if ctx.Err() != nil {
					s.err = ctx.Err()
					chunksTotal.WithLabelValues("skipped").Inc()
					close(s.done)
					continue
				}
				s.result, s.err = run(ctx, fn, chunks[idx])
				recordsTotal.Add(float64(len(chunks[idx])))
				close(s.done)
			}
		}()
	}

	var bar *progressbar.ProgressBar
	if cfg.Output {
		bar = newProgressBar(len(records), cfg.Progress)
	}

	results := make([]T, 0, len(chunks))
	var stats Stats
	offset := 0
	for i, s := range slots {
		select {
		case <-s.done:
		case <-ctx.Done():
			wg.Wait()
			return results, &ChunkError{Index: i, Start: offset, Err: ctx.Err()}
		}

		if s.err != nil {
			chunksTotal.WithLabelValues("error").Inc()
			logger.Debug().
				Err(s.err).
				Int("chunk", i).
				Msg("Chunk failed, waiting for submitted chunks")
			wg.Wait()
			return results, &ChunkError{Index: i, Start: offset, Err: s.err}
		}

		chunksTotal.WithLabelValues("ok").Inc()
		results = append(results, s.result)

		chunkStats := cfg.Tally(s.result)
		if chunkStats.Total() == 0 {
			chunkStats.Succeeded = len(chunks[i])
		}
		stats = stats.Add(chunkStats)

		if bar != nil {
			_ = bar.Add(len(chunks[i]))
		}
		offset += len(chunks[i])
	}

	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
		logger.Info().
			Int("succeeded", stats.Succeeded).
			Int("failed", stats.Failed).
			Int("skipped", stats.Skipped).
			Dur("duration", time.Since(start)).
			Msg("Batch complete")
	}

	return results, nil
}

// run calls fn for one chunk, turning a panic into an error.
func run[R, T any](ctx context.Context, fn func(context.Context, []R) (T, error), chunk []R) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, chunk)
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Processing records"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
