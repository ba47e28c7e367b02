// Copyright 2025 Graniteworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package embedding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/graniteworks/passage/ai"
	"github.com/graniteworks/passage/core"
	"github.com/panjf2000/ants/v2"
)

// ItemError records the failure of a single item within a batch.
type ItemError struct {
	// Index is the position of the failed item in the input slice.
	Index int

	// Err is the error from the item's last attempt.
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BatchResult reports the outcome of a batch embedding operation.
// Vectors has one entry per input item in input order; entries for failed
// items are nil so callers can tell exactly which items need attention.
type BatchResult struct {
	// Vectors holds one normalized embedding per input item, nil where the item failed.
	Vectors [][]float32

	// Errors lists each failed item with its error.
	Errors []ItemError

	// Succeeded is the number of items that embedded successfully.
	Succeeded int

	// Failed is the number of items that failed all attempts.
	Failed int
}

// BatchEmbedder embeds batches of texts with bounded parallelism.
// Each item is embedded independently: one item failing all its retries
// does not abort the rest of the batch.
type BatchEmbedder struct {
	embedder       ai.Embedder
	pool           *ants.Pool
	maxRetries     int
	retryBaseDelay time.Duration
	callTimeout    time.Duration
	progress       io.Writer
	logger         *slog.Logger
}

// Option configures a BatchEmbedder.
type Option func(*BatchEmbedder) error

// WithConcurrency sets the worker pool size for parallel embedding calls.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithConcurrency(size int) Option {
	return func(b *BatchEmbedder) error {
		if size < 1 {
			size = 1
		}

		if b.pool != nil {
			b.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		b.pool = pool
		return nil
	}
}

// WithMaxRetries sets the maximum number of attempts per item.
// Default is 3.
func WithMaxRetries(attempts int) Option {
	return func(b *BatchEmbedder) error {
		if attempts < 1 {
			return ErrInvalidMaxAttempts
		}
		b.maxRetries = attempts
		return nil
	}
}

// WithRetryBaseDelay sets the base delay for exponential backoff.
// Default is 1 second.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(b *BatchEmbedder) error {
		b.retryBaseDelay = delay
		return nil
	}
}

// WithCallTimeout sets a per-call timeout applied to each embedding attempt.
// Zero disables the timeout. Default is 30 seconds.
func WithCallTimeout(timeout time.Duration) Option {
	return func(b *BatchEmbedder) error {
		b.callTimeout = timeout
		return nil
	}
}

// WithProgress sets a writer for coarse progress output (typically os.Stderr).
// Default is no progress output.
func WithProgress(writer io.Writer) Option {
	return func(b *BatchEmbedder) error {
		b.progress = writer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *BatchEmbedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "batch-embedder")
		return nil
	}
}

// NewBatchEmbedder creates a batch embedder backed by the given embedding service.
func NewBatchEmbedder(embedder ai.Embedder, opts ...Option) (*BatchEmbedder, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &BatchEmbedder{
		embedder:       embedder,
		pool:           pool,
		maxRetries:     3,
		retryBaseDelay: 1 * time.Second,
		callTimeout:    30 * time.Second,
		logger:         slog.Default().With("component", "batch-embedder"),
	}

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}

	return b, nil
}

// EmbedBatch embeds each text independently and returns per-item results.
// Transient failures are retried with exponential backoff; empty texts are
// permanent failures and are not retried. The returned error is non-nil only
// when the batch as a whole could not run (for example a cancelled context);
// per-item failures are reported in the result.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	result := &BatchResult{
		Vectors: make([][]float32, len(texts)),
	}
	if len(texts) == 0 {
		return result, nil
	}

	var tracker *ProgressTracker
	if b.progress != nil {
		interval := len(texts) / 10
		if interval < 1 {
			interval = 1
		}
		tracker = NewProgressTracker(b.progress, len(texts), interval)
		tracker.Start()
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i, text := range texts {
		index, contents := i, text

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()

			vector, itemErr := b.embedOne(ctx, contents)

			mu.Lock()
			if itemErr != nil {
				result.Errors = append(result.Errors, ItemError{Index: index, Err: itemErr})
				result.Failed++
			} else {
				result.Vectors[index] = vector
				result.Succeeded++
			}
			mu.Unlock()

			if tracker != nil {
				tracker.Increment(1)
			}
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("failed to submit embedding task: %w", err)
		}
	}

	wg.Wait()

	if tracker != nil {
		tracker.Finish()
	}

	if result.Failed > 0 {
		b.logger.Warn("batch completed with failures",
			"total", len(texts),
			"succeeded", result.Succeeded,
			"failed", result.Failed)
	}

	return result, ctx.Err()
}

// EmbedChunks embeds chunk contents in place. Successful chunks receive a
// normalized vector; failed chunks keep a nil vector so they can be retried
// by a later pass.
func (b *BatchEmbedder) EmbedChunks(ctx context.Context, chunks []*core.Chunk) (*BatchResult, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Contents
	}

	result, err := b.EmbedBatch(ctx, texts)
	if err != nil {
		return result, err
	}

	for i, vector := range result.Vectors {
		if vector != nil {
			chunks[i].Vector = vector
		}
	}

	return result, nil
}

// embedOne embeds a single text with retry, timeout, and normalization.
func (b *BatchEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrPermanent, ErrEmptyText)
	}

	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		callCtx := ctx
		if b.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.callTimeout)
			defer cancel()
		}

		var embedErr error
		vector, embedErr = b.embedder.EmbedText(callCtx, text)
		return embedErr
	}, b.maxRetries, b.retryBaseDelay)
	if err != nil {
		if core.IsPermanent(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrTransient, err)
	}

	return NormalizeVector(vector), nil
}

// Release releases the worker pool.
// The embedder should not be used after calling Release.
func (b *BatchEmbedder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}
