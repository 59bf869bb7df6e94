// Package embedding wraps an ai.IEmbedder with the batching, retry
// and caching policy of the ingestion pipeline.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docast/internal/ai"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

type Batcher struct {
	embedder      ai.IEmbedder
	batchSize     int
	maxAttempts   int
	retryWait     time.Duration
	concurrency   int
	callTimeout   time.Duration
	maxInputChars int
}

func NewBatcher(embedder ai.IEmbedder, batchSize, maxAttempts int, retryWait, callTimeout time.Duration, concurrency, maxInputChars int) *Batcher {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Batcher{
		embedder:      embedder,
		batchSize:     batchSize,
		maxAttempts:   maxAttempts,
		retryWait:     retryWait,
		concurrency:   concurrency,
		callTimeout:   callTimeout,
		maxInputChars: maxInputChars,
	}
}

func (b *Batcher) ModelName() string {
	if b.embedder == nil {
		return ""
	}
	return b.embedder.ModelName()
}

// EmbedOne embeds a single text with the retry policy applied.
func (b *Batcher) EmbedOne(ctx context.Context, text string, taskType string) ([]float32, error) {
	if b.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	if b.maxInputChars > 0 && len(text) > b.maxInputChars {
		return nil, fmt.Errorf("%w: input exceeds %d chars", apperrors.ErrInvalid, b.maxInputChars)
	}
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if b.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, b.callTimeout)
		}
		vec, err := b.embedder.Embed(callCtx, text, taskType)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt < b.maxAttempts {
			logutil.GetLogger(ctx).Warn("embed attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.retryWait):
			}
		}
	}
	return nil, lastErr
}

// EmbedAll embeds every text and returns one vector per input in the
// same order. Batches run concurrently; a failure of any text fails
// its whole batch, and a non-retryable failure aborts everything.
// Cancellation stops new batches but lets in-flight ones finish.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(texts); start += b.batchSize {
		if gCtx.Err() != nil {
			break
		}
		start := start
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				vec, err := b.EmbedOne(gCtx, texts[i], taskType)
				if err != nil {
					return fmt.Errorf("embed text %d: %w", i, err)
				}
				results[i] = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
