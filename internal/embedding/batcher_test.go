package embedding

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

// fakeEmbedder returns a vector encoding the input so tests can check
// ordering. failures maps text -> list of errors to return before
// succeeding.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]error
	dim      int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{calls: map[string]int{}, failures: map[string][]error{}, dim: dim}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[text]++
	if errs := f.failures[text]; len(errs) > 0 {
		err := errs[0]
		f.failures[text] = errs[1:]
		return nil, err
	}
	n, _ := strconv.Atoi(text)
	vec := make([]float32, f.dim)
	vec[0] = float32(n)
	return vec, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func TestEmbedAllPreservesOrder(t *testing.T) {
	fake := newFakeEmbedder(4)
	b := NewBatcher(fake, 3, 1, 0, 0, 4, 0)
	got, err := b.EmbedAll(context.Background(), texts(10), TaskDocument)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, vec := range got {
		require.Equal(t, float32(i), vec[0], "result %d out of order", i)
	}
}

func TestEmbedAllRetriesTransientFailures(t *testing.T) {
	fake := newFakeEmbedder(4)
	fake.failures["2"] = []error{
		apperrors.MarkRetryable(fmt.Errorf("503")),
		apperrors.MarkRetryable(fmt.Errorf("timeout")),
	}
	b := NewBatcher(fake, 4, 3, time.Millisecond, 0, 2, 0)
	got, err := b.EmbedAll(context.Background(), texts(5), TaskDocument)
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, 3, fake.calls["2"])
}

func TestEmbedAllAbortsOnPermanentFailure(t *testing.T) {
	fake := newFakeEmbedder(4)
	fake.failures["1"] = []error{fmt.Errorf("invalid input")}
	b := NewBatcher(fake, 2, 3, time.Millisecond, 0, 1, 0)
	_, err := b.EmbedAll(context.Background(), texts(4), TaskDocument)
	require.Error(t, err)
	// Permanent failures are not retried.
	require.Equal(t, 1, fake.calls["1"])
}

func TestEmbedAllExhaustsRetries(t *testing.T) {
	fake := newFakeEmbedder(4)
	fake.failures["0"] = []error{
		apperrors.MarkRetryable(fmt.Errorf("503")),
		apperrors.MarkRetryable(fmt.Errorf("503")),
		apperrors.MarkRetryable(fmt.Errorf("503")),
	}
	b := NewBatcher(fake, 1, 3, time.Millisecond, 0, 1, 0)
	_, err := b.EmbedAll(context.Background(), texts(1), TaskDocument)
	require.Error(t, err)
	require.Equal(t, 3, fake.calls["0"])
}

func TestEmbedOneRejectsOverlongInput(t *testing.T) {
	fake := newFakeEmbedder(4)
	b := NewBatcher(fake, 2, 3, time.Millisecond, 0, 1, 8)

	_, err := b.EmbedOne(context.Background(), "123456789", TaskQuery)
	require.ErrorIs(t, err, apperrors.ErrInvalid)
	// Rejected input never reaches the provider and is never retried.
	require.Empty(t, fake.calls)

	vec, err := b.EmbedOne(context.Background(), "12345678", TaskQuery)
	require.NoError(t, err)
	require.Len(t, vec, 4)
}

func TestEmbedAllEmptyInput(t *testing.T) {
	b := NewBatcher(newFakeEmbedder(4), 2, 1, 0, 0, 1, 0)
	got, err := b.EmbedAll(context.Background(), nil, TaskDocument)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLRUWrapperCaches(t *testing.T) {
	fake := newFakeEmbedder(4)
	wrapped := WrapLRU(fake, 8, time.Minute)

	first, err := wrapped.Embed(context.Background(), "7", TaskQuery)
	require.NoError(t, err)
	second, err := wrapped.Embed(context.Background(), "7", TaskQuery)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, fake.calls["7"])
	require.Equal(t, "fake-embed", wrapped.ModelName())
}
