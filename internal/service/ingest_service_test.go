package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

const ingestSampleText = "Raft is a consensus algorithm.\n\nIt elects a leader per term and replicates a log."

func newIngestFixture() (*IngestService, *fakeRegistry, *fakeStore, *fakeServiceEmbedder) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()
	svc := NewIngestService(registry, store, embedder, 1000, 2)
	return svc, registry, store, embedder
}

func TestIngestDedupIdentity(t *testing.T) {
	svc, _, store, _ := newIngestFixture()
	ctx := context.Background()

	doc, deduplicated, err := svc.Ingest(ctx, []byte(ingestSampleText), "a.txt", "text/plain", false)
	require.NoError(t, err)
	require.False(t, deduplicated)
	require.NotEmpty(t, doc.ID)
	require.Equal(t, ContentHash(ingestSampleText), doc.ContentHash)
	putsAfterFirst := store.puts

	// Same bytes under another filename must reuse the identity and
	// write nothing new.
	again, deduplicated, err := svc.Ingest(ctx, []byte(ingestSampleText), "b.txt", "text/plain", false)
	require.NoError(t, err)
	require.True(t, deduplicated)
	require.Equal(t, doc.ID, again.ID)
	require.Equal(t, putsAfterFirst, store.puts)
}

func TestIngestStoresChunksAndRegisters(t *testing.T) {
	svc, registry, store, _ := newIngestFixture()
	ctx := context.Background()

	doc, _, err := svc.Ingest(ctx, []byte(ingestSampleText), "a.txt", "text/plain", false)
	require.NoError(t, err)
	require.Equal(t, 1, doc.ChunkCount)

	entry, err := registry.FindByHash(ctx, doc.ContentHash)
	require.NoError(t, err)
	require.Equal(t, doc.ID, entry.Document.ID)
	require.NotEmpty(t, entry.ChunkMapRef)
	require.NotEmpty(t, entry.DocRef)
	require.GreaterOrEqual(t, entry.ProcessMillis, int64(0))
	require.Greater(t, entry.Ctime, int64(0))

	raw, err := store.Get(ctx, entry.Document.TextRef)
	require.NoError(t, err)
	require.Equal(t, ingestSampleText, string(raw))
}

func TestIngestEmbedFailureRejectsWhole(t *testing.T) {
	svc, registry, store, embedder := newIngestFixture()
	embedder.embedErr = apperrors.ErrUnavailable
	ctx := context.Background()

	_, _, err := svc.Ingest(ctx, []byte(ingestSampleText), "a.txt", "text/plain", false)
	require.Error(t, err)

	// No registry entry, and only the raw text object was written.
	_, err = registry.FindByHash(ctx, ContentHash(ingestSampleText))
	require.True(t, apperrors.IsNotFound(err))
	require.Equal(t, 1, store.puts)
}

func TestIngestChunkMapFailureRollsBackChunks(t *testing.T) {
	svc, registry, store, _ := newIngestFixture()
	ctx := context.Background()

	// Put order: raw text, one chunk, then the chunk map at call 3.
	store.failPutAt = 3
	_, _, err := svc.Ingest(ctx, []byte(ingestSampleText), "a.txt", "text/plain", false)
	require.Error(t, err)
	require.Len(t, store.deletes, 1)
	_, err = registry.FindByHash(ctx, ContentHash(ingestSampleText))
	require.True(t, apperrors.IsNotFound(err))
}

func TestIngestRejectsEmptyDocument(t *testing.T) {
	svc, _, _, _ := newIngestFixture()
	_, _, err := svc.Ingest(context.Background(), []byte("   \n\n  "), "a.txt", "text/plain", false)
	require.True(t, apperrors.IsInvalid(err))
}

func TestCheckDuplicate(t *testing.T) {
	svc, _, _, _ := newIngestFixture()
	ctx := context.Background()

	exists, _, err := svc.CheckDuplicate(ctx, []byte(ingestSampleText), "text/plain")
	require.NoError(t, err)
	require.False(t, exists)

	doc, _, err := svc.Ingest(ctx, []byte(ingestSampleText), "a.txt", "text/plain", false)
	require.NoError(t, err)

	exists, documentID, err := svc.CheckDuplicate(ctx, []byte(ingestSampleText), "text/plain")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, doc.ID, documentID)
}

func TestResyncCreatesNewIdentity(t *testing.T) {
	svc, registry, _, _ := newIngestFixture()
	ctx := context.Background()

	doc, _, err := svc.Ingest(ctx, []byte(ingestSampleText), "a.txt", "text/plain", false)
	require.NoError(t, err)

	resynced, err := svc.Resync(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEqual(t, doc.ID, resynced.ID)
	require.Equal(t, doc.ContentHash, resynced.ContentHash)

	// The registry entry for the hash now points at the new identity.
	entry, err := registry.FindByHash(ctx, doc.ContentHash)
	require.NoError(t, err)
	require.Equal(t, resynced.ID, entry.Document.ID)
}

func TestGetDocumentNotFound(t *testing.T) {
	svc, _, _, _ := newIngestFixture()
	_, err := svc.GetDocument(context.Background(), "missing")
	require.True(t, apperrors.IsNotFound(err))
}
