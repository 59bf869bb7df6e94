package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docast/internal/model"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

type seededChunk struct {
	text      string
	embedding []float32
}

func seedDocument(t *testing.T, registry *fakeRegistry, store *fakeStore, documentID string, chunks []seededChunk) {
	t.Helper()
	ctx := context.Background()
	refs := make([]string, 0, len(chunks))
	for i, c := range chunks {
		data, err := json.Marshal(&model.Chunk{
			SchemaVersion: model.ChunkSchemaVersion,
			DocumentID:    documentID,
			Index:         i,
			Text:          c.text,
			Embedding:     c.embedding,
			EmbedModel:    "fake-embed",
		})
		require.NoError(t, err)
		ref, err := store.Put(ctx, data, "application/json")
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	mapData, err := json.Marshal(&model.ChunkMap{
		SchemaVersion: model.ChunkSchemaVersion,
		DocumentID:    documentID,
		ChunkRefs:     refs,
	})
	require.NoError(t, err)
	mapRef, err := store.Put(ctx, mapData, "application/json")
	require.NoError(t, err)
	require.NoError(t, registry.Register(ctx, &model.RegistryEntry{
		ContentHash: "hash-" + documentID,
		Document: model.Document{
			ID:         documentID,
			ChunkCount: len(chunks),
		},
		ChunkMapRef: mapRef,
	}))
}

func TestRetrieveVectorRanking(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()
	embedder.vectors["solar power"] = []float32{0, 1, 0}

	seedDocument(t, registry, store, "doc-1", []seededChunk{
		{text: "wind turbines and grid storage", embedding: []float32{1, 0, 0}},
		{text: "solar panels convert sunlight", embedding: []float32{0, 1, 0}},
		{text: "coal plants are being retired", embedding: []float32{0, 0.6, 0.8}},
	})

	svc := NewRetrieveService(registry, store, embedder, 2)
	result, err := svc.Retrieve(context.Background(), "doc-1", "solar power", 2)
	require.NoError(t, err)
	require.Equal(t, StrategyVector, result.Strategy)
	require.Len(t, result.Chunks, 2)
	require.Equal(t, 1, result.Chunks[0].Index)
	require.InDelta(t, 1.0, result.Chunks[0].Score, 1e-6)
	require.Equal(t, 2, result.Chunks[1].Index)
}

func TestRetrieveDimensionMismatchExcluded(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()
	embedder.vectors["query"] = []float32{0, 1, 0}

	// The middle chunk was embedded by a different model with another
	// dimension; it must never win on an undefined comparison.
	seedDocument(t, registry, store, "doc-1", []seededChunk{
		{text: "first chunk", embedding: []float32{0, 0.9, 0.1}},
		{text: "stale chunk", embedding: []float32{1, 1, 1, 1, 1}},
		{text: "third chunk", embedding: []float32{1, 0, 0}},
	})

	svc := NewRetrieveService(registry, store, embedder, 2)
	result, err := svc.Retrieve(context.Background(), "doc-1", "query", 3)
	require.NoError(t, err)
	require.Equal(t, StrategyVector, result.Strategy)
	require.Len(t, result.Chunks, 2)
	for _, c := range result.Chunks {
		require.NotEqual(t, 1, c.Index)
	}
}

func TestRetrieveBinaryMarkersRouteToLexical(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()

	seedDocument(t, registry, store, "doc-1", []seededChunk{
		{text: "%PDF-1.7 stream garbage endobj", embedding: []float32{1, 0, 0}},
		{text: "actual readable text about kubernetes scheduling", embedding: []float32{0, 1, 0}},
	})

	svc := NewRetrieveService(registry, store, embedder, 2)
	result, err := svc.Retrieve(context.Background(), "doc-1", "kubernetes scheduling", 1)
	require.NoError(t, err)
	require.Equal(t, StrategyLexical, result.Strategy)
	require.Len(t, result.Chunks, 1)
	require.Equal(t, 1, result.Chunks[0].Index)
	// No embedding call should have been made for the query.
	require.Equal(t, 0, embedder.calls)
}

func TestRetrieveEmbedFailureFallsBackToLexical(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()
	embedder.embedErr = apperrors.ErrUnavailable

	seedDocument(t, registry, store, "doc-1", []seededChunk{
		{text: "postgres replication lag monitoring", embedding: []float32{1, 0, 0}},
		{text: "redis cluster failover", embedding: []float32{0, 1, 0}},
	})

	svc := NewRetrieveService(registry, store, embedder, 2)
	result, err := svc.Retrieve(context.Background(), "doc-1", "replication lag", 1)
	require.NoError(t, err)
	require.Equal(t, StrategyLexical, result.Strategy)
	require.Equal(t, 0, result.Chunks[0].Index)
}

func TestRetrieveNoOverlapReturnsPositional(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()
	embedder.embedErr = apperrors.ErrUnavailable

	seedDocument(t, registry, store, "doc-1", []seededChunk{
		{text: "alpha", embedding: []float32{1, 0, 0}},
		{text: "beta", embedding: []float32{0, 1, 0}},
		{text: "gamma", embedding: []float32{0, 0, 1}},
	})

	svc := NewRetrieveService(registry, store, embedder, 2)
	result, err := svc.Retrieve(context.Background(), "doc-1", "zzz unrelated query", 2)
	require.NoError(t, err)
	require.Equal(t, StrategyPositional, result.Strategy)
	require.Len(t, result.Chunks, 2)
	require.Equal(t, 0, result.Chunks[0].Index)
	require.Equal(t, 1, result.Chunks[1].Index)
}

func TestRetrieveUnknownDocument(t *testing.T) {
	svc := NewRetrieveService(newFakeRegistry(), newFakeStore(), newFakeEmbedder(), 2)
	_, err := svc.Retrieve(context.Background(), "missing", "query", 3)
	require.True(t, apperrors.IsNotFound(err))
}

func TestRetrieveTopKBoundedByChunkCount(t *testing.T) {
	registry := newFakeRegistry()
	store := newFakeStore()
	embedder := newFakeEmbedder()
	embedder.vectors["q"] = []float32{1, 0, 0}

	seedDocument(t, registry, store, "doc-1", []seededChunk{
		{text: "only chunk", embedding: []float32{1, 0, 0}},
	})

	svc := NewRetrieveService(registry, store, embedder, 2)
	result, err := svc.Retrieve(context.Background(), "doc-1", "q", 10)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
}
