package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docast/internal/chunker"
	"github.com/xxxsen/docast/internal/embedding"
	"github.com/xxxsen/docast/internal/extract"
	"github.com/xxxsen/docast/internal/model"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
	"github.com/xxxsen/docast/internal/pkg/timeutil"
)

// Registry is the durable content-hash index consulted before any
// chunking or embedding happens.
type Registry interface {
	FindByHash(ctx context.Context, contentHash string) (*model.RegistryEntry, error)
	FindByDocumentID(ctx context.Context, documentID string) (*model.RegistryEntry, error)
	Register(ctx context.Context, entry *model.RegistryEntry) error
}

// ObjectStore is the narrow content-addressed blob interface the
// pipeline writes through.
type ObjectStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Embedder is the batch embedding capability of the pipeline.
type Embedder interface {
	EmbedAll(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

// ContentHash is the deduplication key: a stable digest of extracted
// text, independent of filename and upload time.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

type IngestService struct {
	registry    Registry
	store       ObjectStore
	embedder    Embedder
	chunkMax    int
	concurrency int
}

func NewIngestService(registry Registry, store ObjectStore, embedder Embedder, chunkMax, concurrency int) *IngestService {
	if chunkMax <= 0 {
		chunkMax = chunker.DefaultMaxChars
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &IngestService{
		registry:    registry,
		store:       store,
		embedder:    embedder,
		chunkMax:    chunkMax,
		concurrency: concurrency,
	}
}

// Ingest processes an uploaded file into a registered document. The
// returned bool reports whether an existing document was reused.
// Identical extracted text always maps to one document identity unless
// bypassDedup is set for a controlled reprocessing pass.
func (s *IngestService) Ingest(ctx context.Context, data []byte, filename, mediaType string, bypassDedup bool) (*model.Document, bool, error) {
	text, err := extract.Text(data, mediaType)
	if err != nil {
		return nil, false, err
	}
	contentHash := ContentHash(text)
	logger := logutil.GetLogger(ctx).With(zap.String("content_hash", contentHash), zap.String("filename", filename))

	if !bypassDedup {
		entry, err := s.registry.FindByHash(ctx, contentHash)
		if err == nil {
			logger.Info("duplicate content, reusing document", zap.String("document_id", entry.Document.ID))
			return &entry.Document, true, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, false, fmt.Errorf("registry lookup: %w", err)
		}
	}

	doc, err := s.process(ctx, text, contentHash, filename, mediaType, int64(len(data)))
	if err != nil {
		return nil, false, err
	}
	return doc, false, nil
}

// CheckDuplicate reports whether content identical to data has been
// ingested already, without any side effects.
func (s *IngestService) CheckDuplicate(ctx context.Context, data []byte, mediaType string) (bool, string, error) {
	text, err := extract.Text(data, mediaType)
	if err != nil {
		return false, "", err
	}
	entry, err := s.registry.FindByHash(ctx, ContentHash(text))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, "", nil
		}
		return false, "", err
	}
	return true, entry.Document.ID, nil
}

// GetDocument resolves a document's metadata by identifier.
func (s *IngestService) GetDocument(ctx context.Context, documentID string) (*model.Document, error) {
	entry, err := s.registry.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &entry.Document, nil
}

// Resync reprocesses a document's stored raw text under a fresh
// identity, superseding (not mutating) the previous registry entry
// for its content hash.
func (s *IngestService) Resync(ctx context.Context, documentID string) (*model.Document, error) {
	entry, err := s.registry.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.Get(ctx, entry.Document.TextRef)
	if err != nil {
		return nil, fmt.Errorf("load raw text: %w", err)
	}
	text := string(raw)
	return s.process(ctx, text, ContentHash(text), entry.Document.Filename, entry.Document.MediaType, entry.Document.SizeBytes)
}

func (s *IngestService) process(ctx context.Context, text, contentHash, filename, mediaType string, sizeBytes int64) (*model.Document, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("content_hash", contentHash))
	started := timeutil.NowMillis()
	now := timeutil.NowUnix()

	doc := model.Document{
		ID:          uuid.NewString(),
		ContentHash: contentHash,
		Filename:    filename,
		MediaType:   mediaType,
		SizeBytes:   sizeBytes,
		Ctime:       now,
	}

	textRef, err := s.store.Put(ctx, []byte(text), "text/plain; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("store raw text: %w", err)
	}
	doc.TextRef = textRef

	chunks := chunker.Chunk(text, s.chunkMax)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document produced no chunks: %w", apperrors.ErrInvalid)
	}
	doc.ChunkCount = len(chunks)

	vectors, err := s.embedder.EmbedAll(ctx, chunks, embedding.TaskDocument)
	if err != nil {
		// Nothing beyond the raw text object exists yet; the document
		// is not registered, so the upload is rejected whole.
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	chunkRefs, err := s.storeChunks(ctx, doc.ID, chunks, vectors, now)
	if err != nil {
		s.rollback(ctx, chunkRefs)
		return nil, err
	}

	chunkMap := model.ChunkMap{
		SchemaVersion: model.ChunkSchemaVersion,
		DocumentID:    doc.ID,
		ChunkRefs:     chunkRefs,
		Ctime:         now,
	}
	mapData, err := json.Marshal(chunkMap)
	if err != nil {
		s.rollback(ctx, chunkRefs)
		return nil, err
	}
	chunkMapRef, err := s.store.Put(ctx, mapData, "application/json")
	if err != nil {
		s.rollback(ctx, chunkRefs)
		return nil, fmt.Errorf("store chunk map: %w", err)
	}

	docData, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	docRef, err := s.store.Put(ctx, docData, "application/json")
	if err != nil {
		return nil, fmt.Errorf("store document metadata: %w", err)
	}

	entry := model.RegistryEntry{
		ContentHash:   contentHash,
		Document:      doc,
		DocRef:        docRef,
		ChunkMapRef:   chunkMapRef,
		ProcessMillis: timeutil.NowMillis() - started,
		Ctime:         now,
	}
	if err := s.registry.Register(ctx, &entry); err != nil {
		return nil, fmt.Errorf("register document: %w", err)
	}

	logger.Info("document ingested",
		zap.String("document_id", doc.ID),
		zap.Int("chunk_count", doc.ChunkCount),
		zap.Int64("process_millis", entry.ProcessMillis),
	)
	return &doc, nil
}

// storeChunks writes chunk objects concurrently but returns refs in
// chunk index order; indices are stable keys for the chunk map.
func (s *IngestService) storeChunks(ctx context.Context, documentID string, chunks []string, vectors [][]float32, now int64) ([]string, error) {
	refs := make([]string, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			chunk := model.Chunk{
				SchemaVersion: model.ChunkSchemaVersion,
				DocumentID:    documentID,
				Index:         i,
				Text:          chunks[i],
				Embedding:     vectors[i],
				EmbedModel:    s.embedder.ModelName(),
				Ctime:         now,
			}
			data, err := json.Marshal(chunk)
			if err != nil {
				return err
			}
			ref, err := s.store.Put(gCtx, data, "application/json")
			if err != nil {
				return fmt.Errorf("store chunk %d: %w", i, err)
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return refs, err
	}
	return refs, nil
}

// rollback removes already-written chunk objects after a failed
// ingestion so they are not left orphaned. Best effort.
func (s *IngestService) rollback(ctx context.Context, refs []string) {
	logger := logutil.GetLogger(ctx)
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := s.store.Delete(ctx, ref); err != nil {
			logger.Warn("orphan cleanup failed", zap.String("ref", ref), zap.Error(err))
		}
	}
}
