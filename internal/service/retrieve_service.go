package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/docast/internal/embedding"
	"github.com/xxxsen/docast/internal/model"
	"github.com/xxxsen/docast/internal/pkg/vector"
)

type RetrievalStrategy string

const (
	// StrategyVector scores are cosine similarities in [-1, 1].
	StrategyVector RetrievalStrategy = "vector"
	// StrategyLexical scores are token overlap counts. Not comparable
	// with vector scores.
	StrategyLexical RetrievalStrategy = "lexical"
	// StrategyPositional returns leading chunks in document order when
	// nothing matched at all; scores are zero.
	StrategyPositional RetrievalStrategy = "positional"
)

const lexicalSubstringBonus = 5

type ScoredChunk struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

type RetrievalResult struct {
	Strategy RetrievalStrategy `json:"strategy"`
	Chunks   []ScoredChunk     `json:"chunks"`
}

type RetrieveService struct {
	registry    Registry
	store       ObjectStore
	embedder    Embedder
	concurrency int
}

func NewRetrieveService(registry Registry, store ObjectStore, embedder Embedder, concurrency int) *RetrieveService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &RetrieveService{
		registry:    registry,
		store:       store,
		embedder:    embedder,
		concurrency: concurrency,
	}
}

// Retrieve ranks a document's chunks against query. Vector ranking is
// preferred; garbled chunk text or incompatible embeddings degrade to
// lexical overlap, and a totally unmatched query still yields the
// leading chunks so the caller always has grounding context.
func (s *RetrieveService) Retrieve(ctx context.Context, documentID, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = 4
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", documentID))

	// The registry is authoritative for the latest chunk map.
	entry, err := s.registry.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	chunks, err := s.fetchChunks(ctx, entry.ChunkMapRef)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &RetrievalResult{Strategy: StrategyPositional}, nil
	}

	if hasBinaryMarkers(chunks) {
		logger.Warn("binary markers in chunk text, skipping vector ranking")
		return s.lexicalRank(chunks, query, topK), nil
	}

	queryVec, err := s.embedder.EmbedOne(ctx, query, embedding.TaskQuery)
	if err != nil {
		logger.Warn("query embedding failed, using lexical fallback", zap.Error(err))
		return s.lexicalRank(chunks, query, topK), nil
	}

	// Vectors from a different model may have a different dimension;
	// comparing across dimensions is undefined, so those chunks are
	// excluded up front.
	scored := make([]vector.Scored, 0, len(chunks))
	for i, chunk := range chunks {
		if len(chunk.Embedding) != len(queryVec) {
			continue
		}
		scored = append(scored, vector.Scored{Index: i, Score: vector.Cosine(queryVec, chunk.Embedding)})
	}
	if len(scored) == 0 {
		logger.Warn("no chunks with compatible embedding dimension, using lexical fallback",
			zap.Int("query_dim", len(queryVec)))
		return s.lexicalRank(chunks, query, topK), nil
	}

	top := vector.TopK(scored, topK)
	result := &RetrievalResult{Strategy: StrategyVector, Chunks: make([]ScoredChunk, 0, len(top))}
	for _, item := range top {
		result.Chunks = append(result.Chunks, ScoredChunk{
			Index: chunks[item.Index].Index,
			Text:  chunks[item.Index].Text,
			Score: item.Score,
		})
	}
	return result, nil
}

func (s *RetrieveService) fetchChunks(ctx context.Context, chunkMapRef string) ([]*model.Chunk, error) {
	mapData, err := s.store.Get(ctx, chunkMapRef)
	if err != nil {
		return nil, fmt.Errorf("load chunk map: %w", err)
	}
	chunkMap, err := model.DecodeChunkMap(mapData)
	if err != nil {
		return nil, err
	}
	chunks := make([]*model.Chunk, len(chunkMap.ChunkRefs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ref := range chunkMap.ChunkRefs {
		i, ref := i, ref
		g.Go(func() error {
			data, err := s.store.Get(gCtx, ref)
			if err != nil {
				return fmt.Errorf("load chunk %d: %w", i, err)
			}
			chunk, err := model.DecodeChunk(data)
			if err != nil {
				return err
			}
			chunks[i] = chunk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *RetrieveService) lexicalRank(chunks []*model.Chunk, query string, topK int) *RetrievalResult {
	queryNorm := normalizeText(query)
	queryTokens := tokenize(queryNorm)

	scored := make([]vector.Scored, len(chunks))
	anyHit := false
	for i, chunk := range chunks {
		chunkNorm := normalizeText(chunk.Text)
		var score float32
		for _, token := range queryTokens {
			if strings.Contains(chunkNorm, token) {
				score++
			}
		}
		if queryNorm != "" && strings.Contains(chunkNorm, queryNorm) {
			score += lexicalSubstringBonus
		}
		if score > 0 {
			anyHit = true
		}
		scored[i] = vector.Scored{Index: i, Score: score}
	}

	if !anyHit {
		// No lexical overlap anywhere: the first chunks in document
		// order are still better grounding than nothing.
		if topK > len(chunks) {
			topK = len(chunks)
		}
		result := &RetrievalResult{Strategy: StrategyPositional, Chunks: make([]ScoredChunk, 0, topK)}
		for i := 0; i < topK; i++ {
			result.Chunks = append(result.Chunks, ScoredChunk{Index: chunks[i].Index, Text: chunks[i].Text})
		}
		return result
	}

	top := vector.TopK(scored, topK)
	result := &RetrievalResult{Strategy: StrategyLexical, Chunks: make([]ScoredChunk, 0, len(top))}
	for _, item := range top {
		result.Chunks = append(result.Chunks, ScoredChunk{
			Index: chunks[item.Index].Index,
			Text:  chunks[item.Index].Text,
			Score: item.Score,
		})
	}
	return result
}

var binaryMarkers = []string{"%PDF-", "endobj", "endstream", "xref", "<html", "<!DOCTYPE"}

// hasBinaryMarkers sniffs for un-extracted binary or markup content;
// cosine ranking over garbled text is worse than useless.
func hasBinaryMarkers(chunks []*model.Chunk) bool {
	for _, chunk := range chunks {
		if strings.ContainsRune(chunk.Text, 0) {
			return true
		}
		for _, marker := range binaryMarkers {
			if strings.Contains(chunk.Text, marker) {
				return true
			}
		}
		if nonPrintableRatio(chunk.Text) > 0.2 {
			return true
		}
	}
	return false
}

func nonPrintableRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total := 0
	bad := 0
	for _, r := range text {
		total++
		if r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		if !unicode.IsPrint(r) {
			bad++
		}
	}
	return float64(bad) / float64(total)
}

func normalizeText(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) <= 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
