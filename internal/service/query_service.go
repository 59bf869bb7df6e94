package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docast/internal/ai"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

const answerSystemPrompt = `You answer questions about a single document using only the context excerpts provided. Be direct and specific. If the context does not contain the answer, say so briefly instead of guessing.`

const answerNoContext = "I could not retrieve relevant context from the document for this question."

// Retriever is the chunk ranking capability QueryService and the
// synthesis workflow build on.
type Retriever interface {
	Retrieve(ctx context.Context, documentID string, query string, topK int) (*RetrievalResult, error)
}

type QueryService struct {
	retriever Retriever
	generator ai.IGenerator
	topK      int
	cache     *expirable.LRU[string, string]
}

func NewQueryService(retriever Retriever, generator ai.IGenerator, topK int, cacheSize int, cacheTTL time.Duration) *QueryService {
	if topK <= 0 {
		topK = 4
	}
	var cache *expirable.LRU[string, string]
	if cacheSize > 0 {
		cache = expirable.NewLRU[string, string](cacheSize, nil, cacheTTL)
	}
	return &QueryService{
		retriever: retriever,
		generator: generator,
		topK:      topK,
		cache:     cache,
	}
}

// Answer retrieves grounding chunks for question and asks the chat
// model for an answer. A retrieval failure on an existing document
// degrades to a no-context answer rather than failing the call; an
// unknown document is still an error.
func (s *QueryService) Answer(ctx context.Context, documentID string, question string) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("answer question: %w", apperrors.ErrUnavailable)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required: %w", apperrors.ErrInvalid)
	}

	cacheKey := answerCacheKey(documentID, question)
	if s.cache != nil {
		if answer, ok := s.cache.Get(cacheKey); ok {
			return answer, nil
		}
	}

	result, err := s.retriever.Retrieve(ctx, documentID, question, s.topK)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", err
		}
		logutil.GetLogger(ctx).Warn("retrieval failed, answering without context",
			zap.String("document_id", documentID), zap.Error(err))
		result = &RetrievalResult{}
	}

	answer, err := s.generator.Complete(ctx, answerSystemPrompt, buildAnswerPrompt(question, result), 0.3)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	answer = stripDeliberation(answer)
	if answer == "" {
		answer = answerNoContext
	}
	if s.cache != nil {
		s.cache.Add(cacheKey, answer)
	}
	return answer, nil
}

func buildAnswerPrompt(question string, result *RetrievalResult) string {
	var sb strings.Builder
	if len(result.Chunks) == 0 {
		sb.WriteString("No context could be retrieved from the document.\n")
	} else {
		sb.WriteString("Context excerpts from the document:\n\n")
		for i, chunk := range result.Chunks {
			fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, chunk.Text)
		}
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

func answerCacheKey(documentID string, question string) string {
	sum := sha256.Sum256([]byte(documentID + "\x00" + question))
	return hex.EncodeToString(sum[:])
}

// stripDeliberation drops chain-of-thought blocks some models emit
// before the actual answer.
func stripDeliberation(text string) string {
	for {
		start := strings.Index(text, "<think>")
		if start < 0 {
			break
		}
		end := strings.Index(text[start:], "</think>")
		if end < 0 {
			text = text[:start]
			break
		}
		text = text[:start] + text[start+end+len("</think>"):]
	}
	return strings.TrimSpace(text)
}
