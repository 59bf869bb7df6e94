package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/xxxsen/docast/internal/model"
	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

type fakeRegistry struct {
	mu      sync.Mutex
	byHash  map[string]*model.RegistryEntry
	byDocID map[string]*model.RegistryEntry
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		byHash:  make(map[string]*model.RegistryEntry),
		byDocID: make(map[string]*model.RegistryEntry),
	}
}

func (r *fakeRegistry) FindByHash(ctx context.Context, contentHash string) (*model.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byHash[contentHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entry, nil
}

func (r *fakeRegistry) FindByDocumentID(ctx context.Context, documentID string) (*model.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byDocID[documentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entry, nil
}

func (r *fakeRegistry) Register(ctx context.Context, entry *model.RegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[entry.ContentHash] = entry
	r.byDocID[entry.Document.ID] = entry
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes []string
	getErr  map[string]error
	// failPutAt makes the Nth Put call fail (1-based, 0 disables).
	failPutAt int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), getErr: make(map[string]error)}
}

func (s *fakeStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failPutAt > 0 && s.puts >= s.failPutAt {
		return "", apperrors.ErrInternal
	}
	sum := sha256.Sum256(data)
	ref := hex.EncodeToString(sum[:])
	s.objects[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *fakeStore) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.getErr[ref]; ok {
		return nil, err
	}
	data, ok := s.objects[ref]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	s.deletes = append(s.deletes, ref)
	return nil
}

// fakeServiceEmbedder produces deterministic vectors so cosine ranking
// in tests is predictable: each text maps to a fixed vector from the
// vectors table, everything else gets a default.
type fakeServiceEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	embedErr error
	calls    int
	model    string
}

func newFakeEmbedder() *fakeServiceEmbedder {
	return &fakeServiceEmbedder{
		vectors:  make(map[string][]float32),
		fallback: []float32{1, 0, 0},
		model:    "fake-embed",
	}
}

func (e *fakeServiceEmbedder) ModelName() string { return e.model }

func (e *fakeServiceEmbedder) EmbedOne(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.embedErr != nil {
		return nil, e.embedErr
	}
	if v, ok := e.vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return append([]float32(nil), e.fallback...), nil
}

func (e *fakeServiceEmbedder) EmbedAll(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.EmbedOne(ctx, text, taskType)
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", text, err)
		}
		out = append(out, v)
	}
	return out, nil
}
