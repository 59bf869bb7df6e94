package ai

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

var ErrUnavailable = apperrors.ErrUnavailable

// IProvider is a single inference vendor exposing the three
// capabilities docast consumes. Implementations register themselves by
// name in init().
type IProvider interface {
	Name() string
	Complete(ctx context.Context, model string, system string, user string, temperature float32) (string, error)
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
	Speak(ctx context.Context, model string, voice string, text string) ([]byte, string, error)
}

// IGenerator is an IProvider bound to a chat model.
type IGenerator interface {
	Complete(ctx context.Context, system string, user string, temperature float32) (string, error)
}

// IEmbedder is an IProvider bound to an embedding model. ModelName is
// stored next to every vector so dimension compatibility can be
// checked later without re-embedding.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

// ISpeaker is an IProvider bound to a speech model and voice.
type ISpeaker interface {
	Speak(ctx context.Context, text string) ([]byte, string, error)
}

type generator struct {
	provider IProvider
	model    string
}

func NewGenerator(p IProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Complete(ctx context.Context, system string, user string, temperature float32) (string, error) {
	return g.provider.Complete(ctx, g.model, system, user, temperature)
}

type embedder struct {
	provider IProvider
	model    string
}

func NewEmbedder(p IProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type speaker struct {
	provider IProvider
	model    string
	voice    string
}

func NewSpeaker(p IProvider, model string, voice string) ISpeaker {
	return &speaker{provider: p, model: model, voice: voice}
}

func (s *speaker) Speak(ctx context.Context, text string) ([]byte, string, error) {
	return s.provider.Speak(ctx, s.model, s.voice, text)
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}
