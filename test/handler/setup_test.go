package handler_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/docast/internal/config"
	"github.com/xxxsen/docast/internal/embedding"
	"github.com/xxxsen/docast/internal/handler"
	"github.com/xxxsen/docast/internal/middleware"
	"github.com/xxxsen/docast/internal/objstore"
	"github.com/xxxsen/docast/internal/repo"
	"github.com/xxxsen/docast/internal/service"
	"github.com/xxxsen/docast/test/testutil"
)

const testUploadLimit = 1024

// stubEmbedder derives a deterministic vector from the input text so
// retrieval ranks real chunks without calling a provider.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	return []float32{
		float32(sum[0]) + 1,
		float32(sum[1]) + 1,
		float32(sum[2]) + 1,
	}, nil
}

func (stubEmbedder) ModelName() string { return "stub-embed" }

// stubGenerator answers by system prompt so one instance serves the
// question, answer and script stages.
type stubGenerator struct {
	err error
}

func (g *stubGenerator) Complete(ctx context.Context, system string, user string, temperature float32) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	switch {
	case strings.Contains(system, "interview questions"):
		return `["What problem does this solve?"]`, nil
	case strings.Contains(system, "spoken monologue"):
		return strings.Repeat("This briefing walks through the document step by step. ", 4), nil
	default:
		return "The document describes its subject in detail.", nil
	}
}

func newTestText(prefix string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return prefix + " " + hex.EncodeToString(buf) + "\n\nIt covers one topic in enough depth to chunk and embed."
}

func setupRouter(t *testing.T) (http.Handler, *stubGenerator, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, dbCleanup := testutil.OpenTestDB(t)
	registryRepo := repo.NewRegistryRepo(db)
	artifactRepo := repo.NewArtifactRepo(db)

	tmpDir, err := os.MkdirTemp("", "docast-objects-*")
	require.NoError(t, err)

	store, err := objstore.New(config.ObjectStoreConfig{
		Type: "local",
		Data: map[string]interface{}{
			"dir": tmpDir,
		},
	})
	require.NoError(t, err)

	batcher := embedding.NewBatcher(stubEmbedder{}, 4, 1, 0, 0, 2, 0)
	gen := &stubGenerator{}

	ingestService := service.NewIngestService(registryRepo, store, batcher, 1000, 2)
	retrieveService := service.NewRetrieveService(registryRepo, store, batcher, 2)
	queryService := service.NewQueryService(retrieveService, gen, 4, 0, 0)
	podcastService := service.NewPodcastService(registryRepo, store, retrieveService, artifactRepo, gen, nil, service.PodcastConfig{
		QuestionCount:  2,
		MinScriptChars: 50,
		RetrieveTopK:   2,
		Concurrency:    2,
	})

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(ingestService, testUploadLimit),
		Queries:   handler.NewQueryHandler(queryService),
		Podcasts:  handler.NewPodcastHandler(podcastService, store),
		Files:     handler.NewFileHandler(store),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, gen, func() {
		dbCleanup()
		_ = os.RemoveAll(tmpDir)
	}
}

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func doJSON(router http.Handler, method, path, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}
