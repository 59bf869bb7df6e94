package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

func TestQueryStatusMapping(t *testing.T) {
	router, gen, cleanup := setupRouter(t)
	defer cleanup()

	resp := doJSON(router, http.MethodPost, "/api/v1/query", `{"question":"what is this?"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(router, http.MethodPost, "/api/v1/query", `{"document_id":"no-such-document","question":"what is this?"}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
	var notFound errorResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &notFound))
	require.Equal(t, "not_found", notFound.Error.Code)

	upload := httptest.NewRecorder()
	router.ServeHTTP(upload, uploadRequest(t, "/api/v1/documents", "q.txt", newTestText("Query mapping")))
	require.Equal(t, http.StatusOK, upload.Code)
	var doc uploadResult
	require.NoError(t, json.Unmarshal(upload.Body.Bytes(), &doc))

	payload := fmt.Sprintf(`{"document_id":%q,"question":"what is this?"}`, doc.Data.DocumentID)

	// A provider outage on an existing document surfaces as 503.
	gen.err = apperrors.ErrUnavailable
	resp = doJSON(router, http.MethodPost, "/api/v1/query", payload)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var unavailable errorResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &unavailable))
	require.Equal(t, "ai_unavailable", unavailable.Error.Code)

	gen.err = nil
	resp = doJSON(router, http.MethodPost, "/api/v1/query", payload)
	require.Equal(t, http.StatusOK, resp.Code)
	var answered struct {
		Data struct {
			Answer string `json:"answer"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &answered))
	require.NotEmpty(t, answered.Data.Answer)
}
