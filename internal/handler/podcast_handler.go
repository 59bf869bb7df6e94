package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docast/internal/model"
	"github.com/xxxsen/docast/internal/objstore"
	"github.com/xxxsen/docast/internal/pkg/response"
	"github.com/xxxsen/docast/internal/service"
)

type PodcastHandler struct {
	podcasts *service.PodcastService
	store    objstore.Store
}

func NewPodcastHandler(podcasts *service.PodcastService, store objstore.Store) *PodcastHandler {
	return &PodcastHandler{podcasts: podcasts, store: store}
}

type podcastRequest struct {
	DocumentID string `json:"document_id"`
	ScriptOnly bool   `json:"script_only"`
}

type podcastResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Script     string `json:"script"`
	AudioURL   string `json:"audio_url,omitempty"`
}

func (h *PodcastHandler) Generate(c *gin.Context) {
	var req podcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	if req.DocumentID == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "document_id required")
		return
	}
	artifact, err := h.podcasts.Generate(c.Request.Context(), req.DocumentID, req.ScriptOnly)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, h.toResponse(c, artifact))
}

func (h *PodcastHandler) Get(c *gin.Context) {
	artifact, err := h.podcasts.GetArtifact(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, h.toResponse(c, artifact))
}

func (h *PodcastHandler) toResponse(c *gin.Context, artifact *model.Artifact) podcastResponse {
	out := podcastResponse{
		DocumentID: artifact.DocumentID,
		Title:      artifact.Title,
		Script:     artifact.Script,
	}
	if artifact.AudioRef != "" {
		out.AudioURL = h.store.URL(artifact.AudioRef, requestBaseURL(c))
	}
	return out
}
