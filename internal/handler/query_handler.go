package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docast/internal/pkg/response"
	"github.com/xxxsen/docast/internal/service"
)

type QueryHandler struct {
	queries *service.QueryService
}

func NewQueryHandler(queries *service.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

type queryRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request")
		return
	}
	if req.DocumentID == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "document_id required")
		return
	}
	answer, err := h.queries.Answer(c.Request.Context(), req.DocumentID, req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, queryResponse{Answer: answer})
}
