package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
	"github.com/xxxsen/docast/internal/pkg/response"
	"github.com/xxxsen/docast/internal/service"
)

type DocumentHandler struct {
	ingest      *service.IngestService
	uploadLimit int64
}

func NewDocumentHandler(ingest *service.IngestService, uploadLimit int64) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, uploadLimit: uploadLimit}
}

type uploadResponse struct {
	DocumentID   string `json:"document_id"`
	Deduplicated bool   `json:"deduplicated"`
	ChunkCount   int    `json:"chunk_count"`
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	data, header, err := h.readUpload(c)
	if err != nil {
		handleError(c, err)
		return
	}
	doc, deduplicated, err := h.ingest.Ingest(c.Request.Context(), data, header.Filename, uploadMediaType(header, data), false)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadResponse{
		DocumentID:   doc.ID,
		Deduplicated: deduplicated,
		ChunkCount:   doc.ChunkCount,
	})
}

type checkResponse struct {
	Exists     bool   `json:"exists"`
	DocumentID string `json:"document_id,omitempty"`
}

func (h *DocumentHandler) Check(c *gin.Context) {
	data, header, err := h.readUpload(c)
	if err != nil {
		handleError(c, err)
		return
	}
	exists, documentID, err := h.ingest.CheckDuplicate(c.Request.Context(), data, uploadMediaType(header, data))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, checkResponse{Exists: exists, DocumentID: documentID})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.ingest.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Resync(c *gin.Context) {
	doc, err := h.ingest.Resync(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadResponse{DocumentID: doc.ID, ChunkCount: doc.ChunkCount})
}

func (h *DocumentHandler) readUpload(c *gin.Context) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("file is required: %w", apperrors.ErrInvalid)
	}
	if h.uploadLimit > 0 && header.Size > h.uploadLimit {
		return nil, nil, fmt.Errorf("file exceeds %s: %w", formatUploadLimit(h.uploadLimit), apperrors.ErrTooLarge)
	}
	opened, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", apperrors.ErrInvalid)
	}
	defer opened.Close()
	var reader io.Reader = opened
	if h.uploadLimit > 0 {
		reader = io.LimitReader(opened, h.uploadLimit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", apperrors.ErrInvalid)
	}
	if h.uploadLimit > 0 && int64(len(data)) > h.uploadLimit {
		return nil, nil, fmt.Errorf("file exceeds %s: %w", formatUploadLimit(h.uploadLimit), apperrors.ErrTooLarge)
	}
	return data, header, nil
}

func uploadMediaType(header *multipart.FileHeader, data []byte) string {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return contentType
}
