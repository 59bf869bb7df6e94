package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docast/internal/objstore"
)

// FileHandler serves locally stored objects, mainly synthesized audio.
// Non-local stores expose objects through their own public URLs.
type FileHandler struct {
	store objstore.Store
}

func NewFileHandler(store objstore.Store) *FileHandler {
	return &FileHandler{store: store}
}

func (h *FileHandler) Get(c *gin.Context) {
	if h.store.Type() != "local" {
		c.Status(http.StatusNotFound)
		return
	}
	data, err := h.store.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	contentType := http.DetectContentType(data)
	c.Data(http.StatusOK, contentType, data)
}

func requestBaseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return proto + "://" + host
}
