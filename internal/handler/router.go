package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Queries   *QueryHandler
	Podcasts  *PodcastHandler
	Files     *FileHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/documents", deps.Documents.Upload)
	api.POST("/documents/check", deps.Documents.Check)
	api.GET("/documents/:id", deps.Documents.Get)
	api.POST("/documents/:id/resync", deps.Documents.Resync)

	api.POST("/query", deps.Queries.Query)

	api.POST("/podcasts", deps.Podcasts.Generate)
	api.GET("/podcasts/:id", deps.Podcasts.Get)

	api.GET("/files/:key", deps.Files.Get)
}
