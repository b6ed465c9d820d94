package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flarexio/docblade"
)

func AddRouters(r *gin.Engine, endpoints docblade.EndpointSet) {
	// RESTful API routes
	api := r.Group("/api")
	{
		api.POST("/ask", AskHandler(endpoints.Ask))
		api.GET("/sources", SourcesHandler(endpoints.Sources))
		api.POST("/ingest", IngestHandler(endpoints.Ingest))
	}

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})
}
