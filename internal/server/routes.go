package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"autoinvoice/internal/server/routes"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/", s.rootHandler)
	r.GET("/health", s.healthHandler)

	routes.NewInvoiceRoutes(s).RegisterRoutes(r)

	return r
}

// rootHandler is the plain-text liveness marker.
func (s *Server) rootHandler(c *gin.Context) {
	c.String(http.StatusOK, "health OK")
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.db.Health())
}
