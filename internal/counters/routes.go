package counters

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRoutes(r *gin.RouterGroup, s Store) {
	handler := NewHandler(s)
	r.GET("", handler.Get)
	r.GET("/global", handler.Global)
	r.POST("/reset", handler.Reset)

	log.Info().Msg("[ROUTER] Counters routes registered")
}
