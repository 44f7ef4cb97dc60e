package campaign

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRoutes(r *gin.RouterGroup, e *Engine) {
	handler := NewHandler(e)
	r.POST("", handler.Create)
	r.POST("/start", handler.Start)
	r.POST("/stop", handler.Stop)
	r.POST("/start_all", handler.StartAll)
	r.POST("/stop_all", handler.StopAll)
	r.GET("/status", handler.Status)
	r.GET("/latest", handler.Latest)

	log.Info().Msg("[ROUTER] Campaign routes registered")
}
