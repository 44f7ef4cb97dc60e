package settings

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRoutes(r *gin.RouterGroup, s Store) {
	handler := NewHandler(s)
	r.GET("", handler.Get)
	r.POST("/auto_mode", handler.AutoMode)
	r.POST("/attribution", handler.Attribution)
	r.POST("/topics", handler.Topics)
	r.POST("/delay", handler.Delay)
	r.POST("/live_log", handler.LiveLog)

	log.Info().Msg("[ROUTER] Settings routes registered")
}
