package accounts

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRoutes(r *gin.RouterGroup, s Store) {
	handler := NewAccountHandler(s)
	r.POST("", handler.Upsert)
	r.GET("", handler.Get)

	log.Info().Msg("[ROUTER] Account routes registered")
}
