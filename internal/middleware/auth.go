package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AuthRequired проверяет статичный Bearer-токен управляющего API.
// Пустой токен отключает проверку.
func AuthRequired(token string) gin.HandlerFunc {
	if token == "" {
		log.Warn().Msg("[AUTH] API_TOKEN не задан, управляющий API открыт")
		return func(c *gin.Context) { c.Next() }
	}
	expected := []byte("Bearer " + token)
	return func(c *gin.Context) {
		if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), expected) != 1 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
