package httputil

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RespondError отправляет ошибку в формате {"error": msg} и прерывает цепочку обработчиков.
func RespondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BindJSON разбирает тело запроса; при ошибке уже ответил 400.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// QueryInt64 читает обязательный числовой параметр запроса; при ошибке уже ответил 400.
func QueryInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}
