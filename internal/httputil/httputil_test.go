package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestBindJSONRejectsMalformedBody(t *testing.T) {
	c, w := newContext(http.MethodPost, "/", "{")
	var dst struct{ ID int64 }

	assert.False(t, BindJSON(c, &dst))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request format"}`, w.Body.String())
	assert.True(t, c.IsAborted())
}

func TestBindJSONDecodes(t *testing.T) {
	c, _ := newContext(http.MethodPost, "/", `{"id":7}`)
	var dst struct {
		ID int64 `json:"id"`
	}

	assert.True(t, BindJSON(c, &dst))
	assert.Equal(t, int64(7), dst.ID)
}

func TestQueryInt64(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/?account_id=42", "")
	v, ok := QueryInt64(c, "account_id")
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	c, w := newContext(http.MethodGet, "/?account_id=x", "")
	_, ok = QueryInt64(c, "account_id")
	assert.False(t, ok)
	assert.JSONEq(t, `{"error":"Invalid account_id"}`, w.Body.String())
}
