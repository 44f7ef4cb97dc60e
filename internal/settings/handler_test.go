package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adsender_go/models"
	"adsender_go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	settings models.AccountSettings
	premium  bool
	liveLog  *int64
	missing  bool
}

func (s *fakeStore) GetSettings(context.Context, int64) (models.AccountSettings, error) {
	return s.settings, nil
}

func (s *fakeStore) IsPremiumActive(context.Context, int64) (bool, error) { return s.premium, nil }

func (s *fakeStore) SaveAutoMode(_ context.Context, _ int64, w models.AutoModeWindow) error {
	s.settings.AutoMode = w
	return nil
}

func (s *fakeStore) SaveAttribution(_ context.Context, _ int64, a models.Attribution) error {
	s.settings.Attribution = a
	return nil
}

func (s *fakeStore) SaveTopicLinks(_ context.Context, _ int64, links []string) error {
	s.settings.TopicLinks = links
	return nil
}

func (s *fakeStore) SaveTargetDelay(_ context.Context, _ int64, r *models.DelayRange) error {
	s.settings.TargetDelay = r
	return nil
}

func (s *fakeStore) SetLiveLogChat(_ context.Context, _ int64, chatID *int64) error {
	if s.missing {
		return storage.ErrNotFound
	}
	s.liveLog = chatID
	return nil
}

func newRouter(s Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r.Group("/settings"), s)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAutoModeSaved(t *testing.T) {
	store := &fakeStore{settings: models.DefaultSettings(1)}
	r := newRouter(store)

	w := post(r, "/settings/auto_mode", `{"account_id":1,"text":"11:00 pm - 2:00 am"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.AutoModeWindow{Enabled: true, StartMinute: 23 * 60, EndMinute: 120}, store.settings.AutoMode)

	w = post(r, "/settings/auto_mode", `{"account_id":1,"text":"whenever"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/settings/auto_mode", `{"account_id":1,"text":"off"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, store.settings.AutoMode.Enabled)
}

func TestAttributionAcceptsLegacyValues(t *testing.T) {
	store := &fakeStore{settings: models.DefaultSettings(1)}
	r := newRouter(store)

	w := post(r, "/settings/attribution", `{"account_id":1,"mode":"with"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AttributionTagged, store.settings.Attribution)

	w = post(r, "/settings/attribution", `{"account_id":1,"mode":"loud"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTopicsRejectInvalidLink(t *testing.T) {
	store := &fakeStore{settings: models.DefaultSettings(1)}
	r := newRouter(store)

	w := post(r, "/settings/topics", `{"account_id":1,"links":["https://t.me/forum/3"," ","t.me/c/123/9"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"https://t.me/forum/3", "t.me/c/123/9"}, store.settings.TopicLinks)

	w = post(r, "/settings/topics", `{"account_id":1,"links":["not a link"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelayRangeAndReset(t *testing.T) {
	store := &fakeStore{settings: models.DefaultSettings(1)}
	r := newRouter(store)

	w := post(r, "/settings/delay", `{"account_id":1,"text":"5-10"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.settings.TargetDelay)
	assert.Equal(t, models.DelayRange{Min: 5, Max: 10}, *store.settings.TargetDelay)

	w = post(r, "/settings/delay", `{"account_id":1,"text":"1-200"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/settings/delay", `{"account_id":1,"text":"off"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, store.settings.TargetDelay)
}

func TestGetShowsDowngrade(t *testing.T) {
	store := &fakeStore{settings: models.DefaultSettings(1)}
	store.settings.Attribution = models.AttributionTagged
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/settings?account_id=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"downgraded":true`)
	assert.Contains(t, w.Body.String(), `"delay":"10-45"`)
}

func TestLiveLogUnknownAccount(t *testing.T) {
	store := &fakeStore{missing: true}
	r := newRouter(store)

	w := post(r, "/settings/live_log", `{"account_id":1,"chat_id":-100500}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	store.missing = false
	w = post(r, "/settings/live_log", `{"account_id":1,"chat_id":-100500}`)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.liveLog)
	assert.Equal(t, int64(-100500), *store.liveLog)
}
