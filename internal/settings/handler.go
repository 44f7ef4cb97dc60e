package settings

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"adsender_go/internal/httputil"
	"adsender_go/models"
	"adsender_go/pkg/storage"
	dispatch "adsender_go/pkg/telegram/campaign"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Store: хранилище настроек аккаунта.
type Store interface {
	GetSettings(ctx context.Context, accountID int64) (models.AccountSettings, error)
	IsPremiumActive(ctx context.Context, accountID int64) (bool, error)
	SaveAutoMode(ctx context.Context, accountID int64, w models.AutoModeWindow) error
	SaveAttribution(ctx context.Context, accountID int64, attr models.Attribution) error
	SaveTopicLinks(ctx context.Context, accountID int64, links []string) error
	SaveTargetDelay(ctx context.Context, accountID int64, r *models.DelayRange) error
	SetLiveLogChat(ctx context.Context, accountID int64, chatID *int64) error
}

type Handler struct {
	Store Store
}

func NewHandler(s Store) *Handler {
	return &Handler{Store: s}
}

// Get возвращает настройки и режим, который реально применится при следующем цикле.
func (h *Handler) Get(c *gin.Context) {
	accountID, ok := httputil.QueryInt64(c, "account_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	s, err := h.Store.GetSettings(ctx, accountID)
	if err != nil {
		log.Error().Err(err).Int64("account", accountID).Msg("[DB ERROR] не удалось загрузить настройки")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	premium, err := h.Store.IsPremiumActive(ctx, accountID)
	if err != nil {
		log.Warn().Err(err).Int64("account", accountID).Msg("[DB WARN] статус подписки недоступен")
	}
	tier := dispatch.ResolveTier(premium, s.Attribution, s.TopicLinks, s.TargetDelay)
	c.JSON(http.StatusOK, gin.H{
		"settings":  s,
		"auto_mode": s.AutoMode.String(),
		"premium":   premium,
		"effective": gin.H{
			"attribution": tier.Attribution,
			"topic_links": len(tier.TopicLinks),
			"delay":       tier.Delay.String(),
			"downgraded":  tier.Downgraded,
		},
	})
}

type textRequest struct {
	AccountID int64  `json:"account_id" binding:"required"`
	Text      string `json:"text"`
}

// AutoMode принимает окно вида "3:30 am - 2:00 pm" или "off".
func (h *Handler) AutoMode(c *gin.Context) {
	var request textRequest
	if !httputil.BindJSON(c, &request) {
		return
	}
	w, err := models.ParseAutoModeWindow(request.Text)
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !h.save(c, "auto_mode", h.Store.SaveAutoMode(c.Request.Context(), request.AccountID, w)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"auto_mode": w, "text": w.String()})
}

func (h *Handler) Attribution(c *gin.Context) {
	var request struct {
		AccountID int64  `json:"account_id" binding:"required"`
		Mode      string `json:"mode" binding:"required"`
	}
	if !httputil.BindJSON(c, &request) {
		return
	}
	attr, err := models.ParseAttribution(request.Mode)
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !h.save(c, "attribution", h.Store.SaveAttribution(c.Request.Context(), request.AccountID, attr)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"attribution": attr})
}

// Topics сохраняет ссылки на темы форумов. Каждая ссылка должна указывать на тему.
func (h *Handler) Topics(c *gin.Context) {
	var request struct {
		AccountID int64    `json:"account_id" binding:"required"`
		Links     []string `json:"links"`
	}
	if !httputil.BindJSON(c, &request) {
		return
	}
	links := make([]string, 0, len(request.Links))
	for _, raw := range request.Links {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, err := dispatch.ParseLink(raw); err != nil {
			httputil.RespondError(c, http.StatusBadRequest, "Invalid topic link: "+raw)
			return
		}
		links = append(links, raw)
	}
	if !h.save(c, "topic_links", h.Store.SaveTopicLinks(c.Request.Context(), request.AccountID, links)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic_links": links})
}

// Delay принимает "5-10", "7" или пустую строку / "off" для сброса.
func (h *Handler) Delay(c *gin.Context) {
	var request textRequest
	if !httputil.BindJSON(c, &request) {
		return
	}
	var r *models.DelayRange
	if txt := strings.ToLower(strings.TrimSpace(request.Text)); txt != "" && txt != "off" {
		parsed, err := models.ParseDelayRange(txt)
		if err != nil {
			httputil.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		r = &parsed
	}
	if !h.save(c, "target_delay", h.Store.SaveTargetDelay(c.Request.Context(), request.AccountID, r)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"target_delay": r})
}

// LiveLog привязывает чат живого журнала; null отвязывает.
func (h *Handler) LiveLog(c *gin.Context) {
	var request struct {
		AccountID int64  `json:"account_id" binding:"required"`
		ChatID    *int64 `json:"chat_id"`
	}
	if !httputil.BindJSON(c, &request) {
		return
	}
	if !h.save(c, "live_log_chat", h.Store.SetLiveLogChat(c.Request.Context(), request.AccountID, request.ChatID)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"live_log_chat_id": request.ChatID})
}

func (h *Handler) save(c *gin.Context, field string, err error) bool {
	switch {
	case err == nil:
		log.Info().Str("field", field).Msg("[SETTINGS] настройка сохранена")
		return true
	case errors.Is(err, storage.ErrNotFound):
		httputil.RespondError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, models.ErrDelayRange), errors.Is(err, models.ErrUnknownAttrMode):
		httputil.RespondError(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("field", field).Msg("[DB ERROR] не удалось сохранить настройку")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to save settings")
	}
	return false
}
