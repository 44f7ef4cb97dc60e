package counters

import (
	"context"
	"net/http"

	"adsender_go/internal/httputil"
	"adsender_go/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Store interface {
	GetCounters(ctx context.Context, accountID int64) (models.Counters, error)
	GetGlobalCounters(ctx context.Context) (models.Counters, error)
	ResetCounters(ctx context.Context, accountID int64, templateOnly bool) error
}

type Handler struct {
	Store Store
}

func NewHandler(s Store) *Handler {
	return &Handler{Store: s}
}

// Get возвращает счётчики аккаунта.
func (h *Handler) Get(c *gin.Context) {
	accountID, ok := httputil.QueryInt64(c, "account_id")
	if !ok {
		return
	}
	counters, err := h.Store.GetCounters(c.Request.Context(), accountID)
	if err != nil {
		log.Error().Err(err).Int64("account", accountID).Msg("[DB ERROR] не удалось получить счётчики")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to load counters")
		return
	}
	c.JSON(http.StatusOK, counters)
}

// Global: суммы по всем аккаунтам.
func (h *Handler) Global(c *gin.Context) {
	counters, err := h.Store.GetGlobalCounters(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("[DB ERROR] не удалось получить общие счётчики")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to load counters")
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_sent": counters.TotalSent, "template_sent": counters.TemplateSent})
}

// Reset обнуляет оба счётчика или только счётчик шаблона.
func (h *Handler) Reset(c *gin.Context) {
	var request struct {
		AccountID    int64 `json:"account_id" binding:"required"`
		TemplateOnly bool  `json:"template_only"`
	}
	if !httputil.BindJSON(c, &request) {
		return
	}
	if err := h.Store.ResetCounters(c.Request.Context(), request.AccountID, request.TemplateOnly); err != nil {
		log.Error().Err(err).Int64("account", request.AccountID).Msg("[DB ERROR] не удалось сбросить счётчики")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to reset counters")
		return
	}
	log.Info().Int64("account", request.AccountID).Bool("template_only", request.TemplateOnly).Msg("[COUNTERS] счётчики сброшены")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
