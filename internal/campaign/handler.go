package campaign

import (
	"errors"
	"net/http"
	"strconv"

	"adsender_go/internal/httputil"
	"adsender_go/models"
	"adsender_go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Engine *Engine
}

func NewHandler(e *Engine) *Handler {
	return &Handler{Engine: e}
}

type keyRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
	SessionID int64 `json:"session_id" binding:"required"`
}

type accountRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
}

// Create сохраняет новый снимок кампании и при start=true сразу запускает его.
func (h *Handler) Create(c *gin.Context) {
	var request struct {
		AccountID      int64    `json:"account_id" binding:"required"`
		SessionID      int64    `json:"session_id" binding:"required"`
		Links          []string `json:"links"`
		IntervalSec    int      `json:"interval_sec"`
		GroupMode      string   `json:"group_mode"`
		SelectedGroups []int64  `json:"selected_groups"`
		Attribution    *string  `json:"attribution"`
		TopicLinks     []string `json:"topic_links"`
		Start          bool     `json:"start"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		log.Warn().Err(err).Msg("[HANDLER WARN] неверный формат запроса")
		httputil.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	camp := models.Campaign{
		AccountID:      request.AccountID,
		SessionID:      request.SessionID,
		Links:          request.Links,
		IntervalSec:    request.IntervalSec,
		GroupMode:      models.GroupMode(request.GroupMode),
		SelectedGroups: request.SelectedGroups,
		TopicLinks:     request.TopicLinks,
	}
	if camp.GroupMode == "" {
		camp.GroupMode = models.GroupModeAll
	}
	if request.Attribution != nil {
		attr, err := models.ParseAttribution(*request.Attribution)
		if err != nil {
			httputil.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		camp.Attribution = attr
	}

	saved, err := h.Engine.CreateCampaign(c.Request.Context(), camp)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	log.Info().Int64("campaign", saved.ID).Int64("account", saved.AccountID).Msg("[HANDLER] кампания сохранена")

	if request.Start {
		if _, err := h.Engine.Start(c.Request.Context(), saved.AccountID, saved.SessionID); err != nil {
			respondEngineError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": saved, "started": request.Start})
}

func (h *Handler) Start(c *gin.Context) {
	var request keyRequest
	if !httputil.BindJSON(c, &request) {
		return
	}
	camp, err := h.Engine.Start(c.Request.Context(), request.AccountID, request.SessionID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started", "campaign": camp})
}

func (h *Handler) Stop(c *gin.Context) {
	var request keyRequest
	if !httputil.BindJSON(c, &request) {
		return
	}
	stopped := h.Engine.Stop(request.AccountID, request.SessionID)
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

func (h *Handler) StartAll(c *gin.Context) {
	var request accountRequest
	if !httputil.BindJSON(c, &request) {
		return
	}
	started, err := h.Engine.StartAll(c.Request.Context(), request.AccountID)
	resp := gin.H{"started": started}
	if err != nil {
		log.Warn().Err(err).Int64("account", request.AccountID).Msg("[HANDLER WARN] часть кампаний не запущена")
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) StopAll(c *gin.Context) {
	var request accountRequest
	if !httputil.BindJSON(c, &request) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": h.Engine.StopAll(request.AccountID)})
}

// Status возвращает работающие кампании аккаунта или число всех кампаний без account_id.
func (h *Handler) Status(c *gin.Context) {
	raw := c.Query("account_id")
	if raw == "" {
		c.JSON(http.StatusOK, gin.H{"running": h.Engine.Running()})
		return
	}
	accountID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid account_id")
		return
	}
	keys := h.Engine.Status(accountID)
	if keys == nil {
		keys = []Key{}
	}
	c.JSON(http.StatusOK, gin.H{"running": len(keys), "campaigns": keys})
}

// Latest возвращает актуальный снимок кампании сессии.
func (h *Handler) Latest(c *gin.Context) {
	accountID, err1 := strconv.ParseInt(c.Query("account_id"), 10, 64)
	sessionID, err2 := strconv.ParseInt(c.Query("session_id"), 10, 64)
	if err1 != nil || err2 != nil {
		httputil.RespondError(c, http.StatusBadRequest, "Invalid account_id or session_id")
		return
	}
	camp, err := h.Engine.d.Store.GetLatestCampaign(c.Request.Context(), accountID, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.RespondError(c, http.StatusNotFound, ErrNoCampaign.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("[DB ERROR] не удалось загрузить кампанию")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to load campaign")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"campaign": camp,
		"running":  h.Engine.IsRunning(accountID, sessionID),
	})
}

func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNoCampaign):
		httputil.RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAccountBanned):
		httputil.RespondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrShuttingDown):
		httputil.RespondError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrNoLinks), errors.Is(err, models.ErrIntervalRange),
		errors.Is(err, models.ErrUnknownMode), errors.Is(err, models.ErrEmptySubset),
		errors.Is(err, models.ErrUnknownAttrMode):
		httputil.RespondError(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("[HANDLER ERROR] ошибка движка кампаний")
		httputil.RespondError(c, http.StatusInternalServerError, "Internal error")
	}
}
