package accounts

import (
	"context"
	"errors"
	"net/http"
	"time"

	"adsender_go/internal/httputil"
	"adsender_go/models"
	"adsender_go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Store interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	UpsertAccount(ctx context.Context, acc models.Account) error
	ListSessions(ctx context.Context, accountID int64) ([]models.Session, error)
}

type AccountHandler struct {
	Store Store
}

func NewAccountHandler(s Store) *AccountHandler {
	return &AccountHandler{Store: s}
}

// Upsert создаёт оператора или обновляет его подписку и блокировку.
func (h *AccountHandler) Upsert(c *gin.Context) {
	var request struct {
		ID           int64      `json:"id" binding:"required"`
		Username     string     `json:"username"`
		IsPremium    bool       `json:"is_premium"`
		PremiumUntil *time.Time `json:"premium_until"`
		IsBanned     bool       `json:"is_banned"`
	}
	if !httputil.BindJSON(c, &request) {
		return
	}
	acc := models.Account{
		ID:           request.ID,
		Username:     request.Username,
		IsPremium:    request.IsPremium,
		PremiumUntil: request.PremiumUntil,
		IsBanned:     request.IsBanned,
	}
	if err := h.Store.UpsertAccount(c.Request.Context(), acc); err != nil {
		log.Error().Err(err).Int64("account", acc.ID).Msg("[DB ERROR] не удалось сохранить аккаунт")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to save account")
		return
	}
	log.Info().Int64("account", acc.ID).Bool("premium", acc.IsPremium).Bool("banned", acc.IsBanned).Msg("[ACCOUNTS] аккаунт сохранён")
	c.JSON(http.StatusOK, acc)
}

// Get возвращает оператора, статус подписки на текущий момент и активные сессии.
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := httputil.QueryInt64(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	acc, err := h.Store.GetAccount(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.RespondError(c, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("account", id).Msg("[DB ERROR] не удалось загрузить аккаунт")
		httputil.RespondError(c, http.StatusInternalServerError, "Failed to load account")
		return
	}
	sessions, err := h.Store.ListSessions(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("account", id).Msg("[DB WARN] не удалось получить сессии")
	}
	type sessionView struct {
		ID    int64  `json:"id"`
		Index int    `json:"index"`
		Phone string `json:"phone"`
		Proxy bool   `json:"proxy"`
	}
	views := make([]sessionView, 0, len(sessions))
	for i, s := range sessions {
		views = append(views, sessionView{ID: s.ID, Index: i + 1, Phone: s.Phone, Proxy: s.Proxy != nil})
	}
	c.JSON(http.StatusOK, gin.H{
		"account":        acc,
		"premium_active": acc.PremiumActive(time.Now()),
		"sessions":       views,
	})
}
