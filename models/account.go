package models

import "time"

// Account: оператор, которому принадлежат привязанные сессии и кампании.
// ID совпадает с Telegram ID владельца в основном боте.
type Account struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	IsPremium     bool       `json:"is_premium"`
	PremiumUntil  *time.Time `json:"premium_until"`
	IsBanned      bool       `json:"is_banned"`
	LiveLogChatID *int64     `json:"live_log_chat_id"`
}

// PremiumActive сообщает, действует ли подписка в момент now.
// Пустая дата окончания означает бессрочную подписку.
func (a Account) PremiumActive(now time.Time) bool {
	if !a.IsPremium {
		return false
	}
	if a.PremiumUntil == nil {
		return true
	}
	return a.PremiumUntil.After(now)
}
