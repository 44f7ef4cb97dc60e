package models

import "time"

// Session: одна авторизованная сессия Telegram (физический аккаунт),
// через которую выполняется рассылка. У оператора может быть несколько сессий.
type Session struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Phone     string    `json:"phone"`
	ApiID     int       `json:"api_id"`
	ApiHash   string    `json:"api_hash"`
	ProxyID   *int      `json:"proxy_id"`
	Proxy     *Proxy    `json:"proxy"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
