package models

// Counters: накопительные счётчики отправок аккаунта.
// TemplateSent учитывает только отправки стандартного рекламного шаблона.
type Counters struct {
	AccountID    int64 `json:"account_id"`
	TotalSent    int64 `json:"total_sent"`
	TemplateSent int64 `json:"template_sent"`
}
