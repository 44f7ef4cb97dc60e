package models

import "time"

// Placeholder подставляется вместо отсутствующих значений в журнале и логах.
const Placeholder = "—"

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SendEvent: строка аудита об одной попытке доставки.
type SendEvent struct {
	ID          int64     `json:"id"`
	Time        time.Time `json:"time"`
	AccountID   int64     `json:"account_id"`
	SessionID   int64     `json:"session_id"`
	SenderLabel string    `json:"sender_label"`
	TargetID    int64     `json:"target_id"`
	TargetName  string    `json:"target_name"`
	TargetLink  string    `json:"target_link"`
	ContentLink string    `json:"content_link"`
	PostLink    string    `json:"post_link"`
	Status      string    `json:"status"`
	FailReason  string    `json:"fail_reason"`
	Position    int       `json:"position"`
	Total       int       `json:"total"`
}

// Success сообщает, была ли попытка успешной.
func (e SendEvent) Success() bool { return e.Status == StatusSuccess }
