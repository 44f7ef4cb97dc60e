package campaign

import (
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/tgerr"
)

// FloodMargin добавляется к ожиданию, которое запросил Telegram.
const FloodMargin = time.Second

// ResultKind: итог одной попытки доставки.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultSkip
	ResultRateLimited
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultRateLimited:
		return "rate_limited"
	default:
		return "skip"
	}
}

// Result: результат попытки. Ошибки наружу не выходят.
type Result struct {
	Kind      ResultKind
	MessageID int
	Link      string
	Reason    string
	Wait      time.Duration
}

// Success сообщает, что сообщение доставлено.
func (r Result) Success() bool { return r.Kind == ResultSuccess }

var forbiddenTypes = []string{
	"CHAT_WRITE_FORBIDDEN",
	"USER_BANNED_IN_CHANNEL",
	"CHAT_ADMIN_REQUIRED",
	"CHANNEL_PRIVATE",
	"CHAT_SEND_PLAIN_FORBIDDEN",
	"CHAT_SEND_MEDIA_FORBIDDEN",
	"CHAT_GUEST_SEND_FORBIDDEN",
	"TOPIC_CLOSED",
}

// Classify раскладывает ошибку API по категориям: пропуск или ограничение частоты.
func Classify(err error) Result {
	if err == nil {
		return Result{Kind: ResultSuccess}
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return rateLimited(d)
	}
	if rpc, ok := tgerr.As(err); ok {
		switch {
		case rpc.IsType("SLOWMODE_WAIT"):
			return rateLimited(time.Duration(rpc.Argument) * time.Second)
		case rpc.IsType("CHAT_FORWARDS_RESTRICTED"):
			return Result{Kind: ResultSkip, Reason: "Forward restricted by source"}
		case rpc.IsOneOf("MESSAGE_ID_INVALID", "MSG_ID_INVALID"):
			return Result{Kind: ResultSkip, Reason: "Message not found"}
		case rpc.IsOneOf(forbiddenTypes...) || rpc.Code == 403:
			return Result{Kind: ResultSkip, Reason: "Forbidden: " + rpc.Type}
		}
		return Result{Kind: ResultSkip, Reason: rpc.Type}
	}
	if errors.Is(err, ErrMessageMissing) {
		return Result{Kind: ResultSkip, Reason: "Message not found"}
	}
	return Result{Kind: ResultSkip, Reason: err.Error()}
}

func rateLimited(d time.Duration) Result {
	return Result{
		Kind:   ResultRateLimited,
		Reason: fmt.Sprintf("Flood wait %ds", int(d/time.Second)),
		Wait:   d + FloodMargin,
	}
}
