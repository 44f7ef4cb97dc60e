package campaign

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"adsender_go/models"
)

// Notifier доставляет строки живого журнала в чат аккаунта.
// Реализация не возвращает ошибок: журнал не должен влиять на рассылку.
type Notifier interface {
	Notify(ctx context.Context, accountID int64, text string)
}

// NopNotifier ничего не отправляет.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, int64, string) {}

// SenderInfo описывает сессию-отправителя в строках журнала.
type SenderInfo struct {
	Index       int
	Phone       string
	BotUsername string
}

func (s SenderInfo) label() string {
	if s.Phone == "" {
		return models.Placeholder
	}
	return s.Phone
}

// FormatStartLine: сообщение о старте кампании.
func FormatStartLine(now time.Time, sourceLink string, targets int, interval time.Duration) string {
	secs := int(interval / time.Second)
	var b strings.Builder
	b.WriteString("started the campaign\n")
	fmt.Fprintf(&b, "🕒 %s\n", now.Format("02/01/2006 15:04:05 MST"))
	fmt.Fprintf(&b, "🔗 Source: <a href=\"%s\">Open Post</a>\n", html.EscapeString(sourceLink))
	fmt.Fprintf(&b, "👥 Total Group: %d\n\n", targets)
	fmt.Fprintf(&b, "⏱ Interval: %ds (%dm)", secs, secs/60)
	return b.String()
}

// FormatAttemptLine: строка об одной попытке доставки.
// totalSent < 0 означает, что счётчик прочитать не удалось.
func FormatAttemptLine(ev models.SendEvent, info SenderInfo, totalSent int64) string {
	bot := models.Placeholder
	if info.BotUsername != "" {
		bot = "@" + strings.TrimPrefix(info.BotUsername, "@")
	}
	pos := models.Placeholder
	if ev.Position > 0 && ev.Total > 0 {
		pos = fmt.Sprintf("%d/%d", ev.Position, ev.Total)
	}
	idx := models.Placeholder
	if info.Index > 0 {
		idx = "#" + strconv.Itoa(info.Index)
	}
	total := models.Placeholder
	if totalSent >= 0 {
		total = strconv.FormatInt(totalSent, 10)
	}
	fields := []string{
		"message sent",
		html.EscapeString(ev.TargetName) + " " + ev.Time.Format("02 January 2006"),
		ev.Time.Format("03:04 PM"),
		html.EscapeString(orPlaceholder(ev.ContentLink)),
		html.EscapeString(orPlaceholder(ev.TargetLink)),
		html.EscapeString(orPlaceholder(ev.PostLink)),
		bot,
		pos,
		idx,
		info.label(),
		ev.Status,
		html.EscapeString(orPlaceholder(ev.FailReason)),
		total,
	}
	return strings.Join(fields, " | ")
}

// FormatDowngradeNotice: уведомление о переходе на скрытую пересылку без подписки.
func FormatDowngradeNotice() string {
	return "Premium is not active: forwarding without source tag and without topics for this run."
}

// FormatSkipNotice: уведомление о пропущенной ссылке.
func FormatSkipNotice(link, reason string) string {
	return fmt.Sprintf("skipped %s | %s", html.EscapeString(orPlaceholder(link)), html.EscapeString(reason))
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.Placeholder
	}
	return s
}
