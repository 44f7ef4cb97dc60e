package livelog

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// ChatLookup возвращает чат живого журнала аккаунта или false, если чат не привязан.
type ChatLookup interface {
	GetLiveLogChat(ctx context.Context, accountID int64) (int64, bool, error)
}

// SendFunc отправляет HTML-строку в чат.
type SendFunc func(chatID int64, text string) error

// Notifier пишет строки рассылки в чат аккаунта через лог-бота.
// Любая ошибка только логируется: журнал не должен мешать рассылке.
type Notifier struct {
	lookup  ChatLookup
	send    SendFunc
	limiter *rate.Limiter
}

// DefaultRate: сообщений в секунду на весь процесс.
const DefaultRate = 20

// New создаёт бота без поллинга: он только отправляет сообщения.
func New(token string, lookup ChatLookup, ratePerSec int) (*Notifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("log bot token is empty")
	}
	bot, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, err
	}
	send := func(chatID int64, text string) error {
		_, err := bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		})
		return err
	}
	return NewWithSender(lookup, send, ratePerSec), nil
}

func NewWithSender(lookup ChatLookup, send SendFunc, ratePerSec int) *Notifier {
	if ratePerSec <= 0 {
		ratePerSec = DefaultRate
	}
	return &Notifier{
		lookup:  lookup,
		send:    send,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func (n *Notifier) Notify(ctx context.Context, accountID int64, text string) {
	if n == nil || n.send == nil || text == "" {
		return
	}
	chatID, ok, err := n.lookup.GetLiveLogChat(ctx, accountID)
	if err != nil {
		log.Debug().Err(err).Int64("account", accountID).Msg("[LIVELOG] чат журнала недоступен")
		return
	}
	if !ok {
		return
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return
	}
	if err := n.send(chatID, text); err != nil {
		log.Debug().Err(err).Int64("account", accountID).Int64("chat", chatID).Msg("[LIVELOG] сообщение не отправлено")
	}
}
