package campaign

import (
	"context"
	"strings"

	"adsender_go/models"
	"adsender_go/pkg/metrics"

	"github.com/rs/zerolog/log"
)

// EventSink получает копию каждой строки аудита (например, очередь AMQP).
type EventSink interface {
	Publish(ctx context.Context, ev models.SendEvent) error
}

// Recorder фиксирует попытку: журнал, счётчики, метрики и внешняя очередь.
// Каждый шаг выполняется независимо, ошибки пишутся в лог и не прерывают рассылку.
type Recorder struct {
	store    AuditStore
	sink     EventSink
	template string
}

func NewRecorder(store AuditStore, sink EventSink, template string) *Recorder {
	return &Recorder{store: store, sink: sink, template: strings.TrimSpace(template)}
}

// IsTemplate сообщает, совпадает ли текст поста со стандартным шаблоном.
func (r *Recorder) IsTemplate(text string) bool {
	return r.template != "" && strings.TrimSpace(text) == r.template
}

// Record сохраняет попытку и возвращает общий счётчик отправок аккаунта (-1, если неизвестен).
func (r *Recorder) Record(ctx context.Context, ev models.SendEvent, target Target, text string) int64 {
	kind := "group"
	if target.IsTopic() {
		kind = "topic"
	}
	metrics.RecordAttempt(ev.Status, kind)

	if err := r.store.AppendSendEvent(ctx, ev); err != nil {
		metrics.RecordPersistenceFailure("send_event")
		log.Error().Err(err).Int64("account", ev.AccountID).Msg("[DB ERROR] не удалось записать попытку")
	}

	if ev.Success() {
		template := r.IsTemplate(text)
		if err := r.store.BumpCounters(ctx, ev.AccountID, template); err != nil {
			metrics.RecordPersistenceFailure("counters")
			log.Error().Err(err).Int64("account", ev.AccountID).Msg("[DB ERROR] не удалось увеличить счётчики")
		} else if template {
			metrics.RecordTemplateSent()
		}
	}

	if r.sink != nil {
		if err := r.sink.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Int64("account", ev.AccountID).Msg("[AUDIT] не удалось опубликовать событие")
		}
	}

	counters, err := r.store.GetCounters(ctx, ev.AccountID)
	if err != nil {
		log.Warn().Err(err).Int64("account", ev.AccountID).Msg("[DB ERROR] не удалось прочитать счётчики")
		return -1
	}
	return counters.TotalSent
}
