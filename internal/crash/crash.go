package crash

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

var enabled atomic.Bool

// Init включает отправку ошибок в Sentry. Пустой DSN оставляет отправку выключенной.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		log.Info().Msg("[CRASH] SENTRY_DSN не задан, отчёты об ошибках отключены")
		enabled.Store(false)
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags["service"] = "adsender"
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled.Store(true)
	log.Info().Str("environment", environment).Msg("[CRASH] отчёты об ошибках включены")
	return nil
}

// Enabled сообщает, включена ли отправка.
func Enabled() bool { return enabled.Load() }

// CaptureError отправляет ошибку с тегами.
func CaptureError(err error, tags map[string]string) {
	if !Enabled() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// CapturePanic отправляет восстановленную панику. Повторно не паникует.
func CapturePanic(rec any, tags map[string]string) {
	log.Error().Interface("panic", rec).Fields(toFields(tags)).Msg("[CRASH] паника перехвачена")
	if !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		scope.SetTags(tags)
		scope.SetContext("panic", map[string]interface{}{"recovered_value": fmt.Sprintf("%v", rec)})
		sentry.CaptureException(fmt.Errorf("panic recovered: %v", rec))
	})
}

// Flush дожидается отправки накопленных событий перед завершением процесса.
func Flush(timeout time.Duration) bool {
	if !Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}

func toFields(tags map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
