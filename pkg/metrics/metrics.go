package metrics

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
)

// RecordAttempt учитывает одну попытку доставки по статусу и виду цели.
func RecordAttempt(status, target string) {
	name := fmt.Sprintf(`adsender_send_attempts_total{status=%q,target=%q}`, status, target)
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordRateLimited учитывает ответ FLOOD_WAIT / SLOWMODE_WAIT.
func RecordRateLimited(seconds int) {
	metrics.GetOrCreateCounter(`adsender_rate_limited_total`).Inc()
	metrics.GetOrCreateCounter(`adsender_rate_limited_seconds_total`).Add(seconds)
}

// RecordTemplateSent учитывает успешную отправку стандартного шаблона.
func RecordTemplateSent() {
	metrics.GetOrCreateCounter(`adsender_template_sent_total`).Inc()
}

// RecordCycle учитывает завершённый проход по всем ссылкам кампании.
func RecordCycle() {
	metrics.GetOrCreateCounter(`adsender_cycles_total`).Inc()
}

// RecordCampaign учитывает событие жизненного цикла кампании: start, stop, fatal.
func RecordCampaign(event string) {
	name := fmt.Sprintf(`adsender_campaign_events_total{event=%q}`, event)
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordPersistenceFailure учитывает проглоченную ошибку записи в БД.
func RecordPersistenceFailure(op string) {
	name := fmt.Sprintf(`adsender_persistence_failures_total{op=%q}`, op)
	metrics.GetOrCreateCounter(name).Inc()
}

// RegisterRunning регистрирует gauge с числом активных кампаний.
func RegisterRunning(count func() int) {
	metrics.GetOrCreateGauge(`adsender_running_campaigns`, func() float64 {
		return float64(count())
	})
}

// CounterValue возвращает текущее значение счётчика; нужен тестам и /status.
func CounterValue(name string) uint64 {
	return metrics.GetOrCreateCounter(name).Get()
}

// WritePrometheus выводит все метрики процесса в текстовом формате.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// Handler: обработчик GET /metrics.
func Handler(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	WritePrometheus(c.Writer)
}
