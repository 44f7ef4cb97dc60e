package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"adsender_go/models"
	"adsender_go/pkg/metrics"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// DefaultQueue: очередь событий аудита по умолчанию.
const DefaultQueue = "adsender.send_events"

// channel: часть amqp.Channel, которой пользуется издатель.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc открывает соединение и канал. closer закрывает соединение.
type dialFunc func(url string) (ch channel, closer func() error, err error)

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}

// Publisher отправляет копию каждой попытки в очередь RabbitMQ.
// После ошибки канал пересоздаётся при следующей публикации.
type Publisher struct {
	url   string
	queue string
	dial  dialFunc

	mu     sync.Mutex
	ch     channel
	closer func() error
}

// NewPublisher подключается сразу. Ошибка первого подключения не фатальна.
func NewPublisher(url, queue string) *Publisher {
	return newPublisher(url, queue, dialAMQP)
}

func newPublisher(url, queue string, dial dialFunc) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	p := &Publisher{url: url, queue: queue, dial: dial}
	p.mu.Lock()
	if err := p.connectLocked(); err != nil {
		log.Warn().Err(err).Str("queue", queue).Msg("[AUDIT] первое подключение не удалось, повторим при публикации")
	}
	p.mu.Unlock()
	return p
}

func (p *Publisher) connectLocked() error {
	p.resetLocked()
	ch, closer, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		closer()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.ch, p.closer = ch, closer
	log.Info().Str("queue", p.queue).Msg("[AUDIT] подключено к очереди")
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.closer != nil {
		p.closer()
		p.closer = nil
	}
}

// Publish публикует событие в формате JSON.
func (p *Publisher) Publish(ctx context.Context, ev models.SendEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			metrics.RecordPersistenceFailure("audit_publish")
			return err
		}
	}
	err = p.ch.Publish("", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         ev.Status,
		Body:         body,
	})
	if err != nil {
		p.resetLocked()
		metrics.RecordPersistenceFailure("audit_publish")
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	if p == nil {
		return errors.New("nil publisher")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
