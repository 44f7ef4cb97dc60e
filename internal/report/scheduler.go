package report

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSchedule: выгрузка каждые 20 минут.
const DefaultSchedule = "*/20 * * * *"

// Purger: кэш, из которого периодически удаляются просроченные записи.
type Purger interface {
	Purge() int
}

// Scheduler запускает выгрузку журнала и очистку кэша по расписанию.
type Scheduler struct {
	c *cron.Cron
}

// NewScheduler регистрирует задачи. exporter и purger могут быть nil.
func NewScheduler(loc *time.Location, schedule string, exporter *Exporter, purger Purger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))

	if exporter != nil {
		if _, err := c.AddFunc(schedule, func() { runExport(exporter) }); err != nil {
			return nil, err
		}
	}
	if purger != nil {
		if _, err := c.AddFunc("@hourly", func() {
			if n := purger.Purge(); n > 0 {
				log.Debug().Int("removed", n).Msg("[CACHE] просроченные диалоги удалены")
			}
		}); err != nil {
			return nil, err
		}
	}
	return &Scheduler{c: c}, nil
}

func runExport(e *Exporter) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	path, rows, err := e.Export(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[REPORT] выгрузка журнала не удалась")
		return
	}
	log.Info().Str("path", path).Int("rows", rows).Msg("[REPORT] журнал выгружен")
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop останавливает планировщик и ждёт завершения текущих задач или отмены ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries: число зарегистрированных задач.
func (s *Scheduler) Entries() int { return len(s.c.Entries()) }
