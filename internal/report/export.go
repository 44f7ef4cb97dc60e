package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"adsender_go/models"
)

// FileName: снимок журнала, перезаписывается при каждой выгрузке.
const FileName = "send_events.csv"

const pageSize = 500

// Source: чтение журнала попыток страницами по ID.
type Source interface {
	ListSendEvents(ctx context.Context, afterID int64, since time.Time, limit int) ([]models.SendEvent, error)
}

// Header: колонки CSV-снимка.
var Header = []string{
	"timestamp", "sender", "destination", "destination_id", "destination_link",
	"campaign_link", "post_link", "status", "reason",
}

// Exporter выгружает журнал попыток в CSV.
type Exporter struct {
	src    Source
	dir    string
	loc    *time.Location
	window time.Duration
	now    func() time.Time
}

// NewExporter создаёт выгрузку в dir. window > 0 ограничивает снимок последними событиями.
func NewExporter(src Source, dir string, loc *time.Location, window time.Duration) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{src: src, dir: dir, loc: loc, window: window, now: time.Now}
}

// Export пишет снимок во временный файл и атомарно заменяет им предыдущий.
func (e *Exporter) Export(ctx context.Context) (string, int, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("report dir: %w", err)
	}
	tmp, err := os.CreateTemp(e.dir, FileName+".*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	rows, err := e.Write(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(e.dir, FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, err
	}
	return path, rows, nil
}

// Write выводит CSV со всеми событиями окна и возвращает число строк данных.
func (e *Exporter) Write(ctx context.Context, w io.Writer) (int, error) {
	var since time.Time
	if e.window > 0 {
		since = e.now().Add(-e.window)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, err
	}
	rows := 0
	var after int64
	for {
		page, err := e.src.ListSendEvents(ctx, after, since, pageSize)
		if err != nil {
			return rows, fmt.Errorf("list send events: %w", err)
		}
		for _, ev := range page {
			if err := cw.Write(e.record(ev)); err != nil {
				return rows, err
			}
			rows++
			after = ev.ID
		}
		if len(page) < pageSize {
			break
		}
	}
	cw.Flush()
	return rows, cw.Error()
}

func (e *Exporter) record(ev models.SendEvent) []string {
	return []string{
		ev.Time.In(e.loc).Format("2006-01-02 15:04:05"),
		orPlaceholder(ev.SenderLabel),
		orPlaceholder(ev.TargetName),
		strconv.FormatInt(ev.TargetID, 10),
		orPlaceholder(ev.TargetLink),
		orPlaceholder(ev.ContentLink),
		orPlaceholder(ev.PostLink),
		ev.Status,
		ev.FailReason,
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}
