package storage

import (
	"context"
	"database/sql"
	"errors"

	"adsender_go/models"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// GetSettings читает настройки аккаунта. Отсутствующая запись даёт значения по умолчанию,
// некорректные поля заменяются значениями по умолчанию с предупреждением в логе.
func (db *DB) GetSettings(ctx context.Context, accountID int64) (models.AccountSettings, error) {
	var (
		s        = models.DefaultSettings(accountID)
		attr     string
		topics   pq.StringArray
		delayMin sql.NullInt64
		delayMax sql.NullInt64
	)
	query := `
		SELECT auto_enabled, auto_start_minute, auto_end_minute, attribution, topic_links, delay_min, delay_max
		FROM account_settings
		WHERE account_id = $1
	`
	err := db.Conn.QueryRowContext(ctx, query, accountID).Scan(
		&s.AutoMode.Enabled,
		&s.AutoMode.StartMinute,
		&s.AutoMode.EndMinute,
		&attr,
		&topics,
		&delayMin,
		&delayMax,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	s.Attribution = models.Attribution(attr)
	s.TopicLinks = []string(topics)
	if delayMin.Valid && delayMax.Valid {
		s.TargetDelay = &models.DelayRange{Min: int(delayMin.Int64), Max: int(delayMax.Int64)}
	}

	clean, dropped := s.Sanitize()
	if len(dropped) > 0 {
		log.Warn().Int64("account", accountID).Strs("fields", dropped).Msg("[DB WARN] некорректные настройки заменены значениями по умолчанию")
	}
	return clean, nil
}

// SaveAutoMode сохраняет окно авто-режима.
func (db *DB) SaveAutoMode(ctx context.Context, accountID int64, w models.AutoModeWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO account_settings (account_id, auto_enabled, auto_start_minute, auto_end_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE SET
			auto_enabled = EXCLUDED.auto_enabled,
			auto_start_minute = EXCLUDED.auto_start_minute,
			auto_end_minute = EXCLUDED.auto_end_minute,
			updated_at = NOW()
	`, accountID, w.Enabled, w.StartMinute, w.EndMinute)
	return err
}

// SaveAttribution сохраняет режим пересылки.
func (db *DB) SaveAttribution(ctx context.Context, accountID int64, attr models.Attribution) error {
	parsed, err := models.ParseAttribution(string(attr))
	if err != nil {
		return err
	}
	_, err = db.Conn.ExecContext(ctx, `
		INSERT INTO account_settings (account_id, attribution)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET attribution = EXCLUDED.attribution, updated_at = NOW()
	`, accountID, string(parsed))
	return err
}

// SaveTopicLinks сохраняет ссылки на темы форумов.
func (db *DB) SaveTopicLinks(ctx context.Context, accountID int64, links []string) error {
	if links == nil {
		links = []string{}
	}
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO account_settings (account_id, topic_links)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET topic_links = EXCLUDED.topic_links, updated_at = NOW()
	`, accountID, pq.Array(links))
	return err
}

// SaveTargetDelay сохраняет диапазон паузы между целями; nil сбрасывает его.
func (db *DB) SaveTargetDelay(ctx context.Context, accountID int64, r *models.DelayRange) error {
	var lo, hi sql.NullInt64
	if r != nil {
		if err := r.Validate(); err != nil {
			return err
		}
		lo = sql.NullInt64{Int64: int64(r.Min), Valid: true}
		hi = sql.NullInt64{Int64: int64(r.Max), Valid: true}
	}
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO account_settings (account_id, delay_min, delay_max)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET delay_min = EXCLUDED.delay_min, delay_max = EXCLUDED.delay_max, updated_at = NOW()
	`, accountID, lo, hi)
	return err
}
