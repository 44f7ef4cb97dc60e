package storage

import (
	"context"
	"database/sql"
	"errors"

	"adsender_go/models"
)

// BumpCounters увеличивает счётчики аккаунта одним запросом.
func (db *DB) BumpCounters(ctx context.Context, accountID int64, template bool) error {
	tpl := 0
	if template {
		tpl = 1
	}
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO user_counters (account_id, total_sent, template_sent)
		VALUES ($1, 1, $2)
		ON CONFLICT (account_id) DO UPDATE SET
			total_sent = user_counters.total_sent + 1,
			template_sent = user_counters.template_sent + EXCLUDED.template_sent
	`, accountID, tpl)
	return err
}

// GetCounters возвращает счётчики аккаунта; без записи возвращает нули.
func (db *DB) GetCounters(ctx context.Context, accountID int64) (models.Counters, error) {
	c := models.Counters{AccountID: accountID}
	err := db.Conn.QueryRowContext(ctx,
		"SELECT total_sent, template_sent FROM user_counters WHERE account_id = $1", accountID,
	).Scan(&c.TotalSent, &c.TemplateSent)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	return c, err
}

// GetGlobalCounters суммирует счётчики всех аккаунтов.
func (db *DB) GetGlobalCounters(ctx context.Context) (models.Counters, error) {
	var c models.Counters
	err := db.Conn.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(total_sent), 0), COALESCE(SUM(template_sent), 0) FROM user_counters",
	).Scan(&c.TotalSent, &c.TemplateSent)
	return c, err
}

// ResetCounters обнуляет счётчики аккаунта: оба или только счётчик шаблона.
func (db *DB) ResetCounters(ctx context.Context, accountID int64, templateOnly bool) error {
	query := "UPDATE user_counters SET total_sent = 0, template_sent = 0 WHERE account_id = $1"
	if templateOnly {
		query = "UPDATE user_counters SET template_sent = 0 WHERE account_id = $1"
	}
	_, err := db.Conn.ExecContext(ctx, query, accountID)
	return err
}
