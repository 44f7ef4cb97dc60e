package storage

import (
	"context"
	"time"

	"adsender_go/models"
)

// AppendSendEvent добавляет строку аудита. Строки никогда не изменяются.
func (db *DB) AppendSendEvent(ctx context.Context, ev models.SendEvent) error {
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO send_events (ts, account_id, session_id, sender_label, target_id, target_name,
			target_link, content_link, post_link, status, fail_reason, position, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		ev.Time,
		ev.AccountID,
		ev.SessionID,
		ev.SenderLabel,
		ev.TargetID,
		ev.TargetName,
		ev.TargetLink,
		ev.ContentLink,
		ev.PostLink,
		ev.Status,
		ev.FailReason,
		ev.Position,
		ev.Total,
	)
	return err
}

// ListSendEvents возвращает строки аудита с ID больше afterID, не старше since.
func (db *DB) ListSendEvents(ctx context.Context, afterID int64, since time.Time, limit int) ([]models.SendEvent, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT id, ts, account_id, session_id, sender_label, target_id, target_name,
			target_link, content_link, post_link, status, fail_reason, position, total
		FROM send_events
		WHERE id > $1 AND ts >= $2
		ORDER BY id
		LIMIT $3
	`, afterID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SendEvent
	for rows.Next() {
		var ev models.SendEvent
		if err := rows.Scan(
			&ev.ID, &ev.Time, &ev.AccountID, &ev.SessionID, &ev.SenderLabel, &ev.TargetID, &ev.TargetName,
			&ev.TargetLink, &ev.ContentLink, &ev.PostLink, &ev.Status, &ev.FailReason, &ev.Position, &ev.Total,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
