package storage

import (
	"context"
	"database/sql"
	"errors"

	"adsender_go/models"

	"github.com/rs/zerolog/log"
)

const sessionColumns = `
	s.id, s.account_id, s.phone, s.api_id, s.api_hash, s.proxy_id, s.is_active, s.created_at,
	p.id, p.ip, p.port, p.login, p.password
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var (
		s       models.Session
		proxyID sql.NullInt64
		pID     sql.NullInt64
		pIP     sql.NullString
		pPort   sql.NullInt64
		pLogin  sql.NullString
		pPass   sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.AccountID, &s.Phone, &s.ApiID, &s.ApiHash, &proxyID, &s.IsActive, &s.CreatedAt,
		&pID, &pIP, &pPort, &pLogin, &pPass,
	)
	if err != nil {
		return s, err
	}
	if proxyID.Valid && pID.Valid {
		id := int(proxyID.Int64)
		s.ProxyID = &id
		s.Proxy = &models.Proxy{
			ID:       int(pID.Int64),
			IP:       pIP.String,
			Port:     int(pPort.Int64),
			Login:    pLogin.String,
			Password: pPass.String,
		}
	}
	return s, nil
}

// GetSession загружает сессию вместе с её прокси.
func (db *DB) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions s
		LEFT JOIN proxy p ON s.proxy_id = p.id
		WHERE s.id = $1`
	s, err := scanSession(db.Conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions возвращает активные сессии аккаунта в порядке добавления.
// Порядковый номер сессии в этом списке выводится в живом журнале как #n.
func (db *DB) ListSessions(ctx context.Context, accountID int64) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions s
		LEFT JOIN proxy p ON s.proxy_id = p.id
		WHERE s.account_id = $1 AND s.is_active = true
		ORDER BY s.id`
	rows, err := db.Conn.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			log.Warn().Err(err).Int64("account", accountID).Msg("[DB WARN] не удалось прочитать сессию")
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
