package module

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gotd/td/session"
	"github.com/rs/zerolog/log"
)

// DBSessionStorage хранит и загружает сессии Telegram из столбца sessions.data_json.
type DBSessionStorage struct {
	DB        *sql.DB
	SessionID int64
}

// LoadSession загружает текст сессии из БД.
func (s *DBSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, session.ErrNotFound
	}

	var data sql.NullString
	err := s.DB.QueryRowContext(ctx, "SELECT data_json FROM sessions WHERE id = $1", s.SessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (!data.Valid || data.String == "")) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Int64("session", s.SessionID).Msg("[DBSessionStorage] ошибка чтения сессии")
		return nil, err
	}
	return []byte(data.String), nil
}

// StoreSession сохраняет текст сессии в БД. Строка сессии создаётся при авторизации,
// здесь она только обновляется.
func (s *DBSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.DB == nil {
		return session.ErrNotFound
	}
	_, err := s.DB.ExecContext(
		ctx,
		"UPDATE sessions SET data_json = $1, updated_at = NOW() WHERE id = $2",
		string(data),
		s.SessionID,
	)
	if err != nil {
		log.Error().Err(err).Int64("session", s.SessionID).Msg("[DBSessionStorage] ошибка сохранения сессии")
		return err
	}
	return nil
}
