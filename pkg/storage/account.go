package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"adsender_go/models"
)

// GetAccount загружает оператора по его Telegram ID.
func (db *DB) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	var (
		acc   models.Account
		until sql.NullTime
		chat  sql.NullInt64
	)
	query := `
		SELECT id, username, is_premium, premium_until, is_banned, live_log_chat_id
		FROM accounts
		WHERE id = $1
	`
	err := db.Conn.QueryRowContext(ctx, query, id).Scan(
		&acc.ID,
		&acc.Username,
		&acc.IsPremium,
		&until,
		&acc.IsBanned,
		&chat,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if until.Valid {
		t := until.Time
		acc.PremiumUntil = &t
	}
	if chat.Valid {
		v := chat.Int64
		acc.LiveLogChatID = &v
	}
	return &acc, nil
}

// UpsertAccount создаёт или обновляет оператора.
func (db *DB) UpsertAccount(ctx context.Context, acc models.Account) error {
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO accounts (id, username, is_premium, premium_until, is_banned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			is_premium = EXCLUDED.is_premium,
			premium_until = EXCLUDED.premium_until,
			is_banned = EXCLUDED.is_banned
	`, acc.ID, acc.Username, acc.IsPremium, acc.PremiumUntil, acc.IsBanned)
	return err
}

// IsPremiumActive сообщает, действует ли подписка аккаунта сейчас.
// Неизвестный аккаунт считается бесплатным.
func (db *DB) IsPremiumActive(ctx context.Context, accountID int64) (bool, error) {
	acc, err := db.GetAccount(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return acc.PremiumActive(time.Now()), nil
}

// GetLiveLogChat возвращает чат живого журнала аккаунта, если он подключён.
func (db *DB) GetLiveLogChat(ctx context.Context, accountID int64) (int64, bool, error) {
	var chat sql.NullInt64
	err := db.Conn.QueryRowContext(ctx, "SELECT live_log_chat_id FROM accounts WHERE id = $1", accountID).Scan(&chat)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return chat.Int64, chat.Valid, nil
}

// SetLiveLogChat подключает (или отключает при nil) чат живого журнала.
func (db *DB) SetLiveLogChat(ctx context.Context, accountID int64, chatID *int64) error {
	res, err := db.Conn.ExecContext(ctx, "UPDATE accounts SET live_log_chat_id = $1 WHERE id = $2", chatID, accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
