package module

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"

	"adsender_go/models"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"
)

// ErrUnauthorized: в БД нет авторизованной сессии; нужна повторная привязка аккаунта.
var ErrUnauthorized = errors.New("session is not authorized")

// Создаем клиент Telegram с параметрами сессии и хранилищем сессии в БД.
func Modf_SessionInitialization(s models.Session, r *rand.Rand, db *sql.DB) (*telegram.Client, error) {
	var storage session.Storage = &session.StorageMemory{}
	if db != nil && s.ID > 0 {
		storage = &DBSessionStorage{DB: db, SessionID: s.ID}
	}

	opts := telegram.Options{SessionStorage: storage}
	if r != nil {
		opts.Random = r
	}
	if p := s.Proxy; p != nil {
		addr := p.Addr()
		var auth *proxy.Auth
		if p.HasAuth() {
			auth = &proxy.Auth{User: p.Login, Password: p.Password}
		}
		d, err := proxy.SOCKS5("tcp", addr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("proxy dialer: %w", err)
		}
		dc, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy dialer missing context")
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dc.DialContext})
		log.Info().Str("phone", s.Phone).Str("proxy", addr).Msg("[PROXY] подключение через прокси")
	}
	return telegram.NewClient(s.ApiID, s.ApiHash, opts), nil
}

// RunSession подключает сессию и выполняет f, пока открыто соединение.
// Соединение закрывается при возврате из f или отмене ctx.
func RunSession(ctx context.Context, db *sql.DB, s models.Session, f func(ctx context.Context, api *tg.Client) error) error {
	client, err := Modf_SessionInitialization(s, nil, db)
	if err != nil {
		return err
	}
	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			return fmt.Errorf("%s: %w", s.Phone, ErrUnauthorized)
		}
		return f(ctx, tg.NewClient(client))
	})
}
