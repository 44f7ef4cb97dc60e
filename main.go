package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"adsender_go/internal/accounts"
	"adsender_go/internal/campaign"
	"adsender_go/internal/config"
	"adsender_go/internal/counters"
	"adsender_go/internal/crash"
	"adsender_go/internal/middleware"
	"adsender_go/internal/report"
	"adsender_go/internal/settings"
	"adsender_go/pkg/audit"
	"adsender_go/pkg/livelog"
	"adsender_go/pkg/metrics"
	"adsender_go/pkg/storage"
	dispatch "adsender_go/pkg/telegram/campaign"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// version подставляется при сборке через -ldflags.
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("[CONFIG] не удалось загрузить конфигурацию")
	}
	setupLogger(cfg)

	if err := crash.Init(cfg.SentryDSN, cfg.Environment, version); err != nil {
		log.Error().Err(err).Msg("[CRASH] Sentry не инициализирован")
	}
	defer crash.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализация подключения к БД
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("[DB ERROR] нет подключения к базе")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("[DB ERROR] миграция не выполнена")
	}

	cache, purger, closeCache := setupCache(ctx, cfg)
	defer closeCache()
	var sink dispatch.EventSink
	if cfg.AMQPURL != "" {
		publisher := audit.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue)
		defer publisher.Close()
		sink = publisher
	}

	engine := campaign.NewEngine(campaign.Deps{
		Store:       db,
		Runner:      campaign.SessionRunner(db.Conn, cfg.APIID, cfg.APIHash),
		Cache:       cache,
		CacheTTL:    cfg.DialogsCacheTTL,
		Recorder:    dispatch.NewRecorder(db, sink, cfg.AdTemplate),
		Notifier:    setupNotifier(cfg, db),
		Location:    cfg.Location,
		BotUsername: cfg.LogBotUsername,
	})

	var exporter *report.Exporter
	if cfg.ReportDir != "" {
		exporter = report.NewExporter(db, cfg.ReportDir, cfg.Location, 0)
	}
	scheduler, err := report.NewScheduler(cfg.Location, cfg.ReportSchedule, exporter, purger)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReportSchedule).Msg("[REPORT] неверное расписание")
	}
	scheduler.Start()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: setupRouter(db, engine, cfg.APIToken)}

	resumed := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer close(resumed)
		if _, err := engine.Resume(gctx); err != nil {
			log.Error().Err(err).Msg("[ENGINE] восстановление кампаний не выполнено")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		<-resumed
		log.Info().Msg("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		engine.Shutdown()
		scheduler.Stop(sctx)
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

// setupCache выбирает Redis, если он задан, иначе кэш в памяти.
// purger возвращается только для кэша в памяти: Redis удаляет записи сам.
func setupCache(ctx context.Context, cfg *config.Config) (dispatch.PeerCache, report.Purger, func()) {
	if cfg.RedisURL != "" {
		rc, err := dispatch.NewRedisCache(ctx, cfg.RedisURL)
		if err == nil {
			log.Info().Msg("[CACHE] кэш диалогов в Redis")
			return rc, nil, func() {
				if err := rc.Close(); err != nil {
					log.Warn().Err(err).Msg("[CACHE] ошибка закрытия Redis")
				}
			}
		}
		log.Warn().Err(err).Msg("[CACHE] Redis недоступен, используем память")
	}
	mc := dispatch.NewMemoryCache()
	return mc, mc, func() {}
}

func setupNotifier(cfg *config.Config, db *storage.DB) dispatch.Notifier {
	if cfg.LogBotToken == "" {
		log.Info().Msg("[LIVELOG] LOG_BOT_TOKEN не задан, живой журнал отключён")
		return dispatch.NopNotifier{}
	}
	n, err := livelog.New(cfg.LogBotToken, db, cfg.LiveLogRate)
	if err != nil {
		log.Error().Err(err).Msg("[LIVELOG] лог-бот не создан")
		return dispatch.NopNotifier{}
	}
	return n
}

// Настройка маршрутов
func setupRouter(db *storage.DB, engine *campaign.Engine, apiToken string) *gin.Engine {
	r := gin.Default()

	auth := middleware.AuthRequired(apiToken)
	accounts.SetupRoutes(r.Group("/accounts", auth), db)
	campaign.SetupRoutes(r.Group("/campaign", auth), engine)
	settings.SetupRoutes(r.Group("/settings", auth), db)
	counters.SetupRoutes(r.Group("/counters", auth), db)

	r.GET("/metrics", metrics.Handler)
	r.GET("/health", func(c *gin.Context) {
		if err := db.Conn.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "running": engine.Running()})
	})

	log.Info().Msg("[ROUTER] Routes initialized")
	return r
}
