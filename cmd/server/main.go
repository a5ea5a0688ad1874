package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/hiring-negotiation/internal/config"
	"github.com/iliyamo/hiring-negotiation/internal/database"
	"github.com/iliyamo/hiring-negotiation/internal/handler"
	"github.com/iliyamo/hiring-negotiation/internal/logger"
	"github.com/iliyamo/hiring-negotiation/internal/middleware"
	"github.com/iliyamo/hiring-negotiation/internal/queue"
	"github.com/iliyamo/hiring-negotiation/internal/realtime"
	"github.com/iliyamo/hiring-negotiation/internal/repository"
	"github.com/iliyamo/hiring-negotiation/internal/router"
	"github.com/iliyamo/hiring-negotiation/internal/service"
	"github.com/iliyamo/hiring-negotiation/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db := openStore(ctx, cfg, log)
	if db != nil {
		defer db.Close()
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable; rate limiting and relay disabled")
		rdb = nil
	} else {
		defer rdb.Close()
	}

	reg := realtime.NewRegistry()
	disp := realtime.NewDispatcher(reg, log)
	startRelay(ctx, cfg, rdb, disp, log)

	var events service.EventPublisher
	if cfg.EventsEnabled {
		events = service.AMQPPublisher{URL: cfg.AMQPURL}
		consumer := &queue.Consumer{URL: cfg.AMQPURL, LogPath: cfg.HiringLogPath, Log: log.With().Str("component", "hiring_consumer").Logger()}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("hiring consumer stopped")
			}
		}()
	}

	svc := service.NewNegotiationService(store, disp, log, service.Options{
		RequestTTL: cfg.RequestTTL,
		Events:     events,
	})
	sweeper := &service.Sweeper{Service: svc, Interval: cfg.SweepInterval, Log: log}
	go sweeper.Run(ctx)

	pool := worker.New(cfg.WorkerCount, cfg.WorkerQueue, log)

	httpRL := config.LoadRateLimitConfig("RATE_LIMIT")
	httpLimit := middleware.RateLimit(httpRL, middleware.NewBucket(httpRL, rdb))
	wsBucket := middleware.NewBucket(config.LoadRateLimitConfig("WS_RATE_LIMIT"), rdb)

	gw := handler.NewGateway(reg, svc, handler.JWTAuthenticator{Secret: cfg.JWTSecret}, pool, wsBucket,
		handler.GatewayOptions{Conn: realtime.ConnOptions{Heartbeat: cfg.Heartbeat, SendQueue: cfg.SendQueue}}, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, reg)
	router.RegisterRealtime(e, gw, httpLimit)
	router.RegisterRequests(e, &handler.RequestsHandler{Service: svc, Log: log}, cfg.JWTSecret, httpLimit)
	if cfg.Dev() {
		router.RegisterDev(e, &handler.AuthHandler{Secret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL})
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("storage", cfg.StorageDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	log.Info().Int("connections", reg.CloseAll()).Msg("closed websocket connections")
	pool.Close()
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (service.Store, *sql.DB) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	return repository.NewHiringRepo(db), db
}

func startRelay(ctx context.Context, cfg config.Config, rdb *redis.Client, disp *realtime.Dispatcher, log zerolog.Logger) {
	if !cfg.RedisRelay {
		return
	}
	if rdb == nil {
		log.Warn().Msg("redis relay requested but redis is unavailable; broadcasts stay local")
		return
	}
	relay := realtime.NewRedisRelay(rdb, cfg.RedisRelayChannel, disp, log)
	if err := relay.Start(ctx); err != nil {
		log.Error().Err(err).Msg("redis relay start")
		return
	}
	disp.SetForwarder(relay)
	log.Info().Str("channel", cfg.RedisRelayChannel).Msg("redis relay enabled")
}
