// Command server runs the Cartas Cósmicas HTTP API.
//
//	@title						Cartas Cósmicas API
//	@version					1.0
//	@description				Time-locked letters: owners write and pay for a letter; recipients open it by link once it is released.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/cartas-cosmicas/internal/config"
	"github.com/tbourn/cartas-cosmicas/internal/events"
	httpapi "github.com/tbourn/cartas-cosmicas/internal/http"
	"github.com/tbourn/cartas-cosmicas/internal/observability"
	"github.com/tbourn/cartas-cosmicas/internal/repo"
	"github.com/tbourn/cartas-cosmicas/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = ""

// purgeInterval is how often expired idempotency keys and rate windows are removed.
const purgeInterval = 10 * time.Minute

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.ConfigureLogger(os.Stderr, "error", false, "cartas-cosmicas")
		log.Fatal().Err(err).Msg("config load failed")
	}
	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")

	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := observability.InstrumentDB(db, cfg.OTEL.Enabled); err != nil {
		log.Fatal().Err(err).Msg("instrument database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	pub := events.NewPublisher(cfg.NATSURL)
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn().Err(err).Msg("close event publisher")
		}
	}()

	r := gin.New()
	if err := httpapi.RegisterRoutes(r, db, pub, cfg); err != nil {
		log.Fatal().Err(err).Msg("register routes")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeLoop(ctx, db, purgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("db", cfg.DB.Driver).
			Bool("events", cfg.NATSURL != "").
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// purgeLoop deletes expired idempotency keys and rate windows until ctx ends.
func purgeLoop(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n, err := repo.PurgeExpiredIdempotency(ctx, db, now); err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("purged idempotency keys")
			}
			if n, err := repo.PurgeRateWindows(ctx, db, now); err != nil {
				log.Warn().Err(err).Msg("purge rate windows")
			} else if n > 0 {
				log.Debug().Int64("removed", n).Msg("purged rate windows")
			}
		}
	}
}
