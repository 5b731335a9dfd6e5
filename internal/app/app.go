// Package app wires configuration, storage and the HTTP surface into runnable commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/audit"
	"github.com/router-for-me/CoinLedger/internal/clock"
	"github.com/router-for-me/CoinLedger/internal/config"
	"github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/http/api/admin"
	"github.com/router-for-me/CoinLedger/internal/http/api/front"
	"github.com/router-for-me/CoinLedger/internal/ledger"
	"github.com/router-for-me/CoinLedger/internal/logging"
	"github.com/router-for-me/CoinLedger/internal/settings"
	"github.com/router-for-me/CoinLedger/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Runtime bundles the opened database and the orchestrator built on it.
type Runtime struct {
	Config config.AppConfig
	DB     *gorm.DB
	Ledger *ledger.Orchestrator
}

// Load reads the configuration and applies its logging settings.
func Load(configPath string) (config.AppConfig, error) {
	path := config.ResolveConfigPath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if errLog := logging.Setup(cfg.Logging); errLog != nil {
		return cfg, fmt.Errorf("logging: %w", errLog)
	}
	log.Debugf("config loaded from %s", path)
	return cfg, nil
}

// Open connects to the database, migrates it and builds the orchestrator.
func Open(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	conn, err := db.Open(util.ResolveWritable(cfg.Database.DSN))
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return nil, fmt.Errorf("load settings: %w", errRefresh)
	}
	return &Runtime{
		Config: cfg,
		DB:     conn,
		Ledger: ledger.New(conn, clock.System{}, ledger.OptionsFromConfig(cfg)),
	}, nil
}

// Close releases the database pool.
func (r *Runtime) Close() {
	if r == nil || r.DB == nil {
		return
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	rt, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	log.Info("database migrated")
	return nil
}

// NewRouter builds the gin engine serving the front and admin APIs.
func NewRouter(rt *Runtime) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.GinMiddleware())
	front.RegisterFrontRoutes(engine, rt.Ledger, rt.Config.JWT)
	admin.RegisterAdminRoutes(engine, rt.DB, rt.Ledger, rt.Config.JWT)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "route not found"})
	})
	return engine
}

// RunServer serves the API until ctx is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return errors.New("jwt.secret is required to serve")
	}
	rt, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewRouter(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("coin ledger listening on %s", cfg.Server.Addr)
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// VerifyAudit replays the audit chain and returns its report.
func VerifyAudit(ctx context.Context, cfg config.AppConfig) (*audit.Report, error) {
	rt, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	return rt.Ledger.VerifyAuditIntegrity(ctx)
}

// PurgeIdempotency deletes expired idempotency keys and reports how many were removed.
func PurgeIdempotency(ctx context.Context, cfg config.AppConfig) (int64, error) {
	rt, err := Open(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer rt.Close()
	return rt.Ledger.PurgeExpiredIdempotencyKeys(ctx, time.Time{})
}
