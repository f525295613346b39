package app

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bazasystems/madaris/internal/auth"
	"github.com/bazasystems/madaris/internal/config"
	"github.com/bazasystems/madaris/internal/db"
	internalhttp "github.com/bazasystems/madaris/internal/http"
	"github.com/bazasystems/madaris/internal/mail"
	"github.com/bazasystems/madaris/internal/settings"
	"github.com/bazasystems/madaris/internal/syncqueue"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Run boots the server: configuration, logging, database, seed data,
// settings snapshot, services, routes. It blocks until the process receives
// an interrupt and then shuts the listener down gracefully.
func Run(configPath string) error {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return errLoad
	}
	config.SetupLogging(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return fmt.Errorf("migrate: %w", errMigrate)
	}
	if errSeed := db.SeedDirector(conn, "director"); errSeed != nil {
		return errSeed
	}

	ctx := context.Background()
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings: %w", errRefresh)
	}
	// Config-file school name seeds the DB setting on first boot only;
	// after that the DB row is authoritative.
	if settings.StringValue(settings.SchoolNameKey, "") == "" && cfg.School.Name != "" {
		if errSet := settings.Set(ctx, conn, settings.SchoolNameKey, cfg.School.Name); errSet != nil {
			return fmt.Errorf("seed settings: %w", errSet)
		}
	}

	var mailer mail.Sender
	if smtp := mail.NewSMTPSender(cfg.SMTP); smtp != nil {
		mailer = smtp
	} else {
		log.Warn("smtp not configured, outbound mail disabled")
	}

	authSvc := auth.NewService(conn, mailer, cfg.School.RecoveryEmail, cfg.School.AppDomain)
	syncSvc := syncqueue.NewService(conn)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	internalhttp.Register(engine, conn, authSvc, syncSvc, mailer)

	server := &nethttp.Server{
		Addr:              cfg.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Listen).Info("server starting")
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case errServe := <-errCh:
		if errServe != nil && errServe != nethttp.ErrServerClosed {
			return errServe
		}
		return nil
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}
