package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/handler"
	"account_service/internal/mail"
	"account_service/internal/service"
	"account_service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	//PARSE ARGS
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	cfg := config.MustLoadConfig(configPath)

	//INIT LOGGER
	lgr := setupLogger(cfg.Env)
	lgr.Info("starting account service", slog.String("env", cfg.Env), slog.String("db_driver", cfg.DB.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lgr); err != nil {
		lgr.Error("account service stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lgr *slog.Logger) error {
	//INIT DB
	st, err := setupStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tokens, err := auth.NewTokenService(cfg.Tokens)
	if err != nil {
		return err
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	var mailer mail.Sender
	if cfg.Mail.Host == "" {
		lgr.Warn("no smtp host configured, mail links will only be logged")
		mailer = mail.NewLogSender(lgr)
	} else {
		smtp, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			return err
		}
		mailer = smtp
	}

	srvc := service.NewAccountService(st, tokens, hasher, mailer, cfg.ClientURL)
	gate := auth.NewGate(tokens, st)

	//INIT SERVER
	if cfg.Env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(srvc, gate, lgr, cfg.Tokens.RefreshTTL, cfg.Env == envProd)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lgr.Info("http server listening", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lgr.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func setupStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.DB.Driver {
	case config.DriverMongo:
		return storage.NewMongoStorage(connectCtx, cfg.DB.MongoURI, cfg.DB.MongoDatabase)
	case config.DriverPostgres:
		if err := storage.RunMigrations(connectCtx, cfg.DB.DbURL); err != nil {
			return nil, err
		}
		return storage.NewPostgresStorage(connectCtx, cfg.DB.DbURL)
	case config.DriverMemory:
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
