package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/getaido/aido/api"
	"github.com/getaido/aido/audit"
	"github.com/getaido/aido/config"
	"github.com/getaido/aido/flow"
	"github.com/getaido/aido/httplog"
	"github.com/getaido/aido/logger"
	"github.com/getaido/aido/persistence"
	"github.com/getaido/aido/reconcile"
	"github.com/getaido/aido/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	logger.Log.Info("Starting Aido Authentication Backend",
		zap.Int("port", cfg.Port),
		zap.String("db_type", cfg.DBType),
	)

	tp, err := telemetry.NewProvider(telemetry.Config{
		ServiceName:    "aido",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTLPEndpoint != "",
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	store, err := persistence.NewStorage(cfg.DBType, cfg.DSN, nil)
	if err != nil {
		logger.Log.Fatal("failed to initialize storage", zap.Error(err))
	}

	auditLog := audit.NewLogger(logger.Log, store, audit.Hooks{
		IDGenerator: uuid.NewString,
	})
	reconciler := reconcile.NewReconciler(store, auditLog,
		reconcile.WithTracer(tp.Tracer()),
	)

	oidcManager, err := flow.NewOIDCManager(context.Background(), reconciler, cfg.Providers)
	if err != nil {
		logger.Log.Error("failed to initialize OIDC manager", zap.Error(err))
	}

	availability := make(map[string]bool, len(cfg.Providers))
	for name, p := range cfg.Providers {
		availability[name] = p.Available()
	}

	e := echo.New()
	e.HideBanner = true

	// Middleware. The exchange recorder runs outermost so every response,
	// including error and redirect responses, is captured.
	e.Use(middleware.RequestID())
	e.Use(httplog.NewRecorder(httplog.NewFormatter(os.Stdout)).Middleware())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := api.NewHandler(oidcManager, store, availability)
	h.RegisterRoutes(e)

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
