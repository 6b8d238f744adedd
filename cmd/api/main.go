package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"profile-api/internal/app"
	"profile-api/internal/core/config"
	"profile-api/internal/core/server"
	"profile-api/internal/transport/http/handler"
	"profile-api/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad(os.Getenv("CONFIG_PATH"))
	log, cleanup := app.NewLogger(cfg)
	defer cleanup()

	ctx := context.Background()
	deps, closer, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer closer.Close()

	writeTimeout := time.Duration(cfg.App.HTTP.WriteTimeoutSec) * time.Second
	ad := router.APIDeps{
		Log:     log,
		Users:   handler.NewUserHandler(deps.Users),
		Origins: cfg.CORS.Origins,
		Timeout: server.HandlerTimeout(writeTimeout),
	}
	if deps.JWT != nil {
		ad.Verifier = deps.JWT
		ad.Login = handler.NewAuthHandler(deps.Users, deps.JWT, cfg.Auth.AdminIDs)
	} else {
		log.Warn("auth disabled: mutating routes accept anonymous callers")
	}
	r := router.NewAPIEngine(ad)

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		writeTimeout,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("profile api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.Bool("auth", cfg.Auth.Enabled),
		zap.Bool("url_cache", deps.Cache != nil),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("profile api start FAILED", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("profile api stopped gracefully")
}
