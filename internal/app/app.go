// Package app wires the collaborators shared by cmd/api and cmd/admin.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"profile-api/internal/core/auth"
	"profile-api/internal/core/cache"
	"profile-api/internal/core/config"
	"profile-api/internal/core/database"
	"profile-api/internal/core/logger"
	"profile-api/internal/core/storage"
	"profile-api/internal/domain"
	"profile-api/internal/repo"
	"profile-api/internal/service"
)

type Deps struct {
	DB    *gorm.DB
	Store *storage.S3
	Cache *cache.Cache // nil when redis.addr is empty
	JWT   *auth.JWTer  // nil when auth is disabled
	Users *service.UserService
}

// NewLogger builds the process logger from cfg and routes the stdlib log
// package and gin's writers through it.
func NewLogger(cfg *config.Config) (*zap.Logger, func()) {
	l, flush := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		JSON:        cfg.Log.JSON,
		AddCaller:   true,
		Development: cfg.App.Env == "dev",
		Rotate: logger.FileRotate{
			Enable:     cfg.Log.File.Enable,
			Filename:   cfg.Log.File.Filename,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	undo := logger.RedirectStdLog(l, zapcore.InfoLevel)

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logger.ToWriter(l, zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(l, zapcore.ErrorLevel)

	return l, func() {
		undo()
		flush()
	}
}

// Build opens the database, bucket, cache and token verifier and assembles
// the user service over them. The returned closer releases what was opened.
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Deps, io.Closer, error) {
	var cl closers

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		cl = append(cl, sqlDB)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&domain.User{}); err != nil {
			_ = cl.Close()
			return nil, nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	store, err := storage.New(ctx, storage.Opts{
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		Endpoint:   cfg.Storage.Endpoint,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		PathStyle:  cfg.Storage.PathStyle,
		PresignTTL: cfg.Storage.PresignTTL(),
	})
	if err != nil {
		_ = cl.Close()
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	l.Info("storage ready", zap.String("bucket", store.Bucket()), zap.String("endpoint", cfg.Storage.Endpoint))

	d := &Deps{DB: db, Store: store}
	opts := []service.Option{service.WithLogger(l.Named("users"))}

	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Ping(pingCtx)
		cancel()
		if err != nil {
			// GetOrLoad falls back to presigning when redis is down
			l.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cl = append(cl, c)
		d.Cache = c
		opts = append(opts, service.WithURLCache(c, time.Duration(cfg.Redis.URLTTLSec)*time.Second))
	}

	if cfg.Auth.Enabled {
		d.JWT = &auth.JWTer{
			Secret: []byte(cfg.Auth.Secret),
			Issuer: cfg.Auth.Issuer,
			TTL:    cfg.Auth.TokenTTL(),
		}
	}

	d.Users = service.NewUserService(repo.NewUserRepo(db), store, opts...)
	return d, cl, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var first error
	for i := len(cs) - 1; i >= 0; i-- {
		if err := cs[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
