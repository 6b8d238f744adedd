package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"profile-api/internal/core/auth"
	"profile-api/internal/core/logger"
	"profile-api/internal/core/server"
	"profile-api/internal/transport/http/ez"
	"profile-api/internal/transport/http/handler"
	mdw "profile-api/internal/transport/http/middleware"
)

type AdminDeps struct {
	Log      *zap.Logger
	Admin    *handler.AdminHandler
	Verifier auth.Verifier
	Timeout  time.Duration
}

// NewAdminEngine serves /admin/v1. Every route there needs an admin token.
func NewAdminEngine(d AdminDeps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Timeout <= 0 {
		d.Timeout = time.Minute
	}
	r := server.NewRouter(server.Options{})

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(20, 40),
		mdw.Timeout(d.Timeout),
		mdw.Recovery(d.Log),
		logger.Middleware(d.Log),
	)
	r.NoRoute(notFound)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.Verifier, auth.RoleAdmin))
	d.Admin.Mount(ez.New(admin, d.Log))

	return r
}
