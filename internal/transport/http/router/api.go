package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"profile-api/internal/core/auth"
	"profile-api/internal/core/server"
	"profile-api/internal/transport/http/ez"
	"profile-api/internal/transport/http/handler"
	mdw "profile-api/internal/transport/http/middleware"
	resp "profile-api/internal/transport/http/response"
)

type APIDeps struct {
	Log   *zap.Logger
	Users *handler.UserHandler
	// Login and Verifier are nil when auth is disabled; mutations are then open.
	Login    *handler.AuthHandler
	Verifier auth.Verifier
	Origins  []string
	Timeout  time.Duration
}

func NewAPIEngine(d APIDeps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	r := server.NewRouter(server.Options{Origins: d.Origins})

	r.Use(
		mdw.RequestID(),
		mdw.RateLimitPerIP(50, 100),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(d.Timeout),
		mdw.Recovery(d.Log),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
	)
	r.NoRoute(notFound)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(mdw.MetricsHandler()))

	pub := ez.New(&r.RouterGroup, d.Log)
	prot := pub
	if d.Verifier != nil {
		g := r.Group("")
		g.Use(mdw.AuthJWT(d.Verifier, ""))
		prot = ez.New(g, d.Log)
	}
	d.Users.Mount(pub, prot, d.Verifier != nil)
	if d.Login != nil {
		d.Login.Mount(pub)
	}
	return r
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, ""))
}
