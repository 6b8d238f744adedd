package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Options struct {
	// Origins is the CORS allow-list; empty disables CORS handling.
	Origins []string
}

// NewRouter returns a bare engine. ClientIP ignores forwarding headers
// since no proxy is trusted.
func NewRouter(o Options) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	if len(o.Origins) > 0 {
		r.Use(CORS(o.Origins))
	}
	return r
}

// corsHeaders is spelled out: with credentials allowed, browsers take "*" in
// Access-Control-Allow-Headers literally and never let it cover Authorization.
var corsHeaders = []string{
	"Origin", "Accept", "Authorization", "Content-Type", "Content-Length", "X-Request-ID",
}

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func StartHTTP(srv *http.Server, l *zap.Logger) error {
	l.Info("http starting", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}

func BuildServer(addr string, handler http.Handler, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       rt,
		ReadHeaderTimeout: rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
}

// HandlerTimeout derives the request deadline from the server write timeout
// so handlers give up, and the 504 is written, before the connection is cut.
// It is always positive and never exceeds wt; wt <= 0 means no write timeout.
func HandlerTimeout(wt time.Duration) time.Duration {
	if wt <= 0 {
		return 30 * time.Second
	}
	return wt - min(time.Second, wt/10)
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }
