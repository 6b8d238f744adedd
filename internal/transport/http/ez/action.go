package ez

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"profile-api/internal/core/auth"
	mdw "profile-api/internal/transport/http/middleware"
	resp "profile-api/internal/transport/http/response"
)

// EZ registers actions on a router group.
type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

type Binder string

const (
	BindJSON  Binder = "json"  // body; cached so the handler may re-read it
	BindQuery Binder = "query" // ?a=b
	BindNone  Binder = "none"  // handler reads c.Param / c.FormFile itself
)

// AErr carries the HTTP status an action failure maps to.
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }

// Internal hides err from the caller; only msg is sent, err is logged.
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// Action is one route. I is the bound input, O the success payload.
type Action[I any, O any] struct {
	Method string
	Path   string
	Binder Binder
	Status int // success status; 0 → 200, 204 sends no body

	Auth  bool     // require an authenticated caller
	Roles []string // restrict to these roles
	// Owner returns the user id the action touches. With Auth set, callers
	// may only act on their own id unless they hold the admin role.
	Owner func(c *gin.Context, in *I) string

	Handler func(c *gin.Context, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}

	h := func(c *gin.Context) {
		uid := c.GetString(mdw.CtxUserID)
		role := c.GetString(mdw.CtxRole)
		if a.Auth {
			if uid == "" {
				abort(c, resp.CodeUnauthorized, "unauthorized")
				return
			}
			if len(a.Roles) > 0 && !slices.Contains(a.Roles, role) {
				abort(c, resp.CodeForbidden, "forbidden")
				return
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindBodyWith(&in, binding.JSON)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			var ae *AErr
			errors.As(InputError(bindErr), &ae)
			abort(c, ae.Code, ae.Msg)
			return
		}

		if a.Auth && a.Owner != nil && role != auth.RoleAdmin && a.Owner(c, &in) != uid {
			abort(c, resp.CodeForbidden, "forbidden")
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			var ae *AErr
			if !errors.As(err, &ae) {
				ae = &AErr{Code: resp.CodeServerError, Msg: "internal error", Err: err}
			}
			if ae.Code >= http.StatusInternalServerError {
				e.log.Error("action failed",
					zap.String("path", c.FullPath()),
					zap.String("rid", c.GetString(mdw.KeyRequestID)),
					zap.Error(ae.Err))
				_ = c.Error(err)
			}
			abort(c, ae.Code, ae.Error())
			return
		}
		if status == http.StatusNoContent {
			c.Status(status)
			return
		}
		c.JSON(status, out)
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

// InputError classifies a failure to read request input: 413 when the body
// cap was hit, 400 otherwise.
func InputError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &AErr{Code: resp.CodeTooLarge, Msg: "request body too large", Err: err}
	}
	return &AErr{Code: resp.CodeBadRequest, Msg: err.Error(), Err: err}
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, resp.Error(code, msg))
}
