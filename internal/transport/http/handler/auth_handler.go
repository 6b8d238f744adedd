package handler

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"profile-api/internal/core/auth"
	"profile-api/internal/service"
	"profile-api/internal/transport/http/ez"
)

type TokenIssuer interface {
	Issue(uid, role string) (string, error)
}

type AuthHandler struct {
	svc      *service.UserService
	tokens   TokenIssuer
	adminIDs []string
}

func NewAuthHandler(svc *service.UserService, tokens TokenIssuer, adminIDs []string) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, adminIDs: adminIDs}
}

type loginIn struct {
	ID       string `json:"id"       binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginOut struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Role  string `json:"role"`
}

// Mount registers POST /auth/login. Users listed in adminIDs get the admin
// role, everybody else a plain user token.
func (h *AuthHandler) Mount(pub ez.EZ) {
	ez.RegisterAction(pub, ez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			u, err := h.svc.Authenticate(c.Request.Context(), in.ID, in.Password)
			switch {
			case errors.Is(err, service.ErrInvalidCredentials):
				return loginOut{}, ez.Unauthorized("invalid credentials")
			case err != nil:
				return loginOut{}, ez.Internal("login failed", err)
			}
			role := auth.RoleUser
			if slices.Contains(h.adminIDs, u.ID) {
				role = auth.RoleAdmin
			}
			tok, err := h.tokens.Issue(u.ID, role)
			if err != nil {
				return loginOut{}, ez.Internal("issue token failed", err)
			}
			return loginOut{Token: tok, ID: u.ID, Role: role}, nil
		},
	})
}
