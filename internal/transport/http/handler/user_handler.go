package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"profile-api/internal/domain"
	"profile-api/internal/feature/user"
	"profile-api/internal/service"
	"profile-api/internal/transport/http/ez"
)

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler { return &UserHandler{svc: svc} }

// Mount registers the public API. Reads are open; mutations go on prot
// and, when requireAuth is set, may only touch the caller's own record.
func (h *UserHandler) Mount(pub, prot ez.EZ, requireAuth bool) {
	h.mountPhotos(pub, prot, requireAuth)
	h.mountUsers(pub, prot, requireAuth)
}

func paramOwner[I any](name string) func(c *gin.Context, _ *I) string {
	return func(c *gin.Context, _ *I) string { return c.Param(name) }
}

func (h *UserHandler) mountPhotos(pub, prot ez.EZ, requireAuth bool) {
	type uploadQ struct {
		UserID string `form:"user_id" binding:"required"`
	}
	ez.RegisterAction(prot, ez.Action[uploadQ, gin.H]{
		Method: http.MethodPost,
		Path:   "/upload_user_foto/",
		Binder: ez.BindQuery,
		Auth:   requireAuth,
		Owner:  func(_ *gin.Context, in *uploadQ) string { return in.UserID },
		Handler: func(c *gin.Context, in *uploadQ) (gin.H, error) {
			fh, err := c.FormFile("file")
			if err != nil {
				return nil, ez.InputError(err)
			}
			f, err := fh.Open()
			if err != nil {
				return nil, ez.Internal("read upload failed", err)
			}
			defer f.Close()

			key, err := h.svc.UploadPhoto(c.Request.Context(), in.UserID, fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
			switch {
			case errors.Is(err, service.ErrEmptyFilename):
				return nil, ez.BadRequest("missing filename")
			case errors.Is(err, domain.ErrStorageCredentials):
				return nil, ez.Internal("S3 Credential Error", err)
			case err != nil:
				return nil, ez.Internal("upload failed", err)
			}
			return gin.H{"filename": key}, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[struct{}, string]{
		Method: http.MethodGet,
		Path:   "/user-pic/:user_id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (string, error) {
			u, err := h.svc.PhotoURL(c.Request.Context(), c.Param("user_id"))
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				return "", ez.NotFound("User not found")
			case errors.Is(err, domain.ErrPhotoNotFound):
				return "", ez.NotFound("Profile picture not found")
			case err != nil:
				return "", ez.Internal("Failed to generate presigned URL", err)
			}
			return u, nil
		},
	})
}

func (h *UserHandler) mountUsers(pub, prot ez.EZ, requireAuth bool) {
	ez.RegisterAction(prot, ez.Action[user.Input, user.Input]{
		Method: http.MethodPost,
		Path:   "/create_user/",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Auth:   requireAuth,
		Owner:  func(c *gin.Context, _ *user.Input) string { return c.Query("_id") },
		Handler: func(c *gin.Context, in *user.Input) (user.Input, error) {
			id := c.Query("_id")
			if id == "" {
				return user.Input{}, ez.BadRequest("missing _id")
			}
			err := h.svc.Create(c.Request.Context(), in.Record(id))
			switch {
			case errors.Is(err, service.ErrInvalidPassword):
				return user.Input{}, ez.BadRequest(err.Error())
			case err != nil:
				return user.Input{}, ez.Internal("create user failed", err)
			}
			return in.Echo(), nil
		},
	})

	ez.RegisterAction(pub, ez.Action[struct{}, []user.View]{
		Method: http.MethodGet,
		Path:   "/users/",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]user.View, error) {
			us, err := h.svc.List(c.Request.Context())
			if err != nil {
				return nil, ez.Internal("list users failed", err)
			}
			return user.NewViews(us), nil
		},
	})

	ez.RegisterAction(pub, ez.Action[struct{}, user.View]{
		Method: http.MethodGet,
		Path:   "/users/:user_id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (user.View, error) {
			u, err := h.svc.Get(c.Request.Context(), c.Param("user_id"))
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				return user.View{}, ez.NotFound("User not found")
			case err != nil:
				return user.View{}, ez.Internal("get user failed", err)
			}
			return user.NewView(u), nil
		},
	})

	ez.RegisterAction(prot, ez.Action[user.Input, user.Input]{
		Method: http.MethodPost,
		Path:   "/update_user/:user_id",
		Binder: ez.BindJSON,
		Auth:   requireAuth,
		Owner:  paramOwner[user.Input]("user_id"),
		Handler: func(c *gin.Context, in *user.Input) (user.Input, error) {
			var raw map[string]json.RawMessage
			if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
				return user.Input{}, ez.InputError(err)
			}
			err := h.svc.Update(c.Request.Context(), c.Param("user_id"), in.Fields(raw))
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				return user.Input{}, ez.NotFound("User not found")
			case errors.Is(err, domain.ErrDuplicateName):
				return user.Input{}, ez.BadRequest("User with this name already exists")
			case errors.Is(err, domain.ErrIntegrity):
				return user.Input{}, ez.BadRequest("integrity constraint violated")
			case errors.Is(err, service.ErrInvalidPassword):
				return user.Input{}, ez.BadRequest(err.Error())
			case err != nil:
				return user.Input{}, ez.Internal("update user failed", err)
			}
			return in.Echo(), nil
		},
	})

	ez.RegisterAction(prot, ez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/delete_user/:user_id",
		Binder: ez.BindNone,
		Status: http.StatusNoContent,
		Auth:   requireAuth,
		Owner:  paramOwner[struct{}]("user_id"),
		Handler: func(c *gin.Context, _ *struct{}) (struct{}, error) {
			err := h.svc.Delete(c.Request.Context(), c.Param("user_id"))
			switch {
			case errors.Is(err, domain.ErrUserNotFound):
				return struct{}{}, ez.NotFound("User not found")
			case err != nil:
				return struct{}{}, ez.Internal("delete user failed", err)
			}
			return struct{}{}, nil
		},
	})
}
