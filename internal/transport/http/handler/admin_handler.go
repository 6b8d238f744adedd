package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"profile-api/internal/feature/user"
	"profile-api/internal/service"
	"profile-api/internal/transport/http/ez"
)

type AdminHandler struct {
	svc   *service.UserService
	grace time.Duration
}

// NewAdminHandler serves the operator endpoints. grace is how old an
// unreferenced object must be before it counts as an orphan.
func NewAdminHandler(svc *service.UserService, grace time.Duration) *AdminHandler {
	return &AdminHandler{svc: svc, grace: grace}
}

type orphanRow struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type sweepOut struct {
	Deleted []string `json:"deleted"`
	Failed  string   `json:"failed,omitempty"`
}

func (h *AdminHandler) Mount(g ez.EZ) {
	type listQ struct {
		WithDeleted bool `form:"with_deleted"`
	}
	ez.RegisterAction(g, ez.Action[listQ, []user.View]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *listQ) ([]user.View, error) {
			us, err := h.svc.ListFiltered(c.Request.Context(), in.WithDeleted)
			if err != nil {
				return nil, ez.Internal("list users failed", err)
			}
			return user.NewViews(us), nil
		},
	})

	ez.RegisterAction(g, ez.Action[struct{}, []orphanRow]{
		Method: http.MethodGet,
		Path:   "/photos/orphans",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]orphanRow, error) {
			objs, err := h.svc.Orphans(c.Request.Context(), h.grace)
			if err != nil {
				return nil, ez.Internal("list orphans failed", err)
			}
			out := make([]orphanRow, 0, len(objs))
			for _, o := range objs {
				out = append(out, orphanRow{Key: o.Key, Size: o.Size, LastModified: o.LastModified.UTC()})
			}
			return out, nil
		},
	})

	// A partial sweep still answers 200 with what was deleted.
	ez.RegisterAction(g, ez.Action[struct{}, sweepOut]{
		Method: http.MethodPost,
		Path:   "/photos/orphans/sweep",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (sweepOut, error) {
			deleted, err := h.svc.SweepOrphans(c.Request.Context(), h.grace)
			if err != nil && len(deleted) == 0 {
				return sweepOut{}, ez.Internal("sweep failed", err)
			}
			out := sweepOut{Deleted: deleted}
			if err != nil {
				out.Failed = err.Error()
			}
			return out, nil
		},
	})
}
