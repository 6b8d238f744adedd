package user

import (
	"encoding/json"
	"strconv"
	"time"

	"profile-api/internal/domain"
)

// Input is the request body shared by create and update. Every field is
// optional; on update only the keys present in the body are applied.
type Input struct {
	ID       *string `json:"id"`
	Name     *string `json:"nome"`
	Role     *int    `json:"role"`
	Photo    *string `json:"foto"`
	Phone    *int64  `json:"telefone"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Deleted  *string `json:"deleted"`
}

// Echo is the body returned by create/update. The password never leaves the
// server, not even as an echo of the caller's own input.
func (in Input) Echo() Input {
	in.Password = nil
	return in
}

// Record builds a new active user with the given id. Password is copied as
// supplied; hashing is the caller's job.
func (in Input) Record(id string) *domain.User {
	return &domain.User{
		ID:       id,
		Name:     in.Name,
		Role:     in.Role,
		Photo:    in.Photo,
		Phone:    in.Phone,
		Email:    in.Email,
		Password: in.Password,
	}
}

// Fields returns the column updates for the keys present in raw. id and
// deleted are never updatable and are silently dropped.
func (in Input) Fields(raw map[string]json.RawMessage) map[string]any {
	out := map[string]any{}
	set := func(key, col string, v any) {
		if _, ok := raw[key]; ok {
			out[col] = v
		}
	}
	set("nome", domain.ColName, in.Name)
	set("role", domain.ColRole, in.Role)
	set("foto", domain.ColPhoto, in.Photo)
	set("telefone", domain.ColPhone, in.Phone)
	set("email", domain.ColEmail, in.Email)
	set("password", domain.ColPassword, in.Password)
	return out
}

// View is the read shape. id, role and telefone are rendered as strings.
type View struct {
	ID      *string `json:"id"`
	Name    *string `json:"nome"`
	Role    *string `json:"role"`
	Photo   *string `json:"foto"`
	Phone   *string `json:"telefone"`
	Email   *string `json:"email"`
	Deleted *string `json:"deleted"`
}

func NewView(u *domain.User) View {
	v := View{Name: u.Name, Photo: u.Photo, Email: u.Email}
	if u.ID != "" {
		id := u.ID
		v.ID = &id
	}
	if u.Role != nil {
		s := strconv.Itoa(*u.Role)
		v.Role = &s
	}
	if u.Phone != nil {
		s := strconv.FormatInt(*u.Phone, 10)
		v.Phone = &s
	}
	if u.Deleted != nil {
		s := u.Deleted.UTC().Format(time.RFC3339)
		v.Deleted = &s
	}
	return v
}

func NewViews(us []domain.User) []View {
	out := make([]View, 0, len(us))
	for i := range us {
		out = append(out, NewView(&us[i]))
	}
	return out
}
