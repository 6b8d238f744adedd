package domain

import (
	"context"
	"io"
	"time"
)

// User is the single persisted entity. Nullable columns are pointers so an
// absent value is stored as NULL (the name index must tolerate many NULLs).
type User struct {
	ID       string     `gorm:"primaryKey;size:50"`
	Name     *string    `gorm:"column:nome;size:50;uniqueIndex"`
	Role     *int       `gorm:"column:role"`
	Photo    *string    `gorm:"column:foto;size:100"`
	Phone    *int64     `gorm:"column:telefone"`
	Email    *string    `gorm:"column:email;size:50"`
	Password *string    `gorm:"column:password;size:100"` // bcrypt hash
	Deleted  *time.Time `gorm:"column:deleted"`
}

func (User) TableName() string { return "users" }

// Active reports whether the record has not been soft-deleted.
func (u *User) Active() bool { return u.Deleted == nil }

// Column names accepted by UserRepository.UpdateFields.
const (
	ColName     = "nome"
	ColRole     = "role"
	ColPhoto    = "foto"
	ColPhone    = "telefone"
	ColEmail    = "email"
	ColPassword = "password"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, withDeleted bool) ([]User, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	SetPhoto(ctx context.Context, id, key string) (created bool, err error)
	PhotoKeys(ctx context.Context) (map[string]struct{}, error)
}

// Object describes a stored blob as reported by ObjectStore.List.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the bucket the profile photos live in.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}
