package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"profile-api/internal/core/database"
	"profile-api/internal/domain"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, r *UserRepo, u domain.User) {
	t.Helper()
	if err := r.Create(context.Background(), &u); err != nil {
		t.Fatalf("seed %s: %v", u.ID, err)
	}
}

func TestCreateAndFind(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "u1", Name: ptr("Alice"), Role: ptr(1), Phone: ptr(int64(5551234)), Email: ptr("a@x.com")})

	u, err := r.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if *u.Name != "Alice" || *u.Role != 1 || *u.Phone != 5551234 || u.Photo != nil || !u.Active() {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := r.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	seed(t, r, domain.User{ID: "u1", Name: ptr("Alice")})
	err := r.Create(context.Background(), &domain.User{ID: "u2", Name: ptr("Alice")})
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	seed(t, r, domain.User{ID: "u1", Name: ptr("Alice")})
	err := r.Create(context.Background(), &domain.User{ID: "u1", Name: ptr("Bob")})
	if !errors.Is(err, domain.ErrDuplicateID) || errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateID only, got %v", err)
	}
}

func TestCreate_NullNamesDoNotCollide(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	seed(t, r, domain.User{ID: "u1"})
	seed(t, r, domain.User{ID: "u2"})
}

func TestCreate_DuplicateNameAgainstDeletedRow(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "u1", Name: ptr("Alice")})
	if err := r.SoftDelete(ctx, "u1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := r.Create(ctx, &domain.User{ID: "u2", Name: ptr("Alice")}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("uniqueness must ignore delete state, got %v", err)
	}
}

func TestList(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "b"})
	seed(t, r, domain.User{ID: "a"})
	if err := r.SoftDelete(ctx, "b", time.Now()); err != nil {
		t.Fatal(err)
	}

	all, err := r.List(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("unexpected list: %+v", all)
	}

	active, err := r.List(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "a" {
		t.Errorf("unexpected active list: %+v", active)
	}
}

func TestUpdateFields(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "u1", Name: ptr("Alice"), Email: ptr("a@x.com")})
	seed(t, r, domain.User{ID: "u2", Name: ptr("Bob")})

	err := r.UpdateFields(ctx, "u1", map[string]any{
		domain.ColEmail: ptr("new@x.com"),
		"id":            "hijack",
		"deleted":       time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	u, _ := r.FindByID(ctx, "u1")
	if *u.Email != "new@x.com" || *u.Name != "Alice" || u.Deleted != nil {
		t.Errorf("unexpected user after update: %+v", u)
	}

	if err := r.UpdateFields(ctx, "u1", map[string]any{domain.ColName: ptr("Bob")}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if err := r.UpdateFields(ctx, "nobody", map[string]any{domain.ColEmail: ptr("x")}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := r.UpdateFields(ctx, "nobody", map[string]any{"id": "x"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for empty update, got %v", err)
	}
}

func TestUpdateFields_ExplicitNull(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "u1", Email: ptr("a@x.com")})
	var none *string
	if err := r.UpdateFields(ctx, "u1", map[string]any{domain.ColEmail: none}); err != nil {
		t.Fatal(err)
	}
	u, _ := r.FindByID(ctx, "u1")
	if u.Email != nil {
		t.Errorf("expected email cleared, got %q", *u.Email)
	}
}

func TestSoftDelete(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "u1"})
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	if err := r.SoftDelete(ctx, "u1", at); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	u, err := r.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("soft-deleted user must stay readable: %v", err)
	}
	if u.Deleted == nil || !u.Deleted.Equal(at) {
		t.Errorf("deleted = %v, want %v", u.Deleted, at)
	}
	if err := r.SoftDelete(ctx, "nobody", at); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSetPhoto(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()

	created, err := r.SetPhoto(ctx, "new", "a.jpg")
	if err != nil || !created {
		t.Fatalf("SetPhoto on missing user: created=%v err=%v", created, err)
	}
	u, _ := r.FindByID(ctx, "new")
	if u.Photo == nil || *u.Photo != "a.jpg" || u.Name != nil {
		t.Errorf("unexpected bare user: %+v", u)
	}

	seed(t, r, domain.User{ID: "old", Name: ptr("Alice"), Email: ptr("a@x.com")})
	created, err = r.SetPhoto(ctx, "old", "b.jpg")
	if err != nil || created {
		t.Fatalf("SetPhoto on existing user: created=%v err=%v", created, err)
	}
	u, _ = r.FindByID(ctx, "old")
	if *u.Photo != "b.jpg" || *u.Name != "Alice" || *u.Email != "a@x.com" {
		t.Errorf("only foto should change: %+v", u)
	}
}

func TestPhotoKeys(t *testing.T) {
	r := NewUserRepo(setupDB(t))
	ctx := context.Background()
	seed(t, r, domain.User{ID: "u1", Photo: ptr("a.jpg")})
	seed(t, r, domain.User{ID: "u2", Photo: ptr("")})
	seed(t, r, domain.User{ID: "u3"})

	keys, err := r.PhotoKeys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := keys["a.jpg"]; !ok || len(keys) != 1 {
		t.Errorf("unexpected keys: %v", keys)
	}
}

// failCreates makes the next n inserts fail as a primary key collision would.
func failCreates(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:duplicate_id", func(tx *gorm.DB) {
		if n > 0 {
			n--
			_ = tx.AddError(gorm.ErrDuplicatedKey)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSetPhoto_RetriesLostInsertRace(t *testing.T) {
	db := setupDB(t)
	r := NewUserRepo(db)
	failCreates(t, db, 1)

	created, err := r.SetPhoto(context.Background(), "u1", "a.jpg")
	if err != nil || !created {
		t.Fatalf("SetPhoto: created=%v err=%v", created, err)
	}
	u, err := r.FindByID(context.Background(), "u1")
	if err != nil || *u.Photo != "a.jpg" {
		t.Errorf("unexpected user: %+v %v", u, err)
	}
}

func TestSetPhoto_IDCollisionIsNotANameCollision(t *testing.T) {
	db := setupDB(t)
	r := NewUserRepo(db)
	failCreates(t, db, 2)

	_, err := r.SetPhoto(context.Background(), "u1", "a.jpg")
	if !errors.Is(err, domain.ErrDuplicateID) || errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateID only, got %v", err)
	}
}
