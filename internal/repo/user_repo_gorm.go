package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"profile-api/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		// drivers behind TranslateError no longer say which index was hit
		if _, ferr := r.FindByID(ctx, u.ID); ferr == nil {
			return fmt.Errorf("create user %q: %w: %v", u.ID, domain.ErrDuplicateID, err)
		}
	}
	return fmt.Errorf("create user %q: %w", u.ID, translate(err))
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", id, err)
	}
	return &u, nil
}

// List returns all users ordered by id. Soft-deleted rows are included unless
// withDeleted is false.
func (r *UserRepo) List(ctx context.Context, withDeleted bool) ([]domain.User, error) {
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if !withDeleted {
		q = q.Where("deleted IS NULL")
	}
	var users []domain.User
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" || k == "deleted" {
			continue
		}
		clean[k] = v
	}
	if len(clean) == 0 {
		// nothing to write; still report a missing row
		_, err := r.FindByID(ctx, id)
		return err
	}
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(clean)
	if res.Error != nil {
		return fmt.Errorf("update user %q: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		// MySQL reports 0 for rows matched but unchanged
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *UserRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("deleted", at)
	if res.Error != nil {
		return fmt.Errorf("soft delete user %q: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetPhoto points the user's foto at key, inserting a bare {id, foto} row when
// the user does not exist yet. Losing an insert race on id falls back to
// updating the row the other writer created.
func (r *UserRepo) SetPhoto(ctx context.Context, id, key string) (bool, error) {
	created, err := r.setPhoto(ctx, id, key)
	if errors.Is(err, domain.ErrDuplicateID) {
		created, err = r.setPhoto(ctx, id, key)
	}
	return created, err
}

func (r *UserRepo) setPhoto(ctx context.Context, id, key string) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u domain.User
		err := tx.Where("id = ?", id).Take(&u).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(&domain.User{ID: id, Photo: &key}).Error
		case err != nil:
			return err
		}
		return tx.Model(&u).Update(domain.ColPhoto, key).Error
	})
	if err != nil {
		// the inserted row carries no name, so a duplicate can only be the id
		if created && isDuplicate(err) {
			return false, fmt.Errorf("set photo for %q: %w: %v", id, domain.ErrDuplicateID, err)
		}
		return false, fmt.Errorf("set photo for %q: %w", id, translate(err))
	}
	return created, nil
}

// PhotoKeys returns every object key currently referenced by a user.
func (r *UserRepo) PhotoKeys(ctx context.Context) (map[string]struct{}, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("foto IS NOT NULL AND foto <> ''").
		Pluck(domain.ColPhoto, &keys).Error
	if err != nil {
		return nil, fmt.Errorf("pluck photo keys: %w", err)
	}
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out, nil
}

// translate maps driver constraint errors onto domain errors. gorm's
// TranslateError covers most drivers; the message match is a fallback for
// dialects that do not implement it. Callers that can hit the primary key
// classify duplicates themselves first; what reaches here is the name index.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateName, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated),
		strings.Contains(strings.ToLower(err.Error()), "constraint"):
		return fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
