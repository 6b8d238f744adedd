package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"profile-api/internal/core/cache"
	"profile-api/internal/domain"
	"profile-api/pkg/utils"
)

var (
	ErrEmptyFilename      = errors.New("empty filename")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("password longer than 72 bytes")
)

type UserService struct {
	repo   domain.UserRepository
	store  domain.ObjectStore
	urls   *cache.Cache // nil disables presigned URL caching
	urlTTL time.Duration
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*UserService)

// WithURLCache caches presigned photo URLs for ttl.
func WithURLCache(c *cache.Cache, ttl time.Duration) Option {
	return func(s *UserService) {
		if c != nil && ttl > 0 {
			s.urls, s.urlTTL = c, ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option { return func(s *UserService) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *UserService) { s.now = now } }

func NewUserService(repo domain.UserRepository, store domain.ObjectStore, opts ...Option) *UserService {
	s := &UserService{repo: repo, store: store, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UploadPhoto stores the bytes under filename and points the user's foto at
// it, creating a bare user when none exists. The two writes are not atomic:
// if the record write fails the object is left for the orphan sweeper.
func (s *UserService) UploadPhoto(ctx context.Context, userID, filename string, body io.ReadSeeker, size int64, contentType string) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}
	key := filename
	if err := s.store.Put(ctx, key, body, size, contentType); err != nil {
		return "", err
	}
	created, err := s.repo.SetPhoto(ctx, userID, key)
	if err != nil {
		s.log.Warn("photo stored but user record not updated; object orphaned",
			zap.String("user_id", userID), zap.String("key", key), zap.Error(err))
		return "", err
	}
	s.log.Info("photo uploaded",
		zap.String("user_id", userID), zap.String("key", key),
		zap.Int64("size", size), zap.Bool("created_user", created))
	return key, nil
}

// PhotoURL returns a presigned GET URL for the user's photo.
func (s *UserService) PhotoURL(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.Photo == nil || *u.Photo == "" {
		return "", domain.ErrPhotoNotFound
	}
	key := *u.Photo
	presign := func(ctx context.Context) (string, error) { return s.store.PresignGet(ctx, key) }
	if s.urls == nil {
		return presign(ctx)
	}
	return cache.GetOrLoadJSON(s.urls, ctx, "userpic:"+userID+":"+key, s.urlTTL, presign)
}

// Create persists u as a new active user, hashing its password.
func (s *UserService) Create(ctx context.Context, u *domain.User) error {
	u.Deleted = nil
	if err := s.hashInto(&u.Password); err != nil {
		return err
	}
	return s.repo.Create(ctx, u)
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx, true)
}

func (s *UserService) ListFiltered(ctx context.Context, withDeleted bool) ([]domain.User, error) {
	return s.repo.List(ctx, withDeleted)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies the given column values. id and deleted are ignored.
func (s *UserService) Update(ctx context.Context, id string, fields map[string]any) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if pw, ok := fields[domain.ColPassword].(*string); ok {
		if err := s.hashInto(&pw); err != nil {
			return err
		}
		fields[domain.ColPassword] = pw
	}
	return s.repo.UpdateFields(ctx, id, fields)
}

// Delete soft-deletes the user. Deleting twice moves the timestamp forward.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id, s.now().UTC())
}

// Authenticate checks password against the stored hash of an active user.
// Unknown ids, deleted users and users without a password all fail the same
// way.
func (s *UserService) Authenticate(ctx context.Context, id, password string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active() || u.Password == nil || !utils.CheckPassword(password, *u.Password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) hashInto(pw **string) error {
	if *pw == nil {
		return nil
	}
	h, err := utils.HashPassword(**pw)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return ErrInvalidPassword
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	*pw = &h
	return nil
}
