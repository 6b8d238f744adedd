package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"profile-api/internal/domain"
)

// Orphans lists bucket objects no user references and that are older than
// grace. Objects are listed before references are read, so a concurrent
// upload is either referenced already or still inside the grace window.
func (s *UserService) Orphans(ctx context.Context, grace time.Duration) ([]domain.Object, error) {
	objs, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	refs, err := s.repo.PhotoKeys(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-grace)
	var out []domain.Object
	for _, o := range objs {
		if _, used := refs[o.Key]; used {
			continue
		}
		if o.LastModified.After(cutoff) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// SweepOrphans deletes what Orphans reports and returns the deleted keys.
// A failed delete does not stop the sweep.
func (s *UserService) SweepOrphans(ctx context.Context, grace time.Duration) ([]string, error) {
	objs, err := s.Orphans(ctx, grace)
	if err != nil {
		return nil, err
	}
	deleted := make([]string, 0, len(objs))
	var errs []error
	for _, o := range objs {
		if err := s.store.Delete(ctx, o.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", o.Key, err))
			continue
		}
		deleted = append(deleted, o.Key)
	}
	s.log.Info("orphan sweep", zap.Int("candidates", len(objs)), zap.Int("deleted", len(deleted)), zap.Int("failed", len(errs)))
	return deleted, errors.Join(errs...)
}
