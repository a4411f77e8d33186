package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/models"
)

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 50
)

type NotificationService struct {
	deps Deps
	log  *zap.Logger
}

// List returns the viewer's feed: the newest unexpired notifications
// created after the viewer last cleared, with the viewer's read flags.
func (s *NotificationService) List(ctx context.Context, viewer *models.User, limit int) ([]models.FeedItem, error) {
	if err := requireActor(viewer); err != nil {
		return nil, err
	}
	if !s.deps.allowed(viewer, auth.ObjNotification, auth.ActRead) {
		return nil, apperr.Authorization("not allowed to read notifications")
	}
	if limit < 1 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	now := s.deps.Now()
	shared, err := s.shared(ctx, now)
	if err != nil {
		return nil, err
	}
	clearedAt, err := s.deps.Notifications.ClearedAt(ctx, viewer.ID)
	if err != nil {
		return nil, fromStore(s.log, err, "notification cursor")
	}

	items := make([]models.FeedItem, 0, limit)
	for _, it := range shared {
		if !it.ExpiresAt.After(now) || !it.CreatedAt.After(clearedAt) {
			continue
		}
		items = append(items, it)
		if len(items) == limit {
			break
		}
	}

	ids := make([]uuid.UUID, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	read, err := s.deps.Notifications.ReadSet(ctx, viewer.ID, ids)
	if err != nil {
		return nil, fromStore(s.log, err, "notifications")
	}
	for i := range items {
		items[i].Read = read[items[i].ID]
	}
	return items, nil
}

func (s *NotificationService) shared(ctx context.Context, now time.Time) ([]models.FeedItem, error) {
	cached, ok, err := s.deps.Feed.Get(ctx)
	if err != nil {
		s.log.Warn("feed cache read failed", zap.Error(err))
	}
	if ok {
		return cached, nil
	}
	items, err := s.deps.Notifications.Latest(ctx, now, MaxFeedLimit)
	if err != nil {
		return nil, fromStore(s.log, err, "notifications")
	}
	if err := s.deps.Feed.Set(ctx, items); err != nil {
		s.log.Warn("feed cache write failed", zap.Error(err))
	}
	return items, nil
}

// MarkRead is idempotent per viewer.
func (s *NotificationService) MarkRead(ctx context.Context, viewer *models.User, id uuid.UUID) error {
	if err := requireActor(viewer); err != nil {
		return err
	}
	n, err := s.deps.Notifications.Get(ctx, id)
	if err != nil {
		return fromStore(s.log, err, "notification")
	}
	now := s.deps.Now()
	if !n.ExpiresAt.After(now) {
		return apperr.NotFound("notification not found")
	}
	if err := s.deps.Notifications.MarkRead(ctx, id, viewer.ID, now); err != nil {
		return fromStore(s.log, err, "notification")
	}
	return nil
}

// ClearAll hides every current notification from this viewer only.
func (s *NotificationService) ClearAll(ctx context.Context, viewer *models.User) error {
	if err := requireActor(viewer); err != nil {
		return err
	}
	if err := s.deps.Notifications.SetClearedAt(ctx, viewer.ID, s.deps.Now()); err != nil {
		return fromStore(s.log, err, "notification cursor")
	}
	return nil
}

// Purge deletes every notification for every reader.
func (s *NotificationService) Purge(ctx context.Context, actor *models.User) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	if !s.deps.allowed(actor, auth.ObjNotification, auth.ActPurge) {
		return 0, apperr.Authorization("only admins can purge notifications")
	}
	n, err := s.deps.Notifications.DeleteAll(ctx)
	if err != nil {
		return 0, fromStore(s.log, err, "notifications")
	}
	s.invalidate(ctx)
	s.log.Info("notifications purged", zap.Int64("deleted", n), zap.Stringer("by", actor.ID))
	return n, nil
}

func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.deps.Notifications.DeleteExpired(ctx, s.deps.Now())
	if err != nil {
		return 0, fromStore(s.log, err, "notifications")
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

// RunJanitor deletes expired notifications every interval until ctx is
// done.
func (s *NotificationService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Error("expired notification purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("expired notifications purged", zap.Int64("deleted", n))
			}
		}
	}
}

func (s *NotificationService) invalidate(ctx context.Context) {
	if err := s.deps.Feed.Invalidate(ctx); err != nil {
		s.log.Warn("feed cache invalidation failed", zap.Error(err))
	}
}
