package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pubshark/backend/internal/models"
)

type NotificationStore struct {
	db *gorm.DB
}

func NewNotificationStore(db *gorm.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Latest returns the newest unexpired notifications joined with their
// articles. Read flags are left false; they are per reader.
func (s *NotificationStore) Latest(ctx context.Context, now time.Time, limit int) ([]models.FeedItem, error) {
	items := []models.FeedItem{}
	err := s.db.WithContext(ctx).
		Table("notifications AS n").
		Select(`n.id, n.type, n.article_id, a.title, a.cover_img, a.college,
			u.username AS author_username, n.created_at, n.expires_at`).
		Joins("JOIN articles a ON a.id = n.article_id").
		Joins("JOIN users u ON u.id = a.author_id").
		Where("n.expires_at > ?", now).
		Order("n.created_at DESC").Order("n.id").
		Limit(limit).
		Scan(&items).Error
	return items, err
}

func (s *NotificationStore) Get(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

// ReadSet returns which of ids userID has read.
func (s *NotificationStore) ReadSet(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	read := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return read, nil
	}
	var readIDs []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.NotificationReceipt{}).
		Where("user_id = ? AND notification_id IN ?", userID, ids).
		Pluck("notification_id", &readIDs).Error
	if err != nil {
		return nil, err
	}
	for _, id := range readIDs {
		read[id] = true
	}
	return read, nil
}

// MarkRead is idempotent; the first read time wins.
func (s *NotificationStore) MarkRead(ctx context.Context, notificationID, userID uuid.UUID, at time.Time) error {
	return translate(s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.NotificationReceipt{NotificationID: notificationID, UserID: userID, ReadAt: at}).Error)
}

// ClearedAt returns the reader's cursor, or the zero time if never cleared.
func (s *NotificationStore) ClearedAt(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	var cursor models.NotificationCursor
	err := s.db.WithContext(ctx).Limit(1).Find(&cursor, "user_id = ?", userID).Error
	return cursor.ClearedAt, err
}

func (s *NotificationStore) SetClearedAt(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cleared_at"}),
		}).
		Create(&models.NotificationCursor{UserID: userID, ClearedAt: at}).Error
}

func (s *NotificationStore) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.NotificationReceipt{}).Error; err != nil {
			return err
		}
		res := tx.Where("1 = 1").Delete(&models.Notification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func (s *NotificationStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.Notification{}).Select("id").Where("expires_at <= ?", now)
		if err := tx.Where("notification_id IN (?)", expired).Delete(&models.NotificationReceipt{}).Error; err != nil {
			return err
		}
		res := tx.Where("expires_at <= ?", now).Delete(&models.Notification{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
