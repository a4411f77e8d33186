package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const NotificationTypeArticle = "article"

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(16);not null;default:article" json:"type"`
	ArticleID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"articleId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Type == "" {
		n.Type = NotificationTypeArticle
	}
	return nil
}

// NotificationReceipt records that one reader has read one notification.
type NotificationReceipt struct {
	NotificationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReadAt         time.Time `gorm:"not null"`
}

// NotificationCursor hides everything created at or before ClearedAt from
// one reader's feed.
type NotificationCursor struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClearedAt time.Time `gorm:"not null"`
}

// FeedItem is a notification joined with its article for display.
type FeedItem struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	ArticleID      uuid.UUID `json:"articleId"`
	Title          string    `json:"title"`
	CoverImg       string    `json:"coverImg"`
	College        string    `json:"college"`
	AuthorUsername string    `json:"author"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	Read           bool      `json:"read"`
}
