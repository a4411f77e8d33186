package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pubshark/backend/internal/models"
)

type SubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func (s *SubscriptionStore) FindByEmail(ctx context.Context, email string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// SavePending creates or resets an unconfirmed subscription with a fresh
// token. Confirmed rows are left as they are.
func (s *SubscriptionStore) SavePending(ctx context.Context, email, token string) (*models.Subscription, error) {
	sub := models.Subscription{Email: email, ConfirmationToken: token}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "subscriptions", Name: "confirmed"}, Value: false},
		}},
		DoUpdates: clause.AssignmentColumns([]string{"confirmation_token", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.FindByEmail(ctx, email)
}

// Confirm flips the subscription to confirmed only when email and token
// both match; the token is single use.
func (s *SubscriptionStore) Confirm(ctx context.Context, email, token string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("email = ? AND confirmation_token = ? AND confirmation_token <> ''", email, token).
		Updates(map[string]any{
			"confirmed":          true,
			"confirmation_token": "",
			"confirmed_at":       at,
		})
	return res.RowsAffected > 0, res.Error
}

func (s *SubscriptionStore) ConfirmedEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("confirmed = ?", true).
		Order("created_at").
		Pluck("email", &emails).Error
	return emails, err
}
