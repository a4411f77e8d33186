package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/mailer"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/store"
)

type NewsletterService struct {
	deps     Deps
	validate *validator.Validate
	log      *zap.Logger
}

// Subscribe stores a pending subscription with a fresh token and mails the
// confirmation link. A confirmed address is left alone.
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (*models.Subscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, apperr.Validation("a valid email address is required")
	}

	existing, err := s.deps.Subscriptions.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.Confirmed:
		return existing, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fromStore(s.log, err, "subscription")
	}

	sub, err := s.deps.Subscriptions.SavePending(ctx, email, uuid.NewString())
	if err != nil {
		return nil, fromStore(s.log, err, "subscription")
	}
	if sub.Confirmed {
		return sub, nil
	}

	msg := mailer.ConfirmationMessage(s.deps.PublicURL, sub.Email, sub.ConfirmationToken)
	if err := s.deps.Mailer.Send(ctx, msg); err != nil {
		s.log.Error("confirmation email failed", zap.String("email", email), zap.Error(err))
		return nil, apperr.Dependency(err, "could not send the confirmation email")
	}
	return sub, nil
}

// Confirm needs the exact email and token pair; the token is single use.
func (s *NewsletterService) Confirm(ctx context.Context, email, token string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return apperr.Validation("email and token are required")
	}
	ok, err := s.deps.Subscriptions.Confirm(ctx, email, token, s.deps.Now())
	if err != nil {
		return fromStore(s.log, err, "subscription")
	}
	if !ok {
		return apperr.NotFound("subscription not found")
	}
	s.log.Info("subscription confirmed", zap.String("email", email))
	return nil
}

// Announce mails every confirmed subscriber about a published article.
// Failures are logged per recipient and never surface to the reviewer.
func (s *NewsletterService) Announce(ctx context.Context, article *models.Article) {
	emails, err := s.deps.Subscriptions.ConfirmedEmails(ctx)
	if err != nil {
		s.log.Error("load subscribers failed", zap.Error(err))
		return
	}
	sent := 0
	for _, email := range emails {
		msg := mailer.NewArticleMessage(s.deps.PublicURL, email, article.ID.String(), article.Title, article.College, article.Author.Username)
		if err := s.deps.Mailer.Send(ctx, msg); err != nil {
			s.log.Warn("newsletter delivery failed", zap.String("email", email), zap.Error(err))
			continue
		}
		sent++
	}
	s.log.Info("newsletter sent", zap.Stringer("article", article.ID), zap.Int("sent", sent), zap.Int("subscribers", len(emails)))
}
