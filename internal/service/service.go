package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/cache"
	"github.com/pubshark/backend/internal/mailer"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/store"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, page store.Page) ([]models.User, int64, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
}

type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	Get(ctx context.Context, id uuid.UUID) (*models.Article, error)
	List(ctx context.Context, f store.ArticleFilter) ([]models.Article, int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.Article, error)
	Transition(ctx context.Context, id uuid.UUID, t store.Transition) (*models.Article, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	ToggleLike(ctx context.Context, articleID, userID uuid.UUID) (*store.LikeResult, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListByArticle(ctx context.Context, articleID uuid.UUID, page store.Page) ([]models.Comment, int64, error)
	UpdateText(ctx context.Context, id uuid.UUID, text string, editedAt time.Time) (*models.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	React(ctx context.Context, commentID, userID uuid.UUID, kind models.ReactionKind) (*models.Comment, error)
}

type NotificationRepository interface {
	Latest(ctx context.Context, now time.Time, limit int) ([]models.FeedItem, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	ReadSet(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID, at time.Time) error
	ClearedAt(ctx context.Context, userID uuid.UUID) (time.Time, error)
	SetClearedAt(ctx context.Context, userID uuid.UUID, at time.Time) error
	DeleteAll(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type SubscriptionRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Subscription, error)
	SavePending(ctx context.Context, email, token string) (*models.Subscription, error)
	Confirm(ctx context.Context, email, token string, at time.Time) (bool, error)
	ConfirmedEmails(ctx context.Context) ([]string, error)
}

type Deps struct {
	Users         UserRepository
	Articles      ArticleRepository
	Comments      CommentRepository
	Notifications NotificationRepository
	Subscriptions SubscriptionRepository

	Feed   cache.Feed
	Mailer mailer.Mailer
	Policy *auth.Policy
	Tokens *auth.Tokens
	Log    *zap.Logger

	NotificationTTL time.Duration
	PublicURL       string

	// Now and Async default to time.Now and a plain goroutine.
	Now   func() time.Time
	Async func(func())
}

type Service struct {
	Accounts      *AccountService
	Articles      *ArticleService
	Comments      *CommentService
	Notifications *NotificationService
	Newsletter    *NewsletterService
}

func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Async == nil {
		d.Async = func(f func()) { go f() }
	}
	if d.Feed == nil {
		d.Feed = cache.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.NotificationTTL <= 0 {
		d.NotificationTTL = 7 * 24 * time.Hour
	}
	if d.Policy == nil {
		d.Policy = auth.MustPolicy()
	}

	v := newValidator()
	newsletter := &NewsletterService{deps: d, validate: v, log: d.Log.Named("newsletter")}
	return &Service{
		Accounts:      &AccountService{deps: d, validate: v, log: d.Log.Named("accounts")},
		Articles:      &ArticleService{deps: d, validate: v, log: d.Log.Named("articles"), announcer: newsletter},
		Comments:      &CommentService{deps: d, log: d.Log.Named("comments")},
		Notifications: &NotificationService{deps: d, log: d.Log.Named("notifications")},
		Newsletter:    newsletter,
	}
}

// fromStore maps repository errors onto the public taxonomy. Unknown
// errors are logged and hidden behind a dependency error.
func fromStore(log *zap.Logger, err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, store.ErrStale):
		return apperr.Conflict("%s was changed by another request, retry", what)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Dependency(err, "request cancelled")
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	log.Error("storage failure", zap.String("entity", what), zap.Error(err))
	return apperr.Dependency(err, "storage failure")
}

func requireActor(actor *models.User) error {
	if actor == nil {
		return apperr.Authentication("authentication required")
	}
	return nil
}

// visibleArticle loads an article the viewer may see. Unpublished articles
// are reported as missing to everyone but admins and the author.
func (d Deps) visibleArticle(ctx context.Context, log *zap.Logger, viewer *models.User, id uuid.UUID) (*models.Article, error) {
	article, err := d.Articles.Get(ctx, id)
	if err != nil {
		return nil, fromStore(log, err, "article")
	}
	if article.Status != models.StatusPublished {
		owner := viewer != nil && viewer.ID == article.AuthorID
		if !owner && !d.allowed(viewer, auth.ObjArticle, auth.ActListAny) {
			return nil, apperr.NotFound("article not found")
		}
	}
	return article, nil
}

func (d Deps) allowed(actor *models.User, obj, act string) bool {
	return actor != nil && d.Policy.Allowed(actor.Role, obj, act)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("content", validContent); err != nil {
		panic(err)
	}
	return v
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fe.Field())
		}
		return apperr.Validation("missing or invalid fields: %s", strings.Join(fields, ", "))
	}
	return apperr.Validation("invalid input: %v", err)
}
