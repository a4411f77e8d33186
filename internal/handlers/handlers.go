package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/middleware"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/service"
)

type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	List(ctx context.Context, actor *models.User, page, pageSize int) (*service.UserPage, error)
	SetRole(ctx context.Context, actor *models.User, id uuid.UUID, role string) (*models.User, error)
}

type ArticleService interface {
	Submit(ctx context.Context, actor *models.User, in service.SubmitArticleInput) (*models.Article, error)
	Review(ctx context.Context, actor *models.User, id uuid.UUID, decision, message string) (*models.Article, error)
	Resubmit(ctx context.Context, actor *models.User, id uuid.UUID, edits *service.ArticleEdits) (*models.Article, error)
	Edit(ctx context.Context, actor *models.User, id uuid.UUID, edits service.ArticleEdits) (*models.Article, error)
	Delete(ctx context.Context, actor *models.User, id uuid.UUID) error
	List(ctx context.Context, viewer *models.User, q service.ListQuery) (*service.ArticlePage, error)
	Get(ctx context.Context, viewer *models.User, id uuid.UUID) (*service.ArticleDetail, error)
	ToggleLike(ctx context.Context, actor *models.User, id uuid.UUID) (*service.LikeState, error)
}

type CommentService interface {
	List(ctx context.Context, viewer *models.User, articleID uuid.UUID, page, pageSize int) (*service.CommentPage, error)
	Post(ctx context.Context, actor *models.User, articleID uuid.UUID, text string) (*models.Comment, error)
	Edit(ctx context.Context, actor *models.User, id uuid.UUID, text string) (*models.Comment, error)
	Delete(ctx context.Context, actor *models.User, id uuid.UUID) error
	ToggleLike(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Comment, error)
	ToggleDislike(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Comment, error)
}

type NotificationService interface {
	List(ctx context.Context, viewer *models.User, limit int) ([]models.FeedItem, error)
	MarkRead(ctx context.Context, viewer *models.User, id uuid.UUID) error
	ClearAll(ctx context.Context, viewer *models.User) error
	Purge(ctx context.Context, actor *models.User) (int64, error)
}

type NewsletterService interface {
	Subscribe(ctx context.Context, email string) (*models.Subscription, error)
	Confirm(ctx context.Context, email, token string) error
}

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	Article      *ArticleHandler
	Comment      *CommentHandler
	Notification *NotificationHandler
	Newsletter   *NewsletterHandler
	User         *UserHandler
}

// NewHandler wires every handler to the service layer.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Accounts),
		Article:      NewArticleHandler(svc.Articles),
		Comment:      NewCommentHandler(svc.Comments),
		Notification: NewNotificationHandler(svc.Notifications),
		Newsletter:   NewNewsletterHandler(svc.Newsletter),
		User:         NewUserHandler(svc.Accounts),
	}
}

// respondError writes err as {"error", "kind"} with the status of its kind.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindDependency {
		_ = c.Error(err)
	}
	c.JSON(kind.HTTPStatus(), gin.H{"error": apperr.PublicMessage(err), "kind": kind})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": apperr.KindValidation})
}

// paramID parses a uuid path parameter. Malformed ids cannot name an
// existing record, so they are reported as not found.
func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperr.NotFound("%s not found", what))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}
