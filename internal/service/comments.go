package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/store"
)

type CommentPage struct {
	Comments   []models.Comment `json:"comments"`
	Pagination store.Pagination `json:"pagination"`
}

type CommentService struct {
	deps Deps
	log  *zap.Logger
}

// List follows the article's visibility: comments on an unpublished
// article are only listed for admins and its author.
func (s *CommentService) List(ctx context.Context, viewer *models.User, articleID uuid.UUID, page, pageSize int) (*CommentPage, error) {
	if _, err := s.deps.visibleArticle(ctx, s.log, viewer, articleID); err != nil {
		return nil, err
	}
	p := store.NewPage(page, pageSize)
	comments, total, err := s.deps.Comments.ListByArticle(ctx, articleID, p)
	if err != nil {
		return nil, fromStore(s.log, err, "comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return &CommentPage{Comments: comments, Pagination: store.NewPagination(p, len(comments), total)}, nil
}

func (s *CommentService) Post(ctx context.Context, actor *models.User, articleID uuid.UUID, text string) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjComment, auth.ActCreate) {
		return nil, apperr.Authorization("not allowed to comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("comment text is required")
	}
	article, err := s.deps.Articles.Get(ctx, articleID)
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	if article.Status != models.StatusPublished {
		return nil, apperr.NotFound("article not found")
	}

	comment := &models.Comment{Comment: text, UserID: actor.ID, PostID: articleID}
	if err := s.deps.Comments.Create(ctx, comment); err != nil {
		return nil, fromStore(s.log, err, "comment")
	}
	return comment, nil
}

// Edit is owner-only and marks the comment as edited.
func (s *CommentService) Edit(ctx context.Context, actor *models.User, id uuid.UUID, text string) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("comment text is required")
	}
	current, err := s.deps.Comments.Get(ctx, id)
	if err != nil {
		return nil, fromStore(s.log, err, "comment")
	}
	if current.UserID != actor.ID {
		return nil, apperr.Authorization("you can only edit your own comments")
	}
	comment, err := s.deps.Comments.UpdateText(ctx, id, text, s.deps.Now())
	if err != nil {
		return nil, fromStore(s.log, err, "comment")
	}
	return comment, nil
}

// Delete is allowed for the comment owner and for moderators.
func (s *CommentService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	current, err := s.deps.Comments.Get(ctx, id)
	if err != nil {
		return fromStore(s.log, err, "comment")
	}
	if current.UserID != actor.ID && !s.deps.allowed(actor, auth.ObjComment, auth.ActModerate) {
		return apperr.Authorization("you can only delete your own comments")
	}
	if err := s.deps.Comments.Delete(ctx, id); err != nil {
		return fromStore(s.log, err, "comment")
	}
	return nil
}

func (s *CommentService) ToggleLike(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Comment, error) {
	return s.react(ctx, actor, id, models.ReactionLike)
}

func (s *CommentService) ToggleDislike(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Comment, error) {
	return s.react(ctx, actor, id, models.ReactionDislike)
}

func (s *CommentService) react(ctx context.Context, actor *models.User, id uuid.UUID, kind models.ReactionKind) (*models.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjComment, auth.ActReact) {
		return nil, apperr.Authorization("not allowed to react to comments")
	}
	comment, err := s.deps.Comments.React(ctx, id, actor.ID, kind)
	if err != nil {
		return nil, fromStore(s.log, err, "comment")
	}
	return comment, nil
}
