package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/store"
)

type SubmitArticleInput struct {
	Title       string          `json:"title" validate:"notblank"`
	Description string          `json:"description"`
	Content     json.RawMessage `json:"content" validate:"required,content"`
	CoverImg    string          `json:"coverImg" validate:"notblank"`
	College     string          `json:"college" validate:"notblank"`
	Category    string          `json:"category" validate:"notblank"`
}

// ArticleEdits carries optional field changes; nil means unchanged.
type ArticleEdits struct {
	Title       *string         `json:"title" validate:"omitnil,notblank"`
	Description *string         `json:"description"`
	Content     json.RawMessage `json:"content" validate:"omitempty,content"`
	CoverImg    *string         `json:"coverImg" validate:"omitnil,notblank"`
	College     *string         `json:"college" validate:"omitnil,notblank"`
	Category    *string         `json:"category" validate:"omitnil,notblank"`
}

func (e ArticleEdits) columns() map[string]any {
	cols := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			cols[col] = strings.TrimSpace(*v)
		}
	}
	set("title", e.Title)
	set("description", e.Description)
	set("cover_img", e.CoverImg)
	set("college", e.College)
	set("category", e.Category)
	if len(e.Content) > 0 {
		cols["content"] = datatypes.JSON(e.Content)
	}
	return cols
}

type ListQuery struct {
	Search    string
	Category  string
	College   string
	Status    string
	Author    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

type ArticlePage struct {
	Articles   []models.Article `json:"articles"`
	Total      int64            `json:"total"`
	Pagination store.Pagination `json:"pagination"`
}

type ArticleDetail struct {
	Article  *models.Article  `json:"article"`
	Comments []models.Comment `json:"comments"`
	Total    int64            `json:"commentTotal"`
}

type LikeState struct {
	Liked     bool        `json:"liked"`
	LikeCount int         `json:"likeCount"`
	Likes     []uuid.UUID `json:"likes"`
}

type announcer interface {
	Announce(ctx context.Context, article *models.Article)
}

type ArticleService struct {
	deps      Deps
	validate  *validator.Validate
	log       *zap.Logger
	announcer announcer
}

func (s *ArticleService) Submit(ctx context.Context, actor *models.User, in SubmitArticleInput) (*models.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjArticle, auth.ActCreate) {
		return nil, apperr.Authorization("only writers and admins can submit articles")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	article := &models.Article{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Content:     datatypes.JSON(in.Content),
		CoverImg:    strings.TrimSpace(in.CoverImg),
		College:     strings.TrimSpace(in.College),
		Category:    strings.TrimSpace(in.Category),
		AuthorID:    actor.ID,
		Status:      models.StatusPending,
	}
	if err := s.deps.Articles.Create(ctx, article); err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	s.log.Info("article submitted", zap.Stringer("article", article.ID), zap.Stringer("author", actor.ID))
	return article, nil
}

// Review applies an admin decision to a pending article. Publishing writes
// the notification in the same transaction; the feed cache and the
// newsletter only hear about it after commit.
func (s *ArticleService) Review(ctx context.Context, actor *models.User, id uuid.UUID, decision, message string) (*models.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjArticle, auth.ActReview) {
		return nil, apperr.Authorization("only admins can review articles")
	}
	to, err := models.ParseArticleStatus(decision)
	if err != nil || !to.IsReviewDecision() {
		return nil, apperr.InvalidTransition("%q is not a review decision", decision)
	}
	message = strings.TrimSpace(message)
	if to != models.StatusPublished && message == "" {
		return nil, apperr.Validation("a message is required when the decision is %s", to)
	}

	current, err := s.deps.Articles.Get(ctx, id)
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, apperr.InvalidTransition("cannot move article from %s to %s", current.Status, to)
	}

	now := s.deps.Now()
	t := store.Transition{
		From:   models.SourcesOf(to),
		To:     to,
		Fields: map[string]any{"reviewed_by": actor.ID},
	}
	switch to {
	case models.StatusPublished:
		t.Fields["published_at"] = now
		t.Notification = &models.Notification{
			Type:      models.NotificationTypeArticle,
			CreatedAt: now,
			ExpiresAt: now.Add(s.deps.NotificationTTL),
		}
	case models.StatusRejected:
		t.Fields["rejection_message"] = message
		t.Fields["rejection_date"] = now
	case models.StatusRevision:
		t.Fields["revision_message"] = message
		t.Fields["revision_date"] = now
	}

	article, err := s.deps.Articles.Transition(ctx, id, t)
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	s.log.Info("article reviewed",
		zap.Stringer("article", id),
		zap.String("decision", string(to)),
		zap.Stringer("reviewer", actor.ID),
	)

	if to == models.StatusPublished {
		if err := s.deps.Feed.Invalidate(ctx); err != nil {
			s.log.Warn("feed cache invalidation failed", zap.Error(err))
		}
		bg := context.WithoutCancel(ctx)
		s.deps.Async(func() { s.announcer.Announce(bg, article) })
	}
	return article, nil
}

// Resubmit sends a rejected or revision article back to pending. Only its
// author may do this; both review messages are cleared.
func (s *ArticleService) Resubmit(ctx context.Context, actor *models.User, id uuid.UUID, edits *ArticleEdits) (*models.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	current, err := s.deps.Articles.Get(ctx, id)
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	if current.AuthorID != actor.ID || !s.deps.allowed(actor, auth.ObjArticle, auth.ActResubmit) {
		return nil, apperr.Authorization("only the author can resubmit this article")
	}
	if !current.Status.CanTransitionTo(models.StatusPending) {
		return nil, apperr.InvalidTransition("cannot resubmit an article that is %s", current.Status)
	}

	fields := map[string]any{}
	if edits != nil {
		if err := s.validate.Struct(edits); err != nil {
			return nil, validationError(err)
		}
		fields = edits.columns()
	}
	fields["revision_message"] = ""
	fields["rejection_message"] = ""

	article, err := s.deps.Articles.Transition(ctx, id, store.Transition{
		From:   models.SourcesOf(models.StatusPending),
		To:     models.StatusPending,
		Fields: fields,
	})
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	s.log.Info("article resubmitted", zap.Stringer("article", id))
	return article, nil
}

// Edit changes article fields without touching status.
func (s *ArticleService) Edit(ctx context.Context, actor *models.User, id uuid.UUID, edits ArticleEdits) (*models.Article, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjArticle, auth.ActEdit) {
		return nil, apperr.Authorization("only admins can edit articles")
	}
	if err := s.validate.Struct(edits); err != nil {
		return nil, validationError(err)
	}
	article, err := s.deps.Articles.Update(ctx, id, edits.columns())
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	if article.Status == models.StatusPublished {
		if err := s.deps.Feed.Invalidate(ctx); err != nil {
			s.log.Warn("feed cache invalidation failed", zap.Error(err))
		}
	}
	return article, nil
}

func (s *ArticleService) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !s.deps.allowed(actor, auth.ObjArticle, auth.ActDelete) {
		return apperr.Authorization("only admins can delete articles")
	}
	if err := s.deps.Articles.Delete(ctx, id); err != nil {
		return fromStore(s.log, err, "article")
	}
	if err := s.deps.Feed.Invalidate(ctx); err != nil {
		s.log.Warn("feed cache invalidation failed", zap.Error(err))
	}
	s.log.Info("article deleted", zap.Stringer("article", id), zap.Stringer("by", actor.ID))
	return nil
}

// List never fails on bad paging input. Anonymous readers and users only
// see published articles unless they list their own.
func (s *ArticleService) List(ctx context.Context, viewer *models.User, q ListQuery) (*ArticlePage, error) {
	page := store.NewPage(q.Page, q.PageSize)
	empty := &ArticlePage{Articles: []models.Article{}, Pagination: store.NewPagination(page, 0, 0)}

	f := store.ArticleFilter{
		Search:    q.Search,
		Category:  strings.TrimSpace(q.Category),
		College:   strings.TrimSpace(q.College),
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
		Page:      page,
	}

	if q.Author != "" {
		authorID, err := uuid.Parse(q.Author)
		if err != nil {
			return empty, nil
		}
		f.AuthorID = &authorID
	}

	var requested models.ArticleStatus
	if q.Status != "" {
		st, err := models.ParseArticleStatus(q.Status)
		if err != nil {
			return empty, nil
		}
		requested = st
	}

	ownList := viewer != nil && f.AuthorID != nil && *f.AuthorID == viewer.ID
	privileged := s.deps.allowed(viewer, auth.ObjArticle, auth.ActListAny) || ownList
	switch {
	case requested != "":
		if !privileged && requested != models.StatusPublished {
			return empty, nil
		}
		f.Statuses = []models.ArticleStatus{requested}
	case !privileged:
		f.Statuses = []models.ArticleStatus{models.StatusPublished}
	}

	articles, total, err := s.deps.Articles.List(ctx, f)
	if err != nil {
		return nil, fromStore(s.log, err, "articles")
	}
	if articles == nil {
		articles = []models.Article{}
	}
	return &ArticlePage{
		Articles:   articles,
		Total:      total,
		Pagination: store.NewPagination(page, len(articles), total),
	}, nil
}

// Get returns an article with its first page of comments and counts a
// view. Unpublished articles are only visible to admins and the author.
func (s *ArticleService) Get(ctx context.Context, viewer *models.User, id uuid.UUID) (*ArticleDetail, error) {
	article, err := s.visible(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	if article.Status == models.StatusPublished {
		if err := s.deps.Articles.IncrementViews(ctx, id); err != nil {
			s.log.Warn("view count not updated", zap.Stringer("article", id), zap.Error(err))
		} else {
			article.Views++
		}
	}

	comments, total, err := s.deps.Comments.ListByArticle(ctx, id, store.NewPage(1, store.DefaultPageSize))
	if err != nil {
		return nil, fromStore(s.log, err, "comments")
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return &ArticleDetail{Article: article, Comments: comments, Total: total}, nil
}

func (s *ArticleService) visible(ctx context.Context, viewer *models.User, id uuid.UUID) (*models.Article, error) {
	return s.deps.visibleArticle(ctx, s.log, viewer, id)
}

// ToggleLike only accepts published articles; the status is re-checked
// under the row lock in the store.
func (s *ArticleService) ToggleLike(ctx context.Context, actor *models.User, id uuid.UUID) (*LikeState, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.deps.allowed(actor, auth.ObjArticle, auth.ActLike) {
		return nil, apperr.Authorization("not allowed to like articles")
	}
	res, err := s.deps.Articles.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		return nil, fromStore(s.log, err, "article")
	}
	return &LikeState{Liked: res.Liked, LikeCount: res.LikeCount, Likes: res.Likes}, nil
}

func contentBlank(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || !json.Valid(trimmed) {
		return true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func validContent(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	return ok && !contentBlank(raw)
}
