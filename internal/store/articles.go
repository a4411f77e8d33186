package store

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pubshark/backend/internal/models"
)

type ArticleFilter struct {
	Search    string
	Category  string
	College   string
	Statuses  []models.ArticleStatus
	AuthorID  *uuid.UUID
	SortBy    string
	SortOrder string
	Page      Page
}

var sortColumns = map[string]string{
	"createdAt": "articles.created_at",
	"title":     "articles.title",
	"likeCount": "articles.like_count",
	"views":     "articles.views",
}

// ValidSort reports whether field is a sortable article field.
func ValidSort(field string) bool {
	_, ok := sortColumns[field]
	return ok
}

// Transition describes a guarded status move. The update only applies when
// the row is still in one of From; otherwise ErrStale.
type Transition struct {
	From   []models.ArticleStatus
	To     models.ArticleStatus
	Fields map[string]any
	// Notification, when set, is inserted in the same transaction. A second
	// notification for the same article is silently skipped.
	Notification *models.Notification
}

type LikeResult struct {
	Liked     bool
	LikeCount int
	Likes     []uuid.UUID
}

type ArticleStore struct {
	db *gorm.DB
}

func NewArticleStore(db *gorm.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

func (s *ArticleStore) Create(ctx context.Context, article *models.Article) error {
	if err := s.db.WithContext(ctx).Create(article).Error; err != nil {
		return translate(err)
	}
	return translate(s.db.WithContext(ctx).First(&article.Author, "id = ?", article.AuthorID).Error)
}

func (s *ArticleStore) Get(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *ArticleStore) get(db *gorm.DB, id uuid.UUID) (*models.Article, error) {
	var article models.Article
	if err := db.Preload("Author").First(&article, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	list := []*models.Article{&article}
	if err := loadLikes(db, list); err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *ArticleStore) List(ctx context.Context, f ArticleFilter) ([]models.Article, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Article{})

	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.Where("(articles.title ILIKE ? OR articles.content::text ILIKE ?)", pattern, pattern)
	}
	if f.Category != "" {
		q = q.Where("articles.category = ?", f.Category)
	}
	if f.College != "" {
		q = q.Where("articles.college = ?", f.College)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("articles.status IN ?", toStrings(f.Statuses))
	}
	if f.AuthorID != nil {
		q = q.Where("articles.author_id = ?", *f.AuthorID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns["createdAt"]
	}
	desc := !strings.EqualFold(f.SortOrder, "asc")

	var articles []models.Article
	err := q.Preload("Author").
		Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: desc}).
		Order("articles.id").
		Offset(f.Page.Offset()).Limit(f.Page.Size).
		Find(&articles).Error
	if err != nil {
		return nil, 0, err
	}

	ptrs := make([]*models.Article, len(articles))
	for i := range articles {
		ptrs[i] = &articles[i]
	}
	if err := loadLikes(s.db.WithContext(ctx), ptrs); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

// Update writes plain field edits. Status is never touched here.
func (s *ArticleStore) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.Article, error) {
	delete(fields, "status")
	db := s.db.WithContext(ctx)
	if len(fields) > 0 {
		res := db.Model(&models.Article{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.get(db, id)
}

func (s *ArticleStore) Transition(ctx context.Context, id uuid.UUID, t Transition) (*models.Article, error) {
	var out *models.Article
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Article
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").First(&current, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if !slices.Contains(t.From, current.Status) {
			return ErrStale
		}

		updates := map[string]any{"status": string(t.To)}
		for k, v := range t.Fields {
			updates[k] = v
		}
		res := tx.Model(&models.Article{}).
			Where("id = ? AND status IN ?", id, toStrings(t.From)).
			Updates(updates)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		if t.Notification != nil {
			t.Notification.ArticleID = id
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "article_id"}},
				DoNothing: true,
			}).Create(t.Notification).Error
			if err != nil {
				return translate(err)
			}
		}

		a, err := s.get(tx, id)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ArticleStore) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

// ToggleLike adds or removes userID from the like set and recomputes
// like_count from the set before committing. Only published articles can
// be liked; anything else reports ErrNotFound.
func (s *ArticleStore) ToggleLike(ctx context.Context, articleID, userID uuid.UUID) (*LikeResult, error) {
	out := &LikeResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Article
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status").First(&locked, "id = ?", articleID).Error; err != nil {
			return translate(err)
		}
		if locked.Status != models.StatusPublished {
			return ErrNotFound
		}

		res := tx.Where("article_id = ? AND user_id = ?", articleID, userID).Delete(&models.ArticleLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.ArticleLike{ArticleID: articleID, UserID: userID}).Error; err != nil {
				return translate(err)
			}
			out.Liked = true
		}

		err := tx.Model(&models.Article{}).Where("id = ?", articleID).
			UpdateColumn("like_count", gorm.Expr("(SELECT COUNT(*) FROM article_likes WHERE article_id = ?)", articleID)).Error
		if err != nil {
			return err
		}

		if err := tx.Model(&models.ArticleLike{}).
			Where("article_id = ?", articleID).
			Order("created_at").
			Pluck("user_id", &out.Likes).Error; err != nil {
			return err
		}
		out.LikeCount = len(out.Likes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Likes == nil {
		out.Likes = []uuid.UUID{}
	}
	return out, nil
}

// Delete removes the article and everything hanging off it.
func (s *ArticleStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comments := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", comments).Delete(&models.CommentReaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.ArticleLike{}).Error; err != nil {
			return err
		}
		notifications := tx.Model(&models.Notification{}).Select("id").Where("article_id = ?", id)
		if err := tx.Where("notification_id IN (?)", notifications).Delete(&models.NotificationReceipt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Article{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func loadLikes(db *gorm.DB, articles []*models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(articles))
	byID := make(map[uuid.UUID]*models.Article, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
		byID[a.ID] = a
		a.Likes = []uuid.UUID{}
	}

	var likes []models.ArticleLike
	if err := db.Where("article_id IN ?", ids).Order("created_at").Find(&likes).Error; err != nil {
		return err
	}
	for _, l := range likes {
		if a, ok := byID[l.ArticleID]; ok {
			a.Likes = append(a.Likes, l.UserID)
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
