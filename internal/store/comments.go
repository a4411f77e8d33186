package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pubshark/backend/internal/models"
)

type CommentStore struct {
	db *gorm.DB
}

func NewCommentStore(db *gorm.DB) *CommentStore {
	return &CommentStore{db: db}
}

func (s *CommentStore) Create(ctx context.Context, comment *models.Comment) error {
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return translate(err)
	}
	comment.Likes, comment.Dislikes = []uuid.UUID{}, []uuid.UUID{}
	return translate(s.db.WithContext(ctx).First(&comment.User, "id = ?", comment.UserID).Error)
}

func (s *CommentStore) Get(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *CommentStore) get(db *gorm.DB, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := db.Preload("User").First(&comment, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	if err := loadReactions(db, []*models.Comment{&comment}); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (s *CommentStore) ListByArticle(ctx context.Context, articleID uuid.UUID, page Page) ([]models.Comment, int64, error) {
	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.Comment{}).Where("post_id = ?", articleID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := db.Preload("User").
		Where("post_id = ?", articleID).
		Order("created_at DESC").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&comments).Error
	if err != nil {
		return nil, 0, err
	}

	ptrs := make([]*models.Comment, len(comments))
	for i := range comments {
		ptrs[i] = &comments[i]
	}
	if err := loadReactions(db, ptrs); err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (s *CommentStore) UpdateText(ctx context.Context, id uuid.UUID, text string, editedAt time.Time) (*models.Comment, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Comment{}).Where("id = ?", id).Updates(map[string]any{
		"comment":   text,
		"is_edited": true,
		"edited_at": editedAt,
	})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.get(db, id)
}

func (s *CommentStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", id).Delete(&models.CommentReaction{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// React applies one user's reaction: the same kind again removes it, the
// opposite kind replaces it.
func (s *CommentStore) React(ctx context.Context, commentID, userID uuid.UUID, kind models.ReactionKind) (*models.Comment, error) {
	var out *models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&locked, "id = ?", commentID).Error; err != nil {
			return translate(err)
		}

		var existing models.CommentReaction
		err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).First(&existing).Error
		switch {
		case err == nil && existing.Kind == kind:
			if err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
				Delete(&models.CommentReaction{}).Error; err != nil {
				return err
			}
		case err == nil:
			if err := tx.Model(&models.CommentReaction{}).
				Where("comment_id = ? AND user_id = ?", commentID, userID).
				Update("kind", string(kind)).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.CommentReaction{CommentID: commentID, UserID: userID, Kind: kind}).Error; err != nil {
				return translate(err)
			}
		default:
			return err
		}

		c, err := s.get(tx, commentID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadReactions(db *gorm.DB, comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(comments))
	byID := make(map[uuid.UUID]*models.Comment, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		byID[c.ID] = c
		c.Likes, c.Dislikes = []uuid.UUID{}, []uuid.UUID{}
	}

	var reactions []models.CommentReaction
	if err := db.Where("comment_id IN ?", ids).Order("created_at").Find(&reactions).Error; err != nil {
		return err
	}
	for _, r := range reactions {
		c, ok := byID[r.CommentID]
		if !ok {
			continue
		}
		if r.Kind == models.ReactionLike {
			c.Likes = append(c.Likes, r.UserID)
		} else {
			c.Dislikes = append(c.Dislikes, r.UserID)
		}
	}
	return nil
}
