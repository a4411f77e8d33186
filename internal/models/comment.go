package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Comment struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Comment   string      `gorm:"not null" json:"comment"`
	UserID    uuid.UUID   `gorm:"type:uuid;index;not null" json:"userId"`
	User      User        `gorm:"foreignKey:UserID" json:"-"`
	PostID    uuid.UUID   `gorm:"type:uuid;index;not null" json:"postId"`
	Likes     []uuid.UUID `gorm:"-" json:"likes"`
	Dislikes  []uuid.UUID `gorm:"-" json:"dislikes"`
	IsEdited  bool        `gorm:"not null;default:false" json:"isEdited"`
	EditedAt  *time.Time  `json:"editedAt,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c Comment) MarshalJSON() ([]byte, error) {
	type plain Comment
	out := struct {
		plain
		Likes    []uuid.UUID  `json:"likes"`
		Dislikes []uuid.UUID  `json:"dislikes"`
		User     *UserSummary `json:"user,omitempty"`
	}{plain: plain(c), Likes: nonNil(c.Likes), Dislikes: nonNil(c.Dislikes)}
	if c.User.ID != uuid.Nil {
		s := c.User.Summary()
		out.User = &s
	}
	return json.Marshal(out)
}

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// CommentReaction holds at most one row per user per comment, so a user is
// never in both the like and dislike sets.
type CommentReaction struct {
	CommentID uuid.UUID    `gorm:"type:uuid;primaryKey" json:"commentId"`
	UserID    uuid.UUID    `gorm:"type:uuid;primaryKey" json:"userId"`
	Kind      ReactionKind `gorm:"type:varchar(8);not null;check:chk_comment_reactions_kind,kind IN ('like','dislike')" json:"kind"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type CreateCommentRequest struct {
	Comment string `json:"comment" binding:"required"`
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
