package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ArticleStatus string

const (
	StatusPending   ArticleStatus = "pending"
	StatusRevision  ArticleStatus = "revision"
	StatusPublished ArticleStatus = "published"
	StatusRejected  ArticleStatus = "rejected"
)

// transitions lists every legal status move. Creation into pending is not
// a move and is handled by submission.
var transitions = map[ArticleStatus][]ArticleStatus{
	StatusPending:  {StatusPublished, StatusRejected, StatusRevision},
	StatusRejected: {StatusPending},
	StatusRevision: {StatusPending},
}

func ParseArticleStatus(s string) (ArticleStatus, error) {
	switch st := ArticleStatus(s); st {
	case StatusPending, StatusRevision, StatusPublished, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown article status %q", s)
	}
}

func (s ArticleStatus) Valid() bool {
	_, err := ParseArticleStatus(string(s))
	return err == nil
}

func (s ArticleStatus) CanTransitionTo(next ArticleStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// SourcesOf returns the statuses from which next is reachable.
func SourcesOf(next ArticleStatus) []ArticleStatus {
	var out []ArticleStatus
	for _, from := range []ArticleStatus{StatusPending, StatusRevision, StatusPublished, StatusRejected} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

// IsReviewDecision reports whether s is something an admin can decide.
func (s ArticleStatus) IsReviewDecision() bool {
	return s == StatusPublished || s == StatusRejected || s == StatusRevision
}

func (s *ArticleStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseArticleStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Article struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title            string         `gorm:"not null" json:"title"`
	Description      string         `json:"description"`
	Content          datatypes.JSON `gorm:"not null" json:"content"`
	CoverImg         string         `gorm:"not null" json:"coverImg"`
	College          string         `gorm:"index;not null" json:"college"`
	Category         string         `gorm:"index;not null" json:"category"`
	AuthorID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"authorId"`
	Author           User           `gorm:"foreignKey:AuthorID" json:"-"`
	Status           ArticleStatus  `gorm:"type:varchar(16);index;not null;default:pending;check:chk_articles_status,status IN ('pending','revision','published','rejected')" json:"status"`
	Likes            []uuid.UUID    `gorm:"-" json:"likes"`
	LikeCount        int            `gorm:"not null;default:0" json:"likeCount"`
	Views            int            `gorm:"not null;default:0" json:"views"`
	RevisionMessage  string         `json:"revisionMessage,omitempty"`
	RejectionMessage string         `json:"rejectionMessage,omitempty"`
	RevisionDate     *time.Time     `json:"revisionDate,omitempty"`
	RejectionDate    *time.Time     `json:"rejectionDate,omitempty"`
	ReviewedBy       *uuid.UUID     `gorm:"type:uuid" json:"reviewedBy,omitempty"`
	PublishedAt      *time.Time     `json:"publishedAt,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	return nil
}

// MarshalJSON adds the populated author summary.
func (a Article) MarshalJSON() ([]byte, error) {
	type plain Article
	likes := a.Likes
	if likes == nil {
		likes = []uuid.UUID{}
	}
	out := struct {
		plain
		Likes  []uuid.UUID  `json:"likes"`
		Author *UserSummary `json:"author,omitempty"`
	}{plain: plain(a), Likes: likes}
	if a.Author.ID != uuid.Nil {
		s := a.Author.Summary()
		out.Author = &s
	}
	return json.Marshal(out)
}

type ArticleLike struct {
	ArticleID uuid.UUID `gorm:"type:uuid;primaryKey" json:"articleId"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewRequest is left unvalidated at the binding layer so role checks run
// before input checks.
type ReviewRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
