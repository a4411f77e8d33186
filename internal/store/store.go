// Package store holds the gorm repositories. Every mutation that touches
// more than one row runs inside a single transaction.
package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrStale     = errors.New("record changed concurrently")
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

type Page struct {
	Number int
	Size   int
}

// NewPage clamps out-of-range input instead of rejecting it.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	CurrentCount int   `json:"currentCount"`
	TotalCount   int64 `json:"totalCount"`
	HasNext      bool  `json:"hasNext"`
	HasPrev      bool  `json:"hasPrev"`
}

func NewPagination(p Page, count int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(p.Size)))
	return Pagination{
		CurrentPage:  p.Number,
		TotalPages:   totalPages,
		CurrentCount: count,
		TotalCount:   total,
		HasNext:      p.Number < totalPages,
		HasPrev:      p.Number > 1,
	}
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
