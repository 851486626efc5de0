package option

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/menuvia/menuvia/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option mutates a gorm statement before execution.
type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type paginationOption struct {
	page pagination.Pagination
}

// ApplyPagination applies cursor pagination over (created_at, id)
// descending. Malformed tokens are ignored and yield the first page.
func ApplyPagination(page pagination.Pagination) Option {
	return paginationOption{page: page}
}

func (o paginationOption) Apply(stmt *gorm.DB) *gorm.DB {
	size := o.page.PageSize
	if size <= 0 {
		size = 10
	}

	if o.page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(o.page.PageToken)
		if err == nil && cursor.CreatedAt != "" {
			if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
				if id, idErr := snowflake.ParseString(cursor.ID); idErr == nil {
					stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
				} else {
					stmt = stmt.Where("created_at < ?", createdAt)
				}
			}
		}
	}

	// Fetch one extra row so the caller can detect another page.
	return stmt.Limit(size + 1)
}
