package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Result is one page of a listing.
type Result[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	HasMore    bool  `json:"hasMore"`
}

// Page returns limit/offset for a 1-based page number.
func Page(pageNumber, pageSize int) (limit, offset int) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	return pageSize, (pageNumber - 1) * pageSize
}

// Paginate counts the rows q matches, then loads one page of them. q must
// carry a Model and only filters; ordering and preloads are applied to the
// page query alone.
func Paginate[T any](q *gorm.DB, pageNumber, pageSize int, order string, preloads ...string) (*Result[T], error) {
	base := q.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	limit, offset := Page(pageNumber, pageSize)
	page := base.Order(order).Limit(limit).Offset(offset)
	for _, p := range preloads {
		page = page.Preload(p)
	}

	items := make([]T, 0, limit)
	if err := page.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	return &Result[T]{
		Items:      items,
		TotalCount: total,
		HasMore:    total > int64(offset+len(items)),
	}, nil
}
