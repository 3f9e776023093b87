package core

import (
	"math"
	"regexp"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

var objectIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsValidID reports whether id looks like a document id (24 hex characters).
func IsValidID(id string) bool {
	return objectIDRegex.MatchString(id)
}

// Pagination is a 1-based page request. A zero Limit means no limit.
type Pagination struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

// NewPagination normalizes page & limit: page defaults to 1, limit to defLimit and is capped at MaxPageSize.
func NewPagination(page, limit, defLimit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Skip() int64 {
	if p.Page < 1 {
		return 0
	}
	return int64((p.Page - 1) * p.Limit)
}

// PageInfo is the pagination block returned alongside list results.
type PageInfo struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func (p Pagination) Info(total int64) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// Window returns the [start, end) bounds of the page within n items.
func (p Pagination) Window(n int) (int, int) {
	start := int(p.Skip())
	if start > n {
		start = n
	}
	end := start + p.Limit
	if p.Limit <= 0 || end > n {
		end = n
	}
	return start, end
}
