// Package pagination implements the offset/limit read-side contract shared by
// every listing endpoint: a clamped query, a metadata block with a stable
// total, and a slice helper for in-memory stores.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultLimit applies when the caller omits or mangles the limit.
	DefaultLimit = 10
	// MaxLimit caps page size regardless of what the caller asks for.
	MaxLimit = 100
)

// Query is a validated offset/limit pair. Build one with FromRequest or New;
// both clamp out-of-range values instead of erroring, matching the
// fire-and-forget listing contract.
type Query struct {
	Offset int
	Limit  int
}

// New clamps offset to >= 0 and limit to [1, MaxLimit].
func New(offset, limit int) Query {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Query{Offset: offset, Limit: limit}
}

// FromRequest parses offset and limit query parameters, applying defaults for
// missing or non-numeric values.
func FromRequest(r *http.Request) Query {
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil {
		offset = 0
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = DefaultLimit
	}
	return New(offset, limit)
}

// Meta is the pagination block returned alongside each page. TotalItems is
// computed from the same snapshot as the page itself.
type Meta struct {
	CurrentPage int  `json:"currentPage"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	Limit       int  `json:"limit"`
	HasPrevious bool `json:"hasPrevious"`
	HasNext     bool `json:"hasNext"`
}

// NewMeta derives the metadata block for a query over total items.
func NewMeta(q Query, total int) Meta {
	totalPages := total / q.Limit
	if total%q.Limit != 0 {
		totalPages++
	}
	currentPage := q.Offset/q.Limit + 1
	return Meta{
		CurrentPage: currentPage,
		TotalItems:  total,
		TotalPages:  totalPages,
		Limit:       q.Limit,
		HasPrevious: q.Offset > 0,
		HasNext:     q.Offset+q.Limit < total,
	}
}

// Slice returns the page window over items. Used by in-memory stores, which
// take the window under the same lock that computed the total.
func Slice[T any](items []T, q Query) []T {
	if q.Offset >= len(items) {
		return []T{}
	}
	end := q.Offset + q.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[q.Offset:end]
}
