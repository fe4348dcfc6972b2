// Package pagination converts page-based request parameters into
// offset/limit queries and builds page metadata for responses.
package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 15
	MaxLimit     = 100
)

// Params are page-based request parameters. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Normalize clamps the parameters into valid ranges.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Skip is the number of rows to skip for this page.
func (p Params) Skip() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// FromQuery reads "page" and "limit" from a query string, ignoring
// malformed values.
func FromQuery(q url.Values) Params {
	var p Params
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = v
	}
	return p.Normalize()
}

// Page is one page of results.
type Page[T any] struct {
	Items      []T
	Page       int
	Limit      int
	TotalCount int64
	TotalPages int
}

// NewPage builds page metadata for items fetched with p.
func NewPage[T any](items []T, p Params, total int64) *Page[T] {
	p = p.Normalize()
	pages := int(total / int64(p.Limit))
	if total%int64(p.Limit) != 0 {
		pages++
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Items:      items,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalCount: total,
		TotalPages: pages,
	}
}

// HasNext reports whether a page follows this one.
func (p *Page[T]) HasNext() bool { return p.Page < p.TotalPages }
