// Package domain contains the on-chain Nouns entities and pagination types.
package domain

import (
	"fmt"

	"github.com/nouns-dao/nouns-onchain/internal/apperror"
)

// PageRequest selects the items [Cursor, Cursor+Limit).
type PageRequest struct {
	Limit  int `json:"limit"`
	Cursor int `json:"cursor"`
}

// FirstPage returns a request for the first limit items.
func FirstPage(limit int) PageRequest {
	return PageRequest{Limit: limit}
}

// Validate rejects non-positive limits and negative cursors.
func (r PageRequest) Validate() error {
	if r.Limit <= 0 {
		return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("limit must be positive, got %d", r.Limit))
	}
	if r.Cursor < 0 {
		return apperror.Validation(apperror.CodeInvalidInput, fmt.Sprintf("cursor must be non-negative, got %d", r.Cursor))
	}
	return nil
}

// Page is an ordered slice of results plus whether more may follow.
// A page holding exactly Limit items reports HasNext; a short page is the last one.
type Page[T any] struct {
	Items   []T  `json:"items"`
	HasNext bool `json:"hasNext"`
	Cursor  int  `json:"cursor"`
	Limit   int  `json:"limit"`
}

// NewPage wraps items fetched for req.
func NewPage[T any](items []T, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		HasNext: req.Limit > 0 && len(items) >= req.Limit,
		Cursor:  req.Cursor,
		Limit:   req.Limit,
	}
}

// NextCursor is the offset of the item following this page.
func (p Page[T]) NextCursor() int {
	return p.Cursor + len(p.Items)
}

// Next returns the request for the following page. Callers must check HasNext first.
func (p Page[T]) Next() PageRequest {
	return PageRequest{Limit: p.Limit, Cursor: p.NextCursor()}
}

// First returns the first item, if any.
func (p Page[T]) First() (T, bool) {
	if len(p.Items) == 0 {
		var zero T
		return zero, false
	}
	return p.Items[0], true
}

// Len returns the number of items.
func (p Page[T]) Len() int {
	return len(p.Items)
}
