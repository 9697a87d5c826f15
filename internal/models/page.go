package models

// Page is one page of a listing.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Pages int   `json:"pages"`
}

// NewPage computes the page count, never less than one.
func NewPage[T any](items []T, total int64, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 1
	if perPage > 0 && total > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Page[T]{Items: items, Total: total, Page: page, Pages: pages}
}
