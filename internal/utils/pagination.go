package utils

import (
	"strconv"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Page is a validated page request
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PaginationResponse represents pagination response metadata
type PaginationResponse struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// ParsePage parses the page and page_size query values. Missing or invalid
// values fall back to the first page of defaultPageSize rows.
func ParsePage(pageStr, pageSizeStr string) Page {
	p := Page{Number: 1, Size: defaultPageSize}
	if n, err := strconv.Atoi(pageStr); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(pageSizeStr); err == nil && n > 0 {
		p.Size = min(n, maxPageSize)
	}
	return p
}

// Paginate builds the response metadata of page p over total rows
func Paginate(total int64, p Page) PaginationResponse {
	totalPages := int((total + int64(p.Size) - 1) / int64(p.Size))
	if totalPages == 0 {
		totalPages = 1
	}
	return PaginationResponse{
		Total:       total,
		Page:        p.Number,
		PageSize:    p.Size,
		TotalPages:  totalPages,
		HasNext:     p.Number < totalPages,
		HasPrevious: p.Number > 1,
	}
}
