package shared

import "math"

const (
	// DefaultPerPage is the page size used when the caller sends none.
	DefaultPerPage = 15
	// MaxPerPage caps the page size of list endpoints.
	MaxPerPage = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"current_page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"last_page"`
}

// PageRequest is the normalised page selection of a list query.
type PageRequest struct {
	Page    int
	PerPage int
}

// NewPageRequest applies defaults and bounds to raw page parameters.
func NewPageRequest(page, perPage int) PageRequest {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	req := NewPageRequest(page, perPage)
	totalPages := int(math.Ceil(float64(total) / float64(req.PerPage)))
	if totalPages == 0 {
		totalPages = 1
	}
	return Pagination{Page: req.Page, PerPage: req.PerPage, Total: total, TotalPages: totalPages}
}
