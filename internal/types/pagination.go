package types

import "time"

// PageInfo contains pagination metadata for list responses.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPageInfo derives pagination metadata from a page/limit pair and the
// total row count.
func NewPageInfo(page, limit, totalCount int) PageInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = (totalCount + limit - 1) / limit
	}
	return PageInfo{
		Page:       page,
		Limit:      limit,
		TotalCount: totalCount,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings   []string  `json:"warnings,omitempty"`
	Pagination *PageInfo `json:"pagination,omitempty"`
}

// InvoiceListQuery captures the filter and pagination parameters for listing
// a user's invoices. Page is 1-based; Limit is clamped to [1, 100] by the
// handler before the query reaches the repository.
type InvoiceListQuery struct {
	Page     int
	Limit    int
	Status   *InvoiceStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// Offset returns the row offset implied by the page/limit pair.
func (q InvoiceListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}
