package crud

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Pagination bounds and defaults.
const (
	DefaultPage    = 1
	DefaultPerPage = 50
	MaxPerPage     = 1000
)

// PageParams is a validated pagination window.
type PageParams struct {
	Page    int
	PerPage int
}

// Offset returns the row offset of the window.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// ParsePageParams reads page/per_page from the query string, applying
// defaults and rejecting out-of-range values.
func ParsePageParams(values url.Values) (PageParams, error) {
	p := PageParams{Page: DefaultPage, PerPage: DefaultPerPage}

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return PageParams{}, fmt.Errorf("%w: page %q", ErrInvalidParam, raw)
		}
		p.Page = n
	}

	if raw := values.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPerPage {
			return PageParams{}, fmt.Errorf("%w: per_page %q", ErrInvalidParam, raw)
		}
		p.PerPage = n
	}

	return p, nil
}

// PaginatedResult is the list-response envelope.
type PaginatedResult struct {
	Data         []map[string]any `json:"data"`
	Page         int              `json:"page"`
	PerPage      int              `json:"per_page"`
	TotalRecords int64            `json:"total_records"`
	Pages        int64            `json:"pages"`
}

// Paginate executes the count query and the windowed query over the same
// composed predicate and assembles the envelope. The two queries run
// sequentially on the same request-scoped connection; there is no snapshot
// guarantee between them under concurrent writes.
func Paginate(ctx context.Context, exec Executor, q *SelectQuery, p PageParams) (*PaginatedResult, error) {
	total, err := exec.Count(ctx, q.CountSQL(), q.Args())
	if err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}

	sql, args := q.WindowSQL(p.PerPage, p.Offset())
	rows, err := exec.Select(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("windowed query: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}

	perPage := int64(p.PerPage)
	return &PaginatedResult{
		Data:         rows,
		Page:         p.Page,
		PerPage:      p.PerPage,
		TotalRecords: total,
		Pages:        (total + perPage - 1) / perPage,
	}, nil
}
