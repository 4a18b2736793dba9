package domain

import (
	"context"
	"errors"

	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
)

// MaxTermLength bounds a single search term. Longer input is rejected
// before any quota is charged.
const MaxTermLength = 256

var ErrInvalidTerm = errors.New("invalid_term")

type SearchRequest struct {
	UserID string
	Term   string

	// Metadata is attached to the usage record, not to the search.
	Metadata map[string]any
}

type SearchResult struct {
	Items []Item               `json:"items"`
	Usage quotadomain.Snapshot `json:"usage"`
}

// Item is one search hit. The catalog behind it is a stand-in: the
// service's contract is the quota accounting around the search, not
// the ranking.
type Item struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type Service interface {
	// Search charges one query against the user's quota and, if the
	// charge is accepted, runs the search. A rejected charge returns
	// the quota error unwrapped so callers can map it.
	Search(ctx context.Context, req SearchRequest) (SearchResult, error)
}
