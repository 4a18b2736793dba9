package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
	searchdomain "github.com/quotaapp/searchd/internal/search/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Quota quotadomain.Service
}

type Service struct {
	log   *zap.Logger
	quota quotadomain.Service
}

func NewService(p ServiceParam) searchdomain.Service {
	return &Service{
		log:   p.Log.Named("search.service"),
		quota: p.Quota,
	}
}

func (s *Service) Search(ctx context.Context, req searchdomain.SearchRequest) (searchdomain.SearchResult, error) {
	term := strings.TrimSpace(req.Term)
	if term == "" || len(term) > searchdomain.MaxTermLength {
		return searchdomain.SearchResult{}, searchdomain.ErrInvalidTerm
	}

	usage, err := s.quota.TryConsume(ctx, quotadomain.ConsumeRequest{
		UserID:   req.UserID,
		Term:     term,
		Metadata: req.Metadata,
	})
	if err != nil {
		return searchdomain.SearchResult{}, err
	}

	return searchdomain.SearchResult{
		Items: executeSearch(term),
		Usage: usage,
	}, nil
}

// executeSearch is a deterministic placeholder backend. Results are
// derived from the term alone so handlers and tests have stable output.
func executeSearch(term string) []searchdomain.Item {
	sum := sha256.Sum256([]byte(strings.ToLower(term)))
	n := int(sum[0]%3) + 1

	items := make([]searchdomain.Item, 0, n)
	for i := 0; i < n; i++ {
		seed := binary.BigEndian.Uint16(sum[2*i+1 : 2*i+3])
		items = append(items, searchdomain.Item{
			ID:    fmt.Sprintf("doc-%04x", seed),
			Title: fmt.Sprintf("Result %d for %q", i+1, term),
			Score: 1 - float64(i)*0.1,
		})
	}
	return items
}
