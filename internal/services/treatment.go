package services

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/NavalEP/carechat-engine/internal/models"
)

// ErrStaleQuery marks a search result superseded by a newer query before it
// completed. Stale results are discarded, never rendered.
var ErrStaleQuery = errors.New("treatment query superseded")

// TreatmentSearchService debounces treatment-catalogue searches. The
// upstream calls cannot be aborted, so supersession is last-write-wins by
// request issuance order: a completion is dropped whenever a newer query has
// been issued, regardless of which completes first.
type TreatmentSearchService struct {
	api    CarePayAPI
	issued atomic.Uint64
}

// NewTreatmentSearchService creates the search service.
func NewTreatmentSearchService(api CarePayAPI) *TreatmentSearchService {
	return &TreatmentSearchService{api: api}
}

// Search runs one query. It returns ErrStaleQuery when a newer query was
// issued while this one was in flight.
func (s *TreatmentSearchService) Search(ctx context.Context, query string) ([]models.TreatmentSearchResult, error) {
	id := s.issued.Add(1)

	results, err := s.api.SearchTreatments(ctx, query)
	if err != nil {
		return nil, err
	}
	if s.issued.Load() != id {
		return nil, ErrStaleQuery
	}
	return results, nil
}
