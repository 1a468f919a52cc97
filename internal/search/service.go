package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// the SQL name search.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Fallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise falls back to SQL.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to sql: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, err := s.fallback.SearchByName(ctx, q.Text, q.Limit)
	if err != nil {
		log.Printf("search: sql fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: len(results), Query: q.Text}
}

// IndexDesign indexes a design (fire-and-forget to Meilisearch).
func (s *Service) IndexDesign(record DesignRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDesign(record); err != nil {
			log.Printf("search: index design %s: %v", record.ID, err)
		}
	}()
}

// DeleteDesign removes a design from the search index (fire-and-forget).
func (s *Service) DeleteDesign(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDesign(id); err != nil {
			log.Printf("search: delete design %s: %v", id, err)
		}
	}()
}

// ReindexAll bulk-pushes every stored design into Meilisearch. Called at
// startup when the index is reachable.
func (s *Service) ReindexAll(records []DesignRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexDesigns(records); err != nil {
		log.Printf("search: reindex designs: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
