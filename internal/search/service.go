package search

import (
	"context"
	"log"
	"strings"

	"crewops/api/internal/catalog"
	"crewops/api/internal/store"
)

// overrideSearcher is the slice of the data store the fallback path needs.
type overrideSearcher interface {
	SearchOverrides(ctx context.Context, query string, limit int) ([]store.SectionOverride, error)
}

// Service is the facade that tries Meilisearch first and falls back to a
// combined catalog scan plus Postgres ILIKE query.
type Service struct {
	meili     *Meili
	overrides overrideSearcher
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, overrides overrideSearcher) *Service {
	return &Service{meili: meili, overrides: overrides}
}

// Search tries Meilisearch if healthy, otherwise falls back.
func (s *Service) Search(ctx context.Context, q Query) Response {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	q.Text = text

	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	return s.fallback(ctx, q)
}

// fallback scans the compiled-in catalog in memory and the override table via
// ILIKE. Overrides shadow catalog hits for the same section key.
func (s *Service) fallback(ctx context.Context, q Query) Response {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	results := make([]Result, 0)
	seen := make(map[string]bool)

	if s.overrides != nil {
		rows, err := s.overrides.SearchOverrides(ctx, q.Text, limit)
		if err != nil {
			log.Printf("search: override fallback: %v", err)
		} else {
			for _, row := range rows {
				if q.FilterActivity != "" && row.Activity != q.FilterActivity {
					continue
				}
				id := RecordID(row.Activity, row.SectionKey)
				seen[id] = true
				results = append(results, Result{
					ID:       id,
					Activity: row.Activity,
					Key:      row.SectionKey,
					Title:    row.Title,
					Snippet:  snippet(row.Body),
					Category: row.Category,
				})
			}
		}
	}

	needle := strings.ToLower(q.Text)
	for _, activity := range catalog.Activities() {
		if q.FilterActivity != "" && activity.ID != q.FilterActivity {
			continue
		}
		for _, t := range catalog.Defaults(activity.ID) {
			id := RecordID(t.Activity, t.Key)
			if seen[id] {
				continue
			}
			if !strings.Contains(strings.ToLower(t.Title), needle) && !strings.Contains(strings.ToLower(t.Body), needle) {
				continue
			}
			results = append(results, Result{
				ID:        id,
				Activity:  t.Activity,
				Key:       t.Key,
				Title:     t.Title,
				Snippet:   snippet(t.Body),
				Category:  t.Category,
				IsDefault: true,
			})
		}
	}

	total := len(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return Response{Results: results, Total: total, Query: q.Text}
}

// IndexSection indexes a section (fire-and-forget to Meilisearch).
func (s *Service) IndexSection(record SectionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexSection(record); err != nil {
			log.Printf("search: index section %s: %v", record.ID, err)
		}
	}()
}

// DeleteSection removes a section from the index (fire-and-forget).
func (s *Service) DeleteSection(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteSection(id); err != nil {
			log.Printf("search: delete section %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the whole catalog plus every override into Meilisearch.
// Called once at startup when Meilisearch is healthy.
func (s *Service) ReindexAll(records []SectionRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexSections(records); err != nil {
		log.Printf("search: reindex sections: %v", err)
	}
}

func snippet(body string) string {
	const maxLen = 140
	body = strings.TrimSpace(body)
	if len(body) <= maxLen {
		return body
	}
	return strings.TrimSpace(body[:maxLen]) + "…"
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
