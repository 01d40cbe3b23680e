package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"crewops/api/internal/store"
)

type fakeOverrideSearcher struct {
	rows []store.SectionOverride
	err  error
}

func (f *fakeOverrideSearcher) SearchOverrides(context.Context, string, int) ([]store.SectionOverride, error) {
	return f.rows, f.err
}

func TestFallbackFindsCatalogContent(t *testing.T) {
	svc := NewService(nil, &fakeOverrideSearcher{})

	response := svc.Search(context.Background(), Query{Text: "lashing"})
	if response.Total == 0 {
		t.Fatal("expected catalog hits for lashing")
	}
	for _, result := range response.Results {
		if !result.IsDefault {
			t.Fatalf("catalog-only search returned non-default hit: %+v", result)
		}
	}
}

func TestFallbackOverridesShadowCatalogHits(t *testing.T) {
	svc := NewService(nil, &fakeOverrideSearcher{
		rows: []store.SectionOverride{
			{ID: "sec-1", Activity: "raft-building", SectionKey: "build", Title: "Build Phase (lashing demo)", Body: "Square lashing demo first.", Category: "during", UpdatedAt: time.Now()},
		},
	})

	response := svc.Search(context.Background(), Query{Text: "lashing"})
	overrideHits := 0
	for _, result := range response.Results {
		if result.ID == RecordID("raft-building", "build") {
			overrideHits++
			if result.IsDefault {
				t.Fatalf("override hit flagged as default: %+v", result)
			}
		}
	}
	if overrideHits != 1 {
		t.Fatalf("expected the override to shadow the catalog row exactly once, got %d hits", overrideHits)
	}
}

func TestFallbackActivityFilter(t *testing.T) {
	svc := NewService(nil, &fakeOverrideSearcher{})

	response := svc.Search(context.Background(), Query{Text: "briefing", FilterActivity: "high-ropes"})
	for _, result := range response.Results {
		if result.Activity != "high-ropes" {
			t.Fatalf("filter leaked activity %s", result.Activity)
		}
	}
}

func TestFallbackSurvivesStoreError(t *testing.T) {
	svc := NewService(nil, &fakeOverrideSearcher{err: errors.New("connection refused")})

	response := svc.Search(context.Background(), Query{Text: "lashing"})
	if response.Total == 0 {
		t.Fatal("catalog scan should still produce hits when the store is down")
	}
}

func TestSearchBlankQuery(t *testing.T) {
	svc := NewService(nil, &fakeOverrideSearcher{})
	response := svc.Search(context.Background(), Query{Text: "   "})
	if response.Total != 0 || len(response.Results) != 0 {
		t.Fatalf("blank query must return nothing: %+v", response)
	}
}

func TestRecordID(t *testing.T) {
	if got := RecordID("raft-building", "kit"); got != "raft-building--kit" {
		t.Fatalf("RecordID = %q", got)
	}
}
