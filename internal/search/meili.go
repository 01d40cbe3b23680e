package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxSections = "crewops_sections"

// Meili indexes and searches guide sections via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the section index.
// The client starts unhealthy if the initial connection fails; a background
// loop keeps probing so a late-starting Meilisearch is picked up.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxSections,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxSections, err)
	}

	index := m.client.Index(idxSections)
	filterable := []interface{}{"activity", "category", "isDefault"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxSections, err)
	}
	searchable := []string{"title", "body"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxSections, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the section index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.FilterActivity != "" {
		sr.Filter = []string{fmt.Sprintf("activity = %q", q.FilterActivity)}
	}

	resp, err := m.client.Index(idxSections).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	var isDefault bool
	if raw, ok := hit["isDefault"]; ok {
		_ = json.Unmarshal(raw, &isDefault)
	}
	return Result{
		ID:        decodeString(hit, "id"),
		Activity:  decodeString(hit, "activity"),
		Key:       decodeString(hit, "key"),
		Title:     firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title")),
		Snippet:   firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body")),
		Category:  decodeString(hit, "category"),
		IsDefault: isDefault,
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexSection adds or updates one section in the index.
func (m *Meili) IndexSection(record SectionRecord) error {
	_, err := m.client.Index(idxSections).AddDocuments([]SectionRecord{record}, nil)
	return err
}

// IndexSections bulk-indexes sections.
func (m *Meili) IndexSections(records []SectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxSections).AddDocuments(records, nil)
	return err
}

// DeleteSection removes a section from the index.
func (m *Meili) DeleteSection(id string) error {
	_, err := m.client.Index(idxSections).DeleteDocument(id, nil)
	return err
}
