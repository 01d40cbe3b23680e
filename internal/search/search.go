// Package search provides full-text search over guide sections, trying
// Meilisearch first and falling back to a Postgres/catalog scan.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Activity  string `json:"activity"`
	Key       string `json:"key"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Category  string `json:"category"`
	IsDefault bool   `json:"isDefault"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterActivity string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// SectionRecord is the data we index for a guide section.
type SectionRecord struct {
	ID        string `json:"id"`
	Activity  string `json:"activity"`
	Key       string `json:"key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Category  string `json:"category"`
	IsDefault bool   `json:"isDefault"`
}

// RecordID builds the index primary key for a section. Meilisearch primary
// keys only allow [a-zA-Z0-9_-], which activity ids and section keys satisfy.
func RecordID(activity, key string) string {
	return activity + "--" + key
}
