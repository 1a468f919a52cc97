// Package search indexes saved designs for the gallery's search box.
// Meilisearch serves queries when reachable; the SQL name search is the
// fallback, so a dead index never takes the gallery down.
package search

import "context"

// DesignRecord is the data we index for a design.
type DesignRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Holder  string `json:"holder"`
	Company string `json:"company"`
	Tagline string `json:"tagline"`
	Updated int64  `json:"updated"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Snippet string `json:"snippet,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a design search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Fallback is the SQL search path used when the index is unavailable.
type Fallback interface {
	SearchByName(ctx context.Context, term string, limit int) ([]Result, error)
}
