package models

import "fmt"

// DefaultMaxContextChars bounds the total content returned by one search.
const DefaultMaxContextChars = 4000

// MaxResults caps the number of results one search may ask for.
const MaxResults = 100

// SearchRequest is a retrieval request.
type SearchRequest struct {
	Query           string `json:"query"`
	NResults        int    `json:"n_results,omitempty"`
	MaxContextChars int    `json:"max_context_chars,omitempty"`
}

// Validate rejects an empty query and fills in defaults for the limits.
func (r *SearchRequest) Validate(defaultN int) error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.NResults <= 0 {
		r.NResults = defaultN
	}
	if r.NResults > MaxResults {
		r.NResults = MaxResults
	}
	if r.MaxContextChars <= 0 {
		r.MaxContextChars = DefaultMaxContextChars
	}
	return nil
}
