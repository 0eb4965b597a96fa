// Package cli provides the interactive chat session and output helpers for ragchat.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/search"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// searchOutput is the JSON form of a search, matching the search_documents payload.
type searchOutput struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
	Count   int                   `json:"count"`
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, query string, results []models.SearchResult, format SearchOutputFormat) error {
	if results == nil {
		results = []models.SearchResult{}
	}
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(searchOutput{Query: query, Results: results, Count: len(results)})
	default:
		writeSearchResultsText(w, results)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, results []models.SearchResult) {
	fmt.Fprintf(w, "\nFound %d results:\n", len(results))
	for i, result := range results {
		writeOneResult(w, i+1, result)
	}
}

func writeOneResult(w io.Writer, n int, result models.SearchResult) {
	fmt.Fprintf(w, "\n--- Result %d ---\n", n)
	fmt.Fprintf(w, "Content: %s\n", search.Preview(result.Content, search.PreviewLength))
	fmt.Fprintf(w, "Distance: %.4f\n", result.Distance)
	if len(result.Metadata) > 0 {
		fmt.Fprintf(w, "Metadata: %s\n", FormatMetadata(result.Metadata))
	}
}

// FormatMetadata renders metadata as sorted key=value pairs.
func FormatMetadata(m models.Metadata) string {
	keys := m.Keys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, ", ")
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
