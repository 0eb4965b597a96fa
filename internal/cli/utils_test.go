package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/ragchat/internal/models"
)

func sampleResults() []models.SearchResult {
	return []models.SearchResult{
		{ID: "a_0", Content: strings.Repeat("x", 250), Distance: 0.1234, Metadata: models.Metadata{"title": "A"}},
		{ID: "b_0", Content: "short", Distance: 0.5},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "test query", sampleResults(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded struct {
		Query   string                `json:"query"`
		Results []models.SearchResult `json:"results"`
		Count   int                   `json:"count"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Query != "test query" || decoded.Count != 2 || len(decoded.Results) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Results[0].ID != "a_0" {
		t.Errorf("first result id = %q", decoded.Results[0].ID)
	}
}

func TestWriteSearchResults_JSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "q", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("expected empty results array, got %s", buf.String())
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, "q", sampleResults(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Found 2 results:",
		"--- Result 1 ---",
		"Content: " + strings.Repeat("x", 200) + "...\n",
		"Distance: 0.1234",
		"Metadata: title=A",
		"--- Result 2 ---",
		"Content: short\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "Metadata:") != 1 {
		t.Errorf("metadata line should only appear for results with metadata:\n%s", out)
	}
}

func TestFormatMetadata(t *testing.T) {
	got := FormatMetadata(models.Metadata{"b": 2, "a": "x", "c": true})
	if got != "a=x, b=2, c=true" {
		t.Errorf("FormatMetadata = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
