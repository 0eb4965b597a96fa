// Package extract turns files into plain text for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type extractFunc func(content []byte) (string, error)

// Extractor extracts text from files by extension. Files with an unknown
// extension are read as UTF-8 text.
type Extractor struct {
	byExt map[string]extractFunc
}

// NewExtractor returns an Extractor for PDF, DOCX, XLSX and plain text.
func NewExtractor() *Extractor {
	return &Extractor{byExt: map[string]extractFunc{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".xlsx": extractExcel,
		".xlsm": extractExcel,
	}}
}

// Extract reads path and returns its text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content according to ext (with leading dot).
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	if fn, ok := e.byExt[strings.ToLower(ext)]; ok {
		return fn(content)
	}
	return extractPlain(content)
}

// Binary reports whether ext is handled by a format-specific extractor.
func (e *Extractor) Binary(ext string) bool {
	_, ok := e.byExt[strings.ToLower(ext)]
	return ok
}
