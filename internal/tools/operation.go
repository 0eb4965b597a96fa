// Package tools exposes the document store and retriever as named operations
// with uniform success/error envelopes.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperjump/ragchat/internal/models"
)

// Tool names.
const (
	NameSearchDocuments   = "search_documents"
	NameAddDocument       = "add_document"
	NameAddFile           = "add_file"
	NameGetCollectionInfo = "get_collection_info"
	NameDeleteDocument    = "delete_document"
)

// Operation is one of SearchDocuments, AddDocument, AddFile, GetCollectionInfo
// or DeleteDocument.
type Operation interface {
	Name() string
	operation()
}

// SearchDocuments searches the collection. NResults <= 0 means the default.
type SearchDocuments struct {
	Query    string
	NResults int
}

// AddDocument stores content. Title and Source are copied into Metadata when set.
type AddDocument struct {
	Content  string
	Title    string
	Source   string
	Metadata models.Metadata
}

// AddFile stores the text of a file. Title defaults to the file's base name.
type AddFile struct {
	FilePath string
	Title    string
}

// GetCollectionInfo reports collection statistics.
type GetCollectionInfo struct{}

// DeleteDocument removes all chunks of a document.
type DeleteDocument struct {
	DocumentID string
}

func (SearchDocuments) Name() string   { return NameSearchDocuments }
func (AddDocument) Name() string       { return NameAddDocument }
func (AddFile) Name() string           { return NameAddFile }
func (GetCollectionInfo) Name() string { return NameGetCollectionInfo }
func (DeleteDocument) Name() string    { return NameDeleteDocument }

func (SearchDocuments) operation()   {}
func (AddDocument) operation()       {}
func (AddFile) operation()           {}
func (GetCollectionInfo) operation() {}
func (DeleteDocument) operation()    {}

// UnknownToolError is returned by Parse for a name that is not a tool.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}

// Parse builds the operation called name from a JSON object of arguments.
// Empty or null args are treated as {}. Keys of add_document other than
// content, title and source become document metadata.
func Parse(name string, args json.RawMessage) (Operation, error) {
	fields, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	switch name {
	case NameSearchDocuments:
		n, err := intArg(fields, "n_results")
		if err != nil {
			return nil, err
		}
		return SearchDocuments{Query: stringArg(fields, "query"), NResults: n}, nil
	case NameAddDocument:
		op := AddDocument{
			Content: stringArg(fields, "content"),
			Title:   stringArg(fields, "title"),
			Source:  stringArg(fields, "source"),
		}
		for k, v := range fields {
			if k == "content" || k == "title" || k == "source" || v == nil {
				continue
			}
			if op.Metadata == nil {
				op.Metadata = models.Metadata{}
			}
			op.Metadata[k] = v
		}
		return op, nil
	case NameAddFile:
		return AddFile{FilePath: stringArg(fields, "file_path"), Title: stringArg(fields, "title")}, nil
	case NameGetCollectionInfo:
		return GetCollectionInfo{}, nil
	case NameDeleteDocument:
		return DeleteDocument{DocumentID: stringArg(fields, "document_id")}, nil
	default:
		return nil, &UnknownToolError{Name: name}
	}
}

func decodeArgs(args json.RawMessage) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	for k, v := range fields {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			fields[k] = i
		} else if f, err := n.Float64(); err == nil {
			fields[k] = f
		}
	}
	return fields, nil
}

func stringArg(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intArg(fields map[string]interface{}, key string) (int, error) {
	switch v := fields[key].(type) {
	case nil:
		return 0, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}
