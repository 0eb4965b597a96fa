package tools

// Definition describes a tool to a language model as a JSON Schema object.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": desc}
}

// Definitions returns the five tools in a fixed order.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        NameSearchDocuments,
			Description: "Search for relevant documents in the vector store based on a query",
			Parameters: object([]string{"query"}, map[string]interface{}{
				"query": prop("string", "The search query string"),
				"n_results": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return (default: 5)",
					"default":     DefaultNResults,
				},
			}),
		},
		{
			Name:        NameAddDocument,
			Description: "Add a document to the vector store",
			Parameters: object([]string{"content"}, map[string]interface{}{
				"content": prop("string", "The document content to add"),
				"title":   prop("string", "Optional title for the document"),
				"source":  prop("string", "Optional source information"),
			}),
		},
		{
			Name:        NameAddFile,
			Description: "Add a file's content to the vector store",
			Parameters: object([]string{"file_path"}, map[string]interface{}{
				"file_path": prop("string", "Path to the file to add"),
				"title":     prop("string", "Optional title for the document (defaults to the file name)"),
			}),
		},
		{
			Name:        NameGetCollectionInfo,
			Description: "Get information about the vector store collection",
			Parameters:  object(nil, map[string]interface{}{}),
		},
		{
			Name:        NameDeleteDocument,
			Description: "Delete a document and all of its chunks from the vector store",
			Parameters: object([]string{"document_id"}, map[string]interface{}{
				"document_id": prop("string", "The ID of the document to delete"),
			}),
		},
	}
}
