package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/tools"
)

// SearchInput is the input schema for search_documents.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the search query to find relevant documents"`
	NResults int    `json:"n_results,omitempty" jsonschema:"number of results to return (default 5)"`
}

// AddDocumentInput is the input schema for add_document.
type AddDocumentInput struct {
	Content  string                 `json:"content" jsonschema:"the text content to add"`
	Title    string                 `json:"title,omitempty" jsonschema:"optional title for the document"`
	Source   string                 `json:"source,omitempty" jsonschema:"optional source of the document"`
	Metadata map[string]interface{} `json:"metadata,omitempty" jsonschema:"additional scalar metadata"`
}

// AddFileInput is the input schema for add_file.
type AddFileInput struct {
	FilePath string `json:"file_path" jsonschema:"path to the file to add"`
	Title    string `json:"title,omitempty" jsonschema:"optional title, defaults to the file name"`
}

// CollectionInfoInput is the empty input of get_collection_info.
type CollectionInfoInput struct{}

// DeleteDocumentInput is the input schema for delete_document.
type DeleteDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"ID of the document to delete"`
}

func (s *Server) registerTools() {
	desc := make(map[string]string)
	for _, d := range tools.Definitions() {
		desc[d.Name] = d.Description
	}

	mcp.AddTool(s.server, &mcp.Tool{Name: tools.NameSearchDocuments, Description: desc[tools.NameSearchDocuments]}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{Name: tools.NameAddDocument, Description: desc[tools.NameAddDocument]}, s.handleAddDocument)
	mcp.AddTool(s.server, &mcp.Tool{Name: tools.NameAddFile, Description: desc[tools.NameAddFile]}, s.handleAddFile)
	mcp.AddTool(s.server, &mcp.Tool{Name: tools.NameGetCollectionInfo, Description: desc[tools.NameGetCollectionInfo]}, s.handleCollectionInfo)
	mcp.AddTool(s.server, &mcp.Tool{Name: tools.NameDeleteDocument, Description: desc[tools.NameDeleteDocument]}, s.handleDeleteDocument)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, tools.SearchDocuments{Query: in.Query, NResults: in.NResults}), nil, nil
}

func (s *Server) handleAddDocument(ctx context.Context, _ *mcp.CallToolRequest, in AddDocumentInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, tools.AddDocument{
		Content:  in.Content,
		Title:    in.Title,
		Source:   in.Source,
		Metadata: models.Metadata(in.Metadata),
	}), nil, nil
}

func (s *Server) handleAddFile(ctx context.Context, _ *mcp.CallToolRequest, in AddFileInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, tools.AddFile{FilePath: in.FilePath, Title: in.Title}), nil, nil
}

func (s *Server) handleCollectionInfo(ctx context.Context, _ *mcp.CallToolRequest, _ CollectionInfoInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, tools.GetCollectionInfo{}), nil, nil
}

func (s *Server) handleDeleteDocument(ctx context.Context, _ *mcp.CallToolRequest, in DeleteDocumentInput) (*mcp.CallToolResult, any, error) {
	return s.run(ctx, tools.DeleteDocument{DocumentID: in.DocumentID}), nil, nil
}

// run executes op and wraps the result envelope as text content. Failures are
// reported as tool errors so the client sees the message.
func (s *Server) run(ctx context.Context, op tools.Operation) *mcp.CallToolResult {
	res := s.exec.Execute(ctx, op)
	if !res.Success {
		s.logger.Debug("mcp tool failed", zap.String("tool", op.Name()), zap.String("error", res.Error))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.JSON()}},
		IsError: !res.Success,
	}
}
