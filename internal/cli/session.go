package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/hyperjump/ragchat/internal/llm"
	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/tools"
)

// DefaultHistoryLimit is the number of messages kept between turns.
const DefaultHistoryLimit = 20

// endMarker terminates multi-line content in /add.
const endMarker = "END"

const helpText = `
RAG Chatbot Commands:
---------------------
/help            - Show this help message
/add             - Add a document to the knowledge base
/addfile <path>  - Add a file to the knowledge base
/search <query>  - Search the knowledge base
/info            - Show collection information
/clear           - Clear conversation history
/quit            - Exit the chat
/exit            - Exit the chat

You can also just type your questions naturally, and the assistant will
search the knowledge base when needed and provide informed responses.
`

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// ToolRunner runs collection operations.
type ToolRunner interface {
	Execute(ctx context.Context, op tools.Operation) tools.Result
}

// Assistant answers chat messages.
type Assistant interface {
	Chat(ctx context.Context, history []llm.Message, userMessage string) string
}

// Session is an interactive chat loop over a line-oriented reader.
type Session struct {
	tools        ToolRunner
	assistant    Assistant
	in           *bufio.Scanner
	out          io.Writer
	history      []llm.Message
	historyLimit int
	logger       *zap.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHistoryLimit caps the number of history messages sent with each turn.
func WithHistoryLimit(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session reading commands from in and writing to out.
func NewSession(runner ToolRunner, assistant Assistant, in io.Reader, out io.Writer, opts ...SessionOption) *Session {
	s := &Session{
		tools:        runner,
		assistant:    assistant,
		in:           bufio.NewScanner(in),
		out:          out,
		historyLimit: DefaultHistoryLimit,
		logger:       zap.NewNop(),
	}
	s.in.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns a copy of the conversation history.
func (s *Session) History() []llm.Message {
	return append([]llm.Message(nil), s.history...)
}

// Run reads input until /quit, /exit, end of input or ctx cancellation.
func (s *Session) Run(ctx context.Context) error {
	s.banner()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, ok := s.prompt("\n" + promptStyle.Render("You:") + " ")
		if !ok {
			fmt.Fprintln(s.out, "\n\nGoodbye!")
			return s.in.Err()
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !s.command(ctx, line) {
				fmt.Fprintln(s.out, "Goodbye!")
				return nil
			}
			continue
		}
		s.chat(ctx, line)
	}
}

func (s *Session) banner() {
	fmt.Fprintln(s.out, titleStyle.Render("RAG Chatbot with MCP Tools"))
	fmt.Fprintln(s.out, strings.Repeat("=", 40))
	fmt.Fprintln(s.out, dimStyle.Render("Type '/help' for commands or ask any question!"))
	fmt.Fprintln(s.out, dimStyle.Render("Type '/quit' or '/exit' to leave"))
	fmt.Fprintln(s.out, strings.Repeat("=", 40))
}

// command handles a slash command and reports whether the session continues.
func (s *Session) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/help":
		fmt.Fprint(s.out, helpText)
	case "/add":
		s.addDocument(ctx)
	case "/addfile":
		s.addFile(ctx, arg)
	case "/search":
		s.search(ctx, arg)
	case "/info":
		s.info(ctx)
	case "/clear":
		s.history = nil
		s.success("Conversation history cleared")
	case "/quit", "/exit":
		return false
	default:
		fmt.Fprintln(s.out, "Unknown command. Type '/help' for available commands.")
	}
	return true
}

func (s *Session) chat(ctx context.Context, line string) {
	if s.assistant == nil {
		s.failure("chat is not available")
		return
	}
	answer := s.assistant.Chat(ctx, s.history, line)
	fmt.Fprintf(s.out, "\n%s %s\n", promptStyle.Render("Assistant:"), answer)

	s.history = append(s.history,
		llm.Message{Role: llm.RoleUser, Content: line},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
	if len(s.history) > s.historyLimit {
		s.history = append([]llm.Message(nil), s.history[len(s.history)-s.historyLimit:]...)
	}
}

func (s *Session) addDocument(ctx context.Context) {
	fmt.Fprintln(s.out, "\n--- Add Document ---")
	title, ok := s.prompt("Enter title (optional): ")
	if !ok {
		return
	}
	fmt.Fprintf(s.out, "Enter content (finish with a line containing only %s):\n", endMarker)
	var lines []string
	for {
		line, ok := s.readLine()
		if !ok || strings.TrimSpace(line) == endMarker {
			break
		}
		lines = append(lines, line)
	}
	content := strings.Join(lines, "\n")
	if strings.TrimSpace(content) == "" {
		s.failure("Content cannot be empty")
		return
	}
	res := s.tools.Execute(ctx, tools.AddDocument{Content: content, Title: title})
	if !res.Success {
		s.failure(res.Error)
		return
	}
	s.success(fmt.Sprintf("Document added successfully! ID: %v", res.Payload["document_id"]))
}

func (s *Session) addFile(ctx context.Context, path string) {
	fmt.Fprintln(s.out, "\n--- Add File ---")
	if path == "" {
		var ok bool
		if path, ok = s.prompt("Enter file path: "); !ok {
			return
		}
	}
	if path == "" {
		s.failure("File path cannot be empty")
		return
	}
	title, ok := s.prompt("Enter title (optional, defaults to filename): ")
	if !ok {
		return
	}
	res := s.tools.Execute(ctx, tools.AddFile{FilePath: path, Title: title})
	if !res.Success {
		s.failure(res.Error)
		return
	}
	s.success(fmt.Sprintf("File added successfully! ID: %v", res.Payload["document_id"]))
}

func (s *Session) search(ctx context.Context, query string) {
	if query == "" {
		var ok bool
		if query, ok = s.prompt("Enter search query: "); !ok {
			return
		}
	}
	if query == "" {
		s.failure("Query cannot be empty")
		return
	}
	res := s.tools.Execute(ctx, tools.SearchDocuments{Query: query})
	if !res.Success {
		s.failure(res.Error)
		return
	}
	results, _ := res.Payload["results"].([]models.SearchResult)
	writeSearchResultsText(s.out, results)
}

func (s *Session) info(ctx context.Context) {
	res := s.tools.Execute(ctx, tools.GetCollectionInfo{})
	if !res.Success {
		s.failure(res.Error)
		return
	}
	info, _ := res.Payload["collection_info"].(*models.CollectionInfo)
	if info == nil {
		s.failure("collection info unavailable")
		return
	}
	fmt.Fprintln(s.out, "\n--- Collection Info ---")
	WriteCollectionInfo(s.out, info)
}

// WriteCollectionInfo prints the collection summary.
func WriteCollectionInfo(w io.Writer, info *models.CollectionInfo) {
	fmt.Fprintf(w, "Name: %s\n", info.Name)
	fmt.Fprintf(w, "Total Chunks: %d\n", info.TotalChunks)
	if info.UniqueDocuments != nil {
		fmt.Fprintf(w, "Unique Documents: %d\n", *info.UniqueDocuments)
	} else {
		fmt.Fprintln(w, "Unique Documents: unknown")
	}
	fmt.Fprintf(w, "Chunk Size: %d\n", info.ChunkSize)
	fmt.Fprintf(w, "Chunk Overlap: %d\n", info.ChunkOverlap)
	if info.Embedder != "" {
		fmt.Fprintf(w, "Embedder: %s\n", info.Embedder)
	}
}

func (s *Session) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	line, ok := s.readLine()
	return strings.TrimSpace(line), ok
}

func (s *Session) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *Session) success(msg string) {
	fmt.Fprintln(s.out, successStyle.Render("✓ "+msg))
}

func (s *Session) failure(msg string) {
	s.logger.Debug("command failed", zap.String("error", msg))
	fmt.Fprintln(s.out, errorStyle.Render("✗ Error: "+msg))
}
