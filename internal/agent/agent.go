// Package agent runs a conversation turn in which the model may call tools
// before giving its answer.
package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hyperjump/ragchat/internal/llm"
	"github.com/hyperjump/ragchat/internal/tools"
	"go.uber.org/zap"
)

// NoResponse is returned when the model gives no usable first response.
const NoResponse = "I'm sorry, I couldn't process your request."

// DefaultSystemPrompt tells the model which tools it has and when to use them.
const DefaultSystemPrompt = `You are a helpful AI assistant with access to a vector database through tools.
You can search for documents, add new documents, and manage the knowledge base.

Available tools:
- search_documents: Search for relevant documents in the vector store
- add_document: Add new document content to the vector store
- add_file: Add a file's content to the vector store
- get_collection_info: Get information about the vector store
- delete_document: Delete a document from the vector store

Use these tools to help answer user questions by:
1. First searching for relevant information when users ask questions
2. Adding documents when users want to store information
3. Providing informed responses based on the retrieved context

Be helpful and use the tools appropriately to provide the best possible assistance.`

// Completer is a chat completion backend.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error)
}

// ToolRunner executes a named tool.
type ToolRunner interface {
	Run(ctx context.Context, name string, args json.RawMessage) tools.Result
}

// Agent answers user messages, executing tool calls requested by the model.
type Agent struct {
	completer    Completer
	runner       ToolRunner
	tools        []llm.Tool
	systemPrompt string
	logger       *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(p string) Option {
	return func(a *Agent) { a.systemPrompt = p }
}

// New creates an agent offering every tool in tools.Definitions.
func New(completer Completer, runner ToolRunner, opts ...Option) *Agent {
	a := &Agent{
		completer:    completer,
		runner:       runner,
		systemPrompt: DefaultSystemPrompt,
		logger:       zap.NewNop(),
	}
	for _, d := range tools.Definitions() {
		a.tools = append(a.tools, llm.NewFunctionTool(d.Name, d.Description, d.Parameters))
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chat answers userMessage given the prior history. Tool calls in the first
// response are executed in order, then one follow-up completion without tools
// produces the answer. If that follow-up fails, the raw tool results are returned.
// Chat never fails; model errors degrade to fixed messages.
func (a *Agent) Chat(ctx context.Context, history []llm.Message, userMessage string) string {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	resp, err := a.completer.Complete(ctx, messages, a.tools)
	if err != nil {
		a.logger.Warn("chat completion failed", zap.Error(err))
		return NoResponse
	}
	msg := resp.FirstMessage()
	if msg == nil {
		return NoResponse
	}
	if len(msg.ToolCalls) == 0 {
		return StripReasoning(msg.Content)
	}

	outputs := make([]string, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		result := a.runner.Run(ctx, call.Function.Name, call.Function.RawArguments())
		out := result.JSON()
		a.logger.Debug("tool executed",
			zap.String("tool", call.Function.Name),
			zap.Bool("success", result.Success))
		outputs = append(outputs, "Tool: "+call.Function.Name+"\nResult: "+out)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
			llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: out},
		)
	}

	final, err := a.completer.Complete(ctx, messages, nil)
	if err != nil {
		a.logger.Warn("follow-up completion failed", zap.Error(err))
	}
	if fm := final.FirstMessage(); err == nil && fm != nil {
		if answer := StripReasoning(fm.Content); answer != "" {
			return answer
		}
	}
	return "Tool executed successfully:\n\n" + strings.Join(outputs, "\n\n")
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks emitted by reasoning models
// and trims the remainder.
func StripReasoning(content string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
}
