package mcpServer

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/akolanti/DocQA/internal/config"
	"github.com/akolanti/DocQA/internal/domain/commonModels"
	"github.com/akolanti/DocQA/internal/rag"
	"github.com/akolanti/DocQA/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const ToolAskDocument = "ask_document"

type AskArgs struct {
	Question string                             `json:"question" jsonschema:"the question to answer from the indexed document"`
	History  []commonModels.ConversationMessage `json:"history,omitempty" jsonschema:"earlier turns of the conversation, oldest first"`
}

type AskResult struct {
	Answer string `json:"answer"`
}

// New builds an MCP server whose single tool answers questions through the rag pipeline.
func New(ragService rag.Service, subject string) *mcp.Server {
	logger := logger_i.NewLogger("MCP")
	server := mcp.NewServer(&mcp.Implementation{Name: "docqa", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAskDocument,
		Description: "Answer a question about " + subject + " using only the indexed document.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args AskArgs) (*mcp.CallToolResult, AskResult, error) {
		if strings.TrimSpace(args.Question) == "" {
			return nil, AskResult{}, errors.New("question is required")
		}
		answer, err := ragService.Answer(ctx, args.Question, args.History)
		if err != nil {
			logger.WithTrace(ctx, config.TRACE_ID_KEY).Error("ask_document failed", "error", err)
			return nil, AskResult{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: answer}},
		}, AskResult{Answer: answer}, nil
	})
	return server
}

// Handler serves the server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}
