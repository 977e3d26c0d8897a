// Package mcp implements the Model Context Protocol server for the
// vocabulary service.
//
// The MCP server exposes the vocabulary read model and the candidate
// submission paths as tools, so MCP-compatible tagging agents can
// consult and grow the controlled vocabulary directly.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/service/expansion"
)

// Tracker records unrecognized term sightings.
type Tracker interface {
	Record(ctx context.Context, term string, category model.Category, filmType string) (model.RecordUnrecognizedResponse, error)
}

// Expander evaluates candidate terms.
type Expander interface {
	Evaluate(ctx context.Context, req expansion.Request) (expansion.Result, error)
}

// VocabularyReader serves the read-only vocabulary projection.
type VocabularyReader interface {
	VocabularyProjection(ctx context.Context, category model.Category) (*model.VocabularyResponse, error)
}

// Server wraps the MCP server with the vocabulary service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	tracker   Tracker
	expander  Expander
	vocab     VocabularyReader
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(tracker Tracker, expander Expander, vocab VocabularyReader, logger *slog.Logger) *Server {
	s := &Server{
		tracker:  tracker,
		expander: expander,
		vocab:    vocab,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"lexicon",
		"0.1.0",
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// lexicon://vocabulary — the full approved vocabulary projection.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"lexicon://vocabulary",
			"Approved Vocabulary",
			mcplib.WithResourceDescription("Every approved standard term and synonym, mapped to its standard form"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleVocabularyResource,
	)
}

func (s *Server) handleVocabularyResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	resp, err := s.vocab.VocabularyProjection(ctx, "")
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
