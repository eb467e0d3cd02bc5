package mcp

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/scriptref/internal/config"
	trace "github.com/standardbeagle/scriptref/internal/debug"
	"github.com/standardbeagle/scriptref/internal/indexing"
	"github.com/standardbeagle/scriptref/internal/version"
)

// Server exposes an indexing session as MCP tools
type Server struct {
	session          *indexing.Session
	ownsSession      bool
	cfg              *config.Config
	server           *mcp.Server
	diagnosticLogger *DiagnosticLogger
}

// NewServer creates an MCP server over session. A nil session is created from cfg,
// started in the background and closed with the server. A nil logger logs to a file.
func NewServer(session *indexing.Session, cfg *config.Config, logger *DiagnosticLogger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mcp server requires a config")
	}
	if logger == nil {
		logger = NewDiagnosticLogger(true)
	}

	s := &Server{
		session:          session,
		cfg:              cfg,
		diagnosticLogger: logger,
	}

	if s.session == nil {
		s.session = indexing.NewSession(cfg)
		s.ownsSession = true
		if err := s.session.Start(); err != nil {
			return nil, fmt.Errorf("failed to start indexing: %w", err)
		}
		logger.Printf("Started background indexing of %s", cfg.Project.Root)
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "scriptref-mcp-server",
		Version: version.Info(),
	}, nil)
	s.registerTools()

	logger.Printf("MCP server initialized for %s", cfg.Project.Root)
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "find_references",
		Description: "List the prefab and scene files that use a C# MonoBehaviour script. Pass the path of the .cs file; its guid is read from the .meta file next to it.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Path of the .cs script, absolute or relative to the project root",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleFindReferences)

	s.server.AddTool(&mcp.Tool{
		Name:        "resolve_guid",
		Description: "List the prefab and scene files whose m_Script entries reference a script guid.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"guid": {
					Type:        "string",
					Description: "32 character lowercase hex script guid",
				},
			},
			Required: []string{"guid"},
		},
	}, s.handleResolveGUID)

	s.server.AddTool(&mcp.Tool{
		Name:        "document_guids",
		Description: "List the script guids referenced by one prefab or scene file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Path of the .prefab or .unity file, absolute or relative to the project root",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleDocumentGUIDs)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the index is ready, its size, pending changes and watcher state.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"verify": {
					Type:        "boolean",
					Description: "Also check that the forward and reverse relations agree",
				},
			},
		},
	}, s.handleIndexStatus)

	s.server.AddTool(&mcp.Tool{
		Name:        "rebuild_index",
		Description: "Rescan the whole project. Queries report not-ready until the rebuild completes.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"wait": {
					Type:        "boolean",
					Description: "Block until the rebuild finishes",
				},
			},
		},
	}, s.handleRebuildIndex)
}

// recoverFromPanic runs handler, turning errors and panics into error results
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Errorf("PANIC RECOVERED in %s: %v\n%s", operation, r, debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	trace.LogMCP("tool call %s\n", operation)
	result, err = handler()
	if err != nil {
		s.diagnosticLogger.Printf("Error in %s: %v", operation, err)
		return createSmartErrorResponse(operation, err, map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"state":     s.session.Coordinator().State().String(),
		})
	}
	return result, nil
}

// Start serves MCP over stdio until ctx is done or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Shutdown closes the session if the server created it and flushes the log
func (s *Server) Shutdown(ctx context.Context) error {
	s.diagnosticLogger.Printf("Shutting down MCP server...")

	var err error
	if s.ownsSession && s.session != nil {
		err = s.session.Close()
		if err != nil {
			s.diagnosticLogger.Errorf("session close: %v", err)
		}
	}

	s.diagnosticLogger.Printf("MCP server shutdown complete")
	_ = s.diagnosticLogger.Close()
	return err
}

// GetHandlerForTesting returns a tool handler by name
func (s *Server) GetHandlerForTesting(toolName string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch toolName {
	case "find_references":
		return s.handleFindReferences
	case "resolve_guid":
		return s.handleResolveGUID
	case "document_guids":
		return s.handleDocumentGUIDs
	case "index_status":
		return s.handleIndexStatus
	case "rebuild_index":
		return s.handleRebuildIndex
	default:
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return createErrorResponse("GetHandlerForTesting", fmt.Errorf("unknown tool: %s", toolName))
		}
	}
}
