package mcp

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/wfscript/internal/logging"
	"github.com/rendis/wfscript/internal/query"
	"github.com/rendis/wfscript/internal/security"
	"github.com/rendis/wfscript/internal/store"
	"github.com/rendis/wfscript/internal/validation"
	"github.com/rendis/wfscript/pkg/interpreter"
)

// DefaultTimeout bounds a single tool call when Deps.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Deps holds the dependencies for creating a Server.
type Deps struct {
	// Validator runs on wfscript.validate. Nil uses a validator without rules.
	Validator *validation.Validator
	// Options are passed to every interpretation (limits, policy).
	Options []interpreter.Option
	// Policy is reported by wfscript.reserved_names; it should match the
	// policy in Options. Nil means security.Default().
	Policy *security.Policy
	// Store enables the wfscript.save, wfscript.list and wfscript.get tools.
	Store store.Store

	Timeout time.Duration
	Version string
	Logger  *slog.Logger
}

// Server wraps an MCP server with wfscript tool handlers. Every call
// interprets the submitted script against a fresh builder table.
type Server struct {
	validator *validation.Validator
	options   []interpreter.Option
	policy    *security.Policy
	store     store.Store
	timeout   time.Duration
	jq        *query.JQEngine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with the script tools registered, plus the
// library tools when deps.Store is set.
func NewServer(deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(logging.NewCorrelationHandler(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}
	v := deps.Validator
	if v == nil {
		var err error
		if v, err = validation.NewValidator(nil); err != nil {
			return nil, err
		}
	}
	policy := deps.Policy
	if policy == nil {
		policy = security.Default()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		validator: v,
		options:   append(slices.Clone(deps.Options), interpreter.WithLogger(logger)),
		policy:    policy,
		store:     deps.Store,
		timeout:   timeout,
		jq:        query.NewJQEngine(),
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"wfscript",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("wfscript turns a small sandboxed JavaScript subset into workflow JSON. "+
			"Write `export default workflow('id', 'Name').add(trigger({...})).to(node({...}))` style code. "+
			"Use wfscript.reserved_names before generating code, wfscript.interpret to get workflow JSON, "+
			"wfscript.validate to check the graph, and wfscript.diagram to visualize it."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	tools := []server.ServerTool{
		{Tool: interpretTool(), Handler: s.handleInterpret},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: reservedNamesTool(), Handler: s.handleReservedNames},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
	if s.store != nil {
		tools = append(tools,
			server.ServerTool{Tool: saveTool(), Handler: s.handleSave},
			server.ServerTool{Tool: listTool(), Handler: s.handleList},
			server.ServerTool{Tool: getTool(), Handler: s.handleGet},
		)
	}
	return tools
}

// --- Tool definitions ---

func interpretTool() mcp.Tool {
	return mcp.NewTool("wfscript.interpret",
		mcp.WithDescription("Interpret a workflow script and return the exported value as JSON"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script source with exactly one `export default`")),
		mcp.WithString("query", mcp.Description("Optional jq program applied to the exported JSON")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("wfscript.validate",
		mcp.WithDescription("Interpret a workflow script and validate the resulting workflow graph"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script source exporting a workflow builder")),
	)
}

func reservedNamesTool() mcp.Tool {
	return mcp.NewTool("wfscript.reserved_names",
		mcp.WithDescription("List identifiers, properties and methods scripts may not redefine or must avoid"),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("wfscript.diagram",
		mcp.WithDescription("Render the workflow a script exports as ASCII art, Mermaid flowchart syntax, or a PNG image"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script source exporting a workflow builder")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (PNG)"),
		),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("wfscript.save",
		mcp.WithDescription("Interpret, validate and store a workflow script under its workflow id. Invalid workflows are rejected"),
		mcp.WithString("code", mcp.Required(), mcp.Description("Script source exporting a workflow builder with a non-empty id")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("wfscript.list",
		mcp.WithDescription("List saved workflows ordered by name"),
		mcp.WithString("name", mcp.Description("Only workflows whose name contains this text")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of workflows to return")),
	)
}

func getTool() mcp.Tool {
	return mcp.NewTool("wfscript.get",
		mcp.WithDescription("Get a saved workflow: its script, workflow JSON and revision"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Workflow id")),
		mcp.WithNumber("revision", mcp.Description("Older revision to return (default latest)")),
	)
}
