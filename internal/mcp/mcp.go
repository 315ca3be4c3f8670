// Package mcp provides the appverify MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/deixis/appverify"
	"github.com/deixis/appverify/internal/config"
	"github.com/deixis/appverify/internal/report"
	"github.com/deixis/appverify/internal/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu     sync.Mutex
	engine *workflow.Engine
	store  report.Store
}

// NewServer creates an MCP server with all appverify tools registered.
// The engine's configuration is replaced when the client reports a
// workspace root.
func NewServer(engine *workflow.Engine, store report.Store) *mcp.Server {
	h := &handler{engine: engine, store: store}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "appverify", Version: appverify.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "av_locate",
		Description: `Find the packaged application executable for the current platform.

Searches the packager output directories in priority order and returns the executable path.
When nothing is found, lists every directory checked and whether it exists.`,
	}, h.locateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "av_verify",
		Description: `Launch the packaged application and confirm it starts.

Waits until the application occupies its loopback port, the process exits, or the timeout elapses.
The process is always terminated before the tool returns. When path is empty, av_locate runs first.
Results are stored for drill-down via av_inspect.`,
	}, h.verifyHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "av_inspect",
		Description: `Show the stored record of an av_locate or av_verify run, including every searched directory.`,
	}, h.inspectHandler)

	return s
}

// snapshot returns a copy of the engine safe to use for one tool call.
func (h *handler) snapshot() workflow.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.engine
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads the
// engine's config if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.engine.Config = loaded.Config
	h.engine.RepoRoot = loaded.RepoRoot
	h.engine.AppName = loaded.AppName
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
