package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewWorkflowMCPServer creates an MCP server with the workflow tools
// registered.
func NewWorkflowMCPServer(svc *WorkflowService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "psurd-workflow",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_workflow_state",
		Description: "Inspect report-generation sessions: overall status, per-section task states, and attempt counts. Omit sessionId to list every session.",
	}, svc.GetWorkflowState)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_master_context",
		Description: "Read a session's master context: the shared facts (exposure denominator, complaint counts, availability flags) with provenance and frozen markers.",
	}, svc.GetMasterContext)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_agent",
		Description: "Put a question directly to one agent in a running or paused session. Does not change any section task state; the exchange is recorded in the session's event stream.",
	}, svc.AskAgent)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_override",
		Description: "Override a master-context value on behalf of an operator. The key becomes frozen: later calculated merges cannot change it.",
	}, svc.SetOverride)

	return server
}

// RunMCPServer starts an HTTP server exposing the workflow MCP tools.
func RunMCPServer(ctx context.Context, svc *WorkflowService, addr string) error {
	server := NewWorkflowMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
