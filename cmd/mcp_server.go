package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mj1618/tab-bridge/internal/protocol"
	"github.com/mj1618/tab-bridge/internal/server"
	"github.com/mj1618/tab-bridge/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing the bridge commands",
	Long: `Start a Model Context Protocol (MCP) server that exposes every bridge
command as a tool. Results are returned as YAML. Subscriptions are not
exposed.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  tab-bridge mcp
  tab-bridge mcp --host memory --fixture windows.yaml
  tab-bridge mcp --transport streamable-http --port 8080`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio, streamable-http")
	mcpCmd.Flags().Int("port", 8080, "HTTP port for streamable-http transport")
	mcpCmd.Flags().String("fixture", "", "YAML fixture of windows and tabs (memory host)")
}

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Transport string
	Port      int
}

// mcpServer wraps the MCP server around a bridge.
type mcpServer struct {
	bridge *bridge
	mcp    *mcpserver.MCPServer
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")

	b, err := newBridge(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer b.Close()

	return newMCPServer(b).serve(MCPConfig{Transport: transport, Port: port})
}

// newMCPServer registers a tool for each bridge command.
func newMCPServer(b *bridge) *mcpServer {
	s := &mcpServer{
		bridge: b,
		mcp:    mcpserver.NewMCPServer("tab-bridge", version.Version),
	}
	s.registerTools()
	return s
}

// serve starts the MCP server with the configured transport.
func (s *mcpServer) serve(cfg MCPConfig) error {
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

// toolOptions describes the tool of each known command.
var toolOptions = map[string][]mcp.ToolOption{
	server.CmdGetWindows: {
		mcp.WithDescription("List all windows with their id, title, title preface, and focus state"),
	},
	server.CmdGetTabs: {
		mcp.WithDescription("List all tabs with their id, window id, title, URL, and active state"),
	},
	server.CmdGetFocusedWindow: {
		mcp.WithDescription("Return the currently focused window"),
	},
	server.CmdFocusTab: {
		mcp.WithDescription("Bring a tab's window to the front and activate the tab"),
		mcp.WithObject("tab",
			mcp.Required(),
			mcp.Description("The tab to focus, as returned by get_tabs"),
			mcp.Properties(map[string]any{
				"id":       map[string]any{"type": "number", "description": "Tab ID"},
				"windowId": map[string]any{"type": "number", "description": "ID of the window holding the tab"},
			}),
		),
	},
	server.CmdIdentifyWindow: {
		mcp.WithDescription("Prefix a window title with a unique identifier (on), or restore the original title (off). Returns the identifier, or null."),
		mcp.WithNumber("windowId", mcp.Required(), mcp.Description("Window ID")),
		mcp.WithBoolean("on", mcp.Required(), mcp.Description("true to set the identifier, false to clear it")),
	},
}

func (s *mcpServer) registerTools() {
	for _, name := range s.bridge.dispatcher.Registry().Commands() {
		opts, ok := toolOptions[name]
		if !ok {
			opts = []mcp.ToolOption{mcp.WithDescription("Run the " + name + " command")}
		}
		s.mcp.AddTool(mcp.NewTool(name, opts...), s.handler(name))
	}
}

func (s *mcpServer) handler(command string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.invoke(ctx, command, request.GetArguments()), nil
	}
}

// invoke runs command through the dispatcher. Failures come back as error
// results carrying the same payload a channel client would see.
func (s *mcpServer) invoke(ctx context.Context, command string, args map[string]any) *mcp.CallToolResult {
	var commandArgs any
	if len(args) > 0 {
		commandArgs = args
	}
	req, err := protocol.NewRequest(protocol.JSON, uuid.NewString(), command, commandArgs)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	results, err := s.bridge.dispatcher.Invoke(ctx, req)
	if err != nil {
		return yamlResult(server.NewErrorResult(err), true)
	}
	return yamlResult(results, false)
}

func yamlResult(v any, isError bool) *mcp.CallToolResult {
	data, err := yaml.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	if isError {
		return mcp.NewToolResultError(string(data))
	}
	return mcp.NewToolResultText(string(data))
}
