// Package server exposes figma-droid operations as MCP tools.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	figmadroid "github.com/kataras/figma-droid"
	"github.com/kataras/figma-droid/pkg/adb"
	"github.com/kataras/figma-droid/pkg/config"
)

// Name is the MCP implementation name.
const Name = "figma-droid"

// Device is the device session used by the tools. *adb.Device implements it.
type Device interface {
	figmadroid.ScreenCapturer
	Shell(ctx context.Context, command string) (string, error)
	Packages(ctx context.Context) ([]string, error)
	PackageActionIntents(ctx context.Context, pkg string) ([]string, error)
	LaunchApp(ctx context.Context, pkg, activity string, stopFirst bool) (string, error)
}

// Options configures a Server. Only Config is required.
type Options struct {
	Config      *config.Config
	Open        func(ctx context.Context) (Device, error)           // nil = adb.Open with the config device options
	ListDevices func(ctx context.Context) ([]adb.DeviceInfo, error) // nil = adb.Devices
	Fetcher     figmadroid.ReferenceFetcher                         // nil = a Figma client built from the config
	Logger      figmadroid.Logger
}

// Server holds the device session shared by the tools. The device is opened
// on first use; a failed open is retried by the next call.
type Server struct {
	cfg         *config.Config
	open        func(ctx context.Context) (Device, error)
	listDevices func(ctx context.Context) ([]adb.DeviceInfo, error)
	fetcher     figmadroid.ReferenceFetcher
	logger      figmadroid.Logger

	mu     sync.Mutex
	device Device
}

// New returns a Server for opts.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		cfg:         cfg,
		open:        opts.Open,
		listDevices: opts.ListDevices,
		fetcher:     opts.Fetcher,
		logger:      opts.Logger,
	}

	if s.open == nil {
		s.open = func(ctx context.Context) (Device, error) {
			dev, err := adb.Open(ctx, cfg.ADBOptions())
			if err != nil {
				return nil, err
			}
			if dev.AutoSelected && s.logger != nil {
				s.logger.Infof("No device specified, automatically selected: %s", dev.Serial)
			}
			return dev, nil
		}
	}
	if s.listDevices == nil {
		s.listDevices = func(ctx context.Context) ([]adb.DeviceInfo, error) {
			return adb.Devices(ctx, cfg.ADBOptions())
		}
	}
	if s.fetcher == nil {
		s.fetcher = cfg.FigmaClient()
	}

	return s
}

// MCPServer returns an MCP server with every tool registered.
func (s *Server) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: Name, Version: figmadroid.Version}, nil)
	s.Register(srv)
	return srv
}

// Run serves the tools over stdio until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

// Register adds the tools to srv.
func (s *Server) Register(srv *mcp.Server) {
	s.registerCompareTool(srv)
	s.registerScreenshotTool(srv)
	s.registerShellTool(srv)
	s.registerPackagesTool(srv)
	s.registerActionIntentsTool(srv)
	s.registerLaunchTool(srv)
	s.registerDevicesTool(srv)
}

func (s *Server) session(ctx context.Context) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device != nil {
		return s.device, nil
	}

	dev, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.device = dev
	return dev, nil
}

// handler returns a value sent as JSON text, a string sent as is, or a
// ready-made result.
type handler func(ctx context.Context, args json.RawMessage) (any, error)

func addTool(srv *mcp.Server, tool *mcp.Tool, h handler) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := h(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}

		switch v := resp.(type) {
		case *mcp.CallToolResult:
			return v, nil
		case string:
			return textResult(v), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return textResult(string(data)), nil
	})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// decodeArgs unmarshals args over v, so fields already set on v act as
// defaults for omitted arguments.
func decodeArgs(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
