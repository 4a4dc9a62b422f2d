package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	figmadroid "github.com/kataras/figma-droid"
)

// --- compare_screen_with_figma ---

type compareReq struct {
	FileKey           string  `json:"file_key"`
	NodeID            string  `json:"node_id"`
	FigmaToken        string  `json:"figma_token"`
	Scale             float64 `json:"scale"`
	UseAbsoluteBounds bool    `json:"use_absolute_bounds"`
	GridCols          int     `json:"grid_cols"`
	GridRows          int     `json:"grid_rows"`
	OutputDir         string  `json:"output_dir"`
}

func (s *Server) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "compare_screen_with_figma",
		Description: "Capture the device screen, render the Figma node, align both images and report " +
			"global, per-zone and per-grid-cell differences with a heatmap.",
		InputSchema: inputSchema(map[string]any{
			"file_key":            map[string]any{"type": "string", "description": "Figma file key or figma.com URL"},
			"node_id":             map[string]any{"type": "string", "description": "Node id such as 12:34 (12-34 is accepted); taken from the URL when omitted"},
			"figma_token":         map[string]any{"type": "string", "description": "Figma personal access token; defaults to the configured token or FIGMA_TOKEN"},
			"scale":               map[string]any{"type": "number", "description": "Render scale, > 0", "default": figmadroid.DefaultScale},
			"use_absolute_bounds": map[string]any{"type": "boolean", "description": "Render the full node bounds", "default": true},
			"grid_cols":           map[string]any{"type": "integer", "description": "Grid columns, > 0", "default": s.cfg.Diff.GridCols},
			"grid_rows":           map[string]any{"type": "integer", "description": "Grid rows, > 0", "default": s.cfg.Diff.GridRows},
			"output_dir":          map[string]any{"type": "string", "description": "Artifact directory", "default": s.cfg.Diff.OutputDir},
		}, []string{"file_key"}),
	}

	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		r := compareReq{
			Scale:             figmadroid.DefaultScale,
			UseAbsoluteBounds: true,
			GridCols:          s.cfg.Diff.GridCols,
			GridRows:          s.cfg.Diff.GridRows,
			OutputDir:         s.cfg.Diff.OutputDir,
		}
		if err := decodeArgs(args, &r); err != nil {
			return nil, err
		}

		token := r.FigmaToken
		if token == "" {
			token = s.cfg.Figma.Token
		}

		opts := figmadroid.Options{
			FileKey:           r.FileKey,
			NodeID:            r.NodeID,
			FigmaToken:        token,
			Scale:             r.Scale,
			UseAbsoluteBounds: r.UseAbsoluteBounds,
			GridCols:          r.GridCols,
			GridRows:          r.GridRows,
			Zones:             s.cfg.Diff.Zones,
			TopCells:          s.cfg.Diff.TopCells,
			OutputDir:         r.OutputDir,
			Fetcher:           s.fetcher,
			Logger:            s.logger,
		}

		// Fail on bad parameters before the device is touched.
		if err := opts.Validate(); err != nil {
			return nil, err
		}

		dev, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		opts.Capturer = dev

		return figmadroid.Compare(ctx, opts)
	})
}

// --- get_screenshot ---

func (s *Server) registerScreenshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_screenshot",
		Description: "Capture the device screen downscaled to 30% as a PNG image.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(ctx context.Context, _ json.RawMessage) (any, error) {
		dev, err := s.session(ctx)
		if err != nil {
			return nil, err
		}

		preview, err := figmadroid.Preview(ctx, dev, figmadroid.PreviewFactor)
		if err != nil {
			return nil, err
		}
		data, err := preview.PNG()
		if err != nil {
			return nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.ImageContent{Data: data, MIMEType: "image/png"}},
		}, nil
	})
}

// --- execute_adb_shell_command ---

type shellReq struct {
	Command string `json:"command"`
}

func (s *Server) registerShellTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "execute_adb_shell_command",
		Description: "Run a shell command on the device and return its output. A leading \"adb shell\" is ignored.",
		InputSchema: inputSchema(map[string]any{
			"command": map[string]any{"type": "string", "description": "Command to run"},
		}, []string{"command"}),
	}

	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r shellReq
		if err := decodeArgs(args, &r); err != nil {
			return nil, err
		}
		if r.Command == "" {
			return nil, &figmadroid.ValidationError{Field: "command", Reason: "must not be empty"}
		}

		dev, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		return dev.Shell(ctx, r.Command)
	})
}

// --- get_packages ---

func (s *Server) registerPackagesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_packages",
		Description: "List the packages installed on the device.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(ctx context.Context, _ json.RawMessage) (any, error) {
		dev, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		packages, err := dev.Packages(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"packages": packages}, nil
	})
}

// --- get_package_action_intents ---

type packageReq struct {
	PackageName string `json:"package_name"`
}

func (s *Server) registerActionIntentsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_package_action_intents",
		Description: "List the non-data intent actions a package registers.",
		InputSchema: inputSchema(map[string]any{
			"package_name": map[string]any{"type": "string", "description": "Android package name"},
		}, []string{"package_name"}),
	}

	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r packageReq
		if err := decodeArgs(args, &r); err != nil {
			return nil, err
		}
		if r.PackageName == "" {
			return nil, &figmadroid.ValidationError{Field: "package_name", Reason: "must not be empty"}
		}

		dev, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		actions, err := dev.PackageActionIntents(ctx, r.PackageName)
		if err != nil {
			return nil, err
		}
		return map[string]any{"actions": actions}, nil
	})
}

// --- launch_app ---

type launchReq struct {
	PackageName  string `json:"package_name"`
	ActivityName string `json:"activity_name"`
	StopFirst    bool   `json:"stop_first"`
}

func (s *Server) registerLaunchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "launch_app",
		Description: "Launch an app by package name, optionally a specific activity, optionally force-stopping it first.",
		InputSchema: inputSchema(map[string]any{
			"package_name":  map[string]any{"type": "string", "description": "Android package name"},
			"activity_name": map[string]any{"type": "string", "description": "Activity, relative (.Main) or full (pkg/.Main)"},
			"stop_first":    map[string]any{"type": "boolean", "description": "Force-stop the app before launching", "default": false},
		}, []string{"package_name"}),
	}

	addTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r launchReq
		if err := decodeArgs(args, &r); err != nil {
			return nil, err
		}
		if r.PackageName == "" {
			return nil, &figmadroid.ValidationError{Field: "package_name", Reason: "must not be empty"}
		}

		dev, err := s.session(ctx)
		if err != nil {
			return nil, err
		}
		return dev.LaunchApp(ctx, r.PackageName, r.ActivityName, r.StopFirst)
	})
}

// --- list_devices ---

func (s *Server) registerDevicesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_devices",
		Description: "List the devices known to adb with their state.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	addTool(srv, tool, func(ctx context.Context, _ json.RawMessage) (any, error) {
		devices, err := s.listDevices(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"devices": devices}, nil
	})
}
