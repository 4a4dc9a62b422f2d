package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	figmadroid "github.com/kataras/figma-droid"
	"github.com/kataras/figma-droid/pkg/adb"
	"github.com/kataras/figma-droid/pkg/config"
	"github.com/kataras/figma-droid/pkg/figma"
	"github.com/kataras/figma-droid/pkg/imager"
	"github.com/kataras/figma-droid/pkg/report"
	"github.com/kataras/figma-droid/pkg/server"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configFile string
	deviceName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "figma-droid",
		Short:         "Compare an Android screen with its Figma design",
		Long:          "Capture an Android device screen, align it with a Figma node render and report where they differ. Also serves the same tools over MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "YAML configuration file (optional)")
	rootCmd.PersistentFlags().StringVarP(&deviceName, "device", "d", "", "Device serial (overrides the config file)")

	rootCmd.AddCommand(
		newServeCmd(),
		newCompareCmd(),
		newScreenshotCmd(),
		newExportCmd(),
		newDevicesCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("figma-droid version %s\n", figmadroid.Version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		(&cliLogger{}).Errorf("Error: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if deviceName != "" {
		cfg.Device.Name = deviceName
	}
	return cfg, nil
}

func openDevice(ctx context.Context, cfg *config.Config, logger figmadroid.Logger) (*adb.Device, error) {
	dev, err := adb.Open(ctx, cfg.ADBOptions())
	if err != nil {
		return nil, err
	}
	if dev.AutoSelected {
		logger.Infof("No device specified, automatically selected: %s", dev.Serial)
	}
	return dev, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := &cliLogger{}
			logger.Infof("figma-droid %s serving MCP on stdio", figmadroid.Version)

			return server.New(server.Options{Config: cfg, Logger: logger}).Run(cmd.Context())
		},
	}
}

func newCompareCmd() *cobra.Command {
	var (
		fileKey        string
		nodeID         string
		token          string
		scale          float64
		absoluteBounds bool
		gridCols       int
		gridRows       int
		outputDir      string
		format         string
		outputFile     string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the device screen with a Figma node once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "markdown" {
				return fmt.Errorf("invalid format %q (must be json or markdown)", format)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if !flags.Changed("grid-cols") {
				gridCols = cfg.Diff.GridCols
			}
			if !flags.Changed("grid-rows") {
				gridRows = cfg.Diff.GridRows
			}
			if !flags.Changed("output-dir") {
				outputDir = cfg.Diff.OutputDir
			}
			if token == "" {
				token = cfg.Figma.Token
			}

			logger := &cliLogger{}
			opts := figmadroid.Options{
				FileKey:           fileKey,
				NodeID:            nodeID,
				FigmaToken:        token,
				Scale:             scale,
				UseAbsoluteBounds: absoluteBounds,
				GridCols:          gridCols,
				GridRows:          gridRows,
				Zones:             cfg.Diff.Zones,
				TopCells:          cfg.Diff.TopCells,
				OutputDir:         outputDir,
				Fetcher:           cfg.FigmaClient(),
				Logger:            logger,
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			dev, err := openDevice(ctx, cfg, logger)
			if err != nil {
				return err
			}
			opts.Capturer = dev

			rep, err := figmadroid.Compare(ctx, opts)
			if err != nil {
				return err
			}

			var out []byte
			if format == "markdown" {
				out = []byte(report.Markdown(rep))
			} else {
				if out, err = json.MarshalIndent(rep, "", "  "); err != nil {
					return err
				}
				out = append(out, '\n')
			}

			if outputFile == "" {
				_, err = os.Stdout.Write(out)
				return err
			}
			if err := os.WriteFile(outputFile, out, 0644); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(os.Stderr, "✓ Report written to %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileKey, "file-key", "f", "", "Figma file key or figma.com URL (required)")
	cmd.Flags().StringVarP(&nodeID, "node-id", "n", "", "Figma node id, e.g. 12:34 (taken from the URL when omitted)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Figma Personal Access Token (defaults to the config file or FIGMA_TOKEN)")
	cmd.Flags().Float64Var(&scale, "scale", figmadroid.DefaultScale, "Figma render scale")
	cmd.Flags().BoolVar(&absoluteBounds, "absolute-bounds", true, "Render the full node bounds")
	cmd.Flags().IntVar(&gridCols, "grid-cols", figmadroid.DefaultGridCols, "Grid columns")
	cmd.Flags().IntVar(&gridRows, "grid-rows", figmadroid.DefaultGridRows, "Grid rows")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Artifact directory (defaults to the config file value)")
	cmd.Flags().StringVar(&format, "format", "json", "Report format: json or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the report to a file instead of stdout")

	cmd.MarkFlagRequired("file-key")

	return cmd
}

func newScreenshotCmd() *cobra.Command {
	var (
		outputFile string
		factor     float64
	)

	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Save a downscaled screenshot of the device screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			dev, err := openDevice(ctx, cfg, &cliLogger{})
			if err != nil {
				return err
			}

			preview, err := figmadroid.Preview(ctx, dev, factor)
			if err != nil {
				return err
			}
			data, err := preview.PNG()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outputFile, data, 0644); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(os.Stderr, "✓ %dx%d screenshot written to %s\n", preview.Width, preview.Height, outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "screenshot.png", "Output PNG file")
	cmd.Flags().Float64Var(&factor, "factor", figmadroid.PreviewFactor, "Downscale factor in (0, 1]")

	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		fileKey        string
		nodeIDs        string
		token          string
		scale          float64
		absoluteBounds bool
		outputDir      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download Figma node renders as reference PNGs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			key, err := figma.ResolveFileKey(fileKey)
			if err != nil {
				return err
			}

			var ids []string
			if nodeIDs != "" {
				ids = strings.Split(nodeIDs, ",")
			} else if ids, err = figma.ExtractNodeIDs(fileKey); err != nil {
				return err
			}
			if len(ids) == 0 {
				return &figmadroid.ValidationError{Field: "node_ids", Reason: "must not be empty"}
			}

			if token == "" {
				token = cfg.Figma.Token
			}
			if cfg.Figma.Token, err = figma.ResolveToken(token); err != nil {
				return err
			}

			logger := &cliLogger{}
			logger.Infof("Exporting %d node(s) from %s...", len(ids), key)

			result, err := imager.ExportReferences(cmd.Context(), cfg.FigmaClient(), key, ids, imager.ExportConfig{
				Scale:             scale,
				UseAbsoluteBounds: absoluteBounds,
				OutputDir:         outputDir,
			})
			if err != nil {
				return err
			}

			for _, e := range result.Errors {
				logger.Warnf("%v", e)
			}
			green := color.New(color.FgGreen)
			for _, a := range result.Assets {
				green.Fprintf(os.Stderr, "✓ %s (%dx%d) -> %s\n", a.NodeID, a.Width, a.Height, a.FileName)
			}

			if len(result.Assets) == 0 {
				return fmt.Errorf("no references exported")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&fileKey, "file-key", "f", "", "Figma file key or figma.com URL (required)")
	cmd.Flags().StringVarP(&nodeIDs, "node-ids", "n", "", "Comma separated node ids (taken from the URL when omitted)")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Figma Personal Access Token (defaults to the config file or FIGMA_TOKEN)")
	cmd.Flags().Float64Var(&scale, "scale", figmadroid.DefaultScale, "Figma render scale")
	cmd.Flags().BoolVar(&absoluteBounds, "absolute-bounds", true, "Render the full node bounds")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", imager.DefaultOutputDir, "Directory to write the PNGs to")

	cmd.MarkFlagRequired("file-key")

	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices known to adb",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			devices, err := adb.Devices(cmd.Context(), cfg.ADBOptions())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				(&cliLogger{}).Warnf("No devices connected")
				return nil
			}

			cyan := color.New(color.FgCyan)
			for _, d := range devices {
				cyan.Printf("%s", d.Serial)
				fmt.Printf("\t%s\n", d.State)
			}
			return nil
		},
	}
}

// cliLogger implements figmadroid.Logger with colored output on stderr.
// Stdout is reserved for reports and the MCP stdio transport.
type cliLogger struct{}

func (l *cliLogger) Infof(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(os.Stderr, format+"\n", args...)
}

func (l *cliLogger) Warnf(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}

func (l *cliLogger) Errorf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}
