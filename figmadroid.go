package figmadroid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kataras/figma-droid/pkg/adb"
	"github.com/kataras/figma-droid/pkg/align"
	"github.com/kataras/figma-droid/pkg/artifact"
	"github.com/kataras/figma-droid/pkg/bitmap"
	"github.com/kataras/figma-droid/pkg/diff"
	"github.com/kataras/figma-droid/pkg/figma"
	"github.com/kataras/figma-droid/pkg/report"
)

// Version is the figma-droid release.
const Version = "0.1.0"

// Comparison defaults, applied by callers that expose optional parameters.
const (
	DefaultScale    = 1.0
	DefaultGridCols = 6
	DefaultGridRows = 10

	// PreviewFactor is the downscale factor of Preview.
	PreviewFactor = 0.3
)

// ScreenCapturer returns the current device screen.
type ScreenCapturer interface {
	CaptureScreen(ctx context.Context) (*bitmap.Bitmap, error)
}

// ReferenceFetcher resolves a design node to its rendered image.
type ReferenceFetcher interface {
	FetchReferenceImage(ctx context.Context, req figma.ReferenceRequest) (*bitmap.Bitmap, error)
}

// Logger receives progress messages. A nil Logger means silent operation.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Options configures a comparison run. Scale and the grid dimensions are
// not defaulted: zero values fail validation.
type Options struct {
	FileKey           string // Figma file key or figma.com URL
	NodeID            string // empty = first node-id found in the FileKey URL
	FigmaToken        string // empty = FIGMA_TOKEN environment variable
	Scale             float64
	UseAbsoluteBounds bool
	GridCols          int
	GridRows          int
	Zones             []diff.Band // nil = diff.DefaultZones
	TopCells          int         // <= 0 = report.DefaultTopCells
	OutputDir         string      // empty = artifact.DefaultDir

	Capturer ScreenCapturer
	Fetcher  ReferenceFetcher // nil = a default Figma API client
	Logger   Logger           // nil = no logging
	Now      func() time.Time // nil = time.Now
}

// ValidationError reports an invalid comparison parameter. It is returned
// before any capture, network or file system access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrNoCapturer is returned when Options.Capturer is nil.
var ErrNoCapturer = errors.New("no screen capturer configured")

var errEmptyCapture = &adb.CaptureError{Op: "screencap", Err: errors.New("empty image")}

func (o *Options) logInfo(f string, a ...any) {
	if o.Logger != nil {
		o.Logger.Infof(f, a...)
	}
}

// validate checks every parameter and resolves the file and node
// identifiers.
func (o *Options) validate() (fileKey, nodeID string, err error) {
	if o.FileKey == "" {
		return "", "", &ValidationError{Field: "file_key", Reason: "must not be empty"}
	}
	fileKey, err = figma.ResolveFileKey(o.FileKey)
	if err != nil {
		return "", "", &ValidationError{Field: "file_key", Reason: err.Error()}
	}
	if fileKey == "" {
		return "", "", &ValidationError{Field: "file_key", Reason: "must not be empty"}
	}

	nodeID = figma.NormalizeNodeID(o.NodeID)
	if nodeID == "" {
		// A pasted design URL usually carries the frame in its node-id.
		if ids, err := figma.ExtractNodeIDs(o.FileKey); err == nil && len(ids) > 0 {
			nodeID = ids[0]
		}
	}
	if nodeID == "" {
		return "", "", &ValidationError{Field: "node_id", Reason: "must not be empty"}
	}

	if !(o.Scale > 0) {
		return "", "", &ValidationError{Field: "scale", Reason: fmt.Sprintf("must be > 0, got %g", o.Scale)}
	}
	if o.GridCols <= 0 {
		return "", "", &ValidationError{Field: "grid_cols", Reason: fmt.Sprintf("must be > 0, got %d", o.GridCols)}
	}
	if o.GridRows <= 0 {
		return "", "", &ValidationError{Field: "grid_rows", Reason: fmt.Sprintf("must be > 0, got %d", o.GridRows)}
	}
	if o.Zones != nil {
		if err := diff.ValidateZones(o.Zones); err != nil {
			return "", "", &ValidationError{Field: "zones", Reason: err.Error()}
		}
	}

	return fileKey, nodeID, nil
}

// prepare validates the parameters and resolves the Figma token.
func (o *Options) prepare() (fileKey, nodeID, token string, err error) {
	if fileKey, nodeID, err = o.validate(); err != nil {
		return "", "", "", err
	}
	if token, err = figma.ResolveToken(o.FigmaToken); err != nil {
		return "", "", "", &figma.FetchError{Kind: figma.KindAuth, Err: err}
	}
	return fileKey, nodeID, token, nil
}

// Validate returns the error Compare would fail with before any I/O: a
// *ValidationError for a bad parameter or an auth *figma.FetchError when no
// token is available. Capturer is not checked.
func (o Options) Validate() error {
	_, _, _, err := o.prepare()
	return err
}

// Compare captures the device screen, fetches the reference design node,
// aligns the capture to it and scores the difference. The five images of
// the run are written to OutputDir under a fresh run id and their paths are
// part of the returned report. Any failure aborts the run; no partial report
// is returned.
func Compare(ctx context.Context, opts Options) (*report.Report, error) {
	fileKey, nodeID, token, err := opts.prepare()
	if err != nil {
		return nil, err
	}

	if opts.Capturer == nil {
		return nil, ErrNoCapturer
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = figma.NewClient(token)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runID := artifact.NewRunID(now())
	sink, err := artifact.NewSink(opts.OutputDir, runID)
	if err != nil {
		return nil, err
	}
	opts.logInfo("Run %s, artifacts in %s", runID, sink.Dir)

	var paths report.Artifacts

	opts.logInfo("Capturing device screen...")
	capture, err := opts.Capturer.CaptureScreen(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	if capture.Empty() {
		return nil, fmt.Errorf("capture screen: %w", errEmptyCapture)
	}
	if paths.EmulatorRaw, err = sink.WritePNG(artifact.EmulatorRaw, capture); err != nil {
		return nil, err
	}

	opts.logInfo("Fetching Figma node %s from %s (scale %g)...", nodeID, fileKey, opts.Scale)
	reference, err := fetcher.FetchReferenceImage(ctx, figma.ReferenceRequest{
		FileKey:           fileKey,
		NodeID:            nodeID,
		Scale:             opts.Scale,
		UseAbsoluteBounds: opts.UseAbsoluteBounds,
		Token:             token,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch reference image: %w", err)
	}
	if reference.Empty() {
		return nil, fmt.Errorf("fetch reference image: %w", &figma.FetchError{Kind: figma.KindNotImage, Err: errors.New("empty image")})
	}
	if paths.FigmaNode, err = sink.WritePNG(artifact.FigmaNode, reference); err != nil {
		return nil, err
	}

	opts.logInfo("Aligning %dx%d capture to %dx%d reference...", capture.Width, capture.Height, reference.Width, reference.Height)
	aligned, err := align.Align(reference, capture)
	if err != nil {
		return nil, fmt.Errorf("align capture: %w", err)
	}
	if paths.EmulatorScaled, err = sink.WritePNG(artifact.EmulatorScaled, aligned.Scaled); err != nil {
		return nil, err
	}
	if paths.EmulatorAligned, err = sink.WritePNG(artifact.EmulatorAligned, aligned.Aligned); err != nil {
		return nil, err
	}
	opts.logInfo("Best vertical offset: %d", aligned.Result.BestYOffset)

	result, err := diff.Compute(reference, aligned.Aligned, diff.Options{
		GridCols: opts.GridCols,
		GridRows: opts.GridRows,
		Zones:    opts.Zones,
	})
	if err != nil {
		return nil, fmt.Errorf("compute diff: %w", err)
	}
	if paths.Heatmap, err = sink.WritePNG(artifact.Heatmap, result.Heatmap); err != nil {
		return nil, err
	}

	rep := report.Build(report.Input{
		RunID: runID,
		Reference: report.Reference{
			FileKey:           fileKey,
			NodeID:            nodeID,
			Scale:             opts.Scale,
			Width:             reference.Width,
			Height:            reference.Height,
			UseAbsoluteBounds: opts.UseAbsoluteBounds,
		},
		Alignment: aligned.Result,
		Diff:      result,
		Artifacts: paths,
		TopCells:  opts.TopCells,
	})
	opts.logInfo("Similarity %.2f%% (MAE %.4f)", rep.Metrics.SimilarityPct, rep.Metrics.MAE)

	return rep, nil
}

// Preview captures the screen and downscales it by factor (PreviewFactor
// when factor is not in (0, 1]); dimensions are truncated and kept >= 1.
func Preview(ctx context.Context, capturer ScreenCapturer, factor float64) (*bitmap.Bitmap, error) {
	if capturer == nil {
		return nil, ErrNoCapturer
	}
	if factor <= 0 || factor > 1 {
		factor = PreviewFactor
	}

	capture, err := capturer.CaptureScreen(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	if capture.Empty() {
		return nil, fmt.Errorf("capture screen: %w", errEmptyCapture)
	}

	w := max(1, int(float64(capture.Width)*factor))
	h := max(1, int(float64(capture.Height)*factor))
	return capture.Resize(w, h), nil
}
