// Package figmadroid compares what an Android device shows with the Figma
// design it is supposed to implement.
//
// A comparison run captures the device screen, renders the reference node
// through the Figma images API, rescales the capture to the reference width,
// searches the vertical offset where both match best and scores the
// difference globally, per grid cell and per named horizontal zone. The
// intermediate images and a red heatmap are written next to each other under
// a per-run identifier.
//
// The CLI lives in cmd/figma-droid and also serves the same operations as
// MCP tools over stdio, see pkg/server.
//
// # Import
//
// The module path contains a hyphen but Go package names cannot, so the
// package is named figmadroid:
//
//	import "github.com/kataras/figma-droid" // package figmadroid
//
// # Quick start
//
//	dev, err := adb.Open(ctx, adb.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rep, err := figmadroid.Compare(ctx, figmadroid.Options{
//	    FileKey:  "https://www.figma.com/design/ABC123/App?node-id=12-34",
//	    Scale:    figmadroid.DefaultScale,
//	    GridCols: figmadroid.DefaultGridCols,
//	    GridRows: figmadroid.DefaultGridRows,
//	    Capturer: dev,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Markdown(rep))
//
// The Figma token is read from [Options.FigmaToken] or, when empty, from the
// FIGMA_TOKEN environment variable.
//
// # Logging
//
// Pass a [Logger] implementation in [Options.Logger] to receive progress
// messages. A nil Logger silences all output.
//
// # Errors
//
// Invalid parameters fail with a *[ValidationError] before anything is
// captured, fetched or written. Source failures surface as *adb.CaptureError
// and *figma.FetchError, a capture too short to cover the reference as
// *align.DimensionError. Nothing is retried.
package figmadroid
