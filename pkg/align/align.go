// Package align fits a device capture onto a reference design export.
//
// The capture is rescaled to the reference width (aspect ratio kept) and then
// slid vertically over the reference; the row offset with the lowest coarse
// score wins. Horizontal alignment is taken as exact once widths match, so
// the search is one-dimensional.
package align

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/kataras/figma-droid/pkg/bitmap"
)

// CoarseStep is the sampling stride, in both axes, of the offset search.
const CoarseStep = 2

// Result describes the chosen alignment.
type Result struct {
	ScaledWidth  int
	ScaledHeight int
	BestYOffset  int
	CoarseScore  float64 // coarse score at BestYOffset
}

// Output bundles the intermediate images with the alignment result.
type Output struct {
	Scaled  *bitmap.Bitmap // capture rescaled to the reference width
	Aligned *bitmap.Bitmap // reference-sized window of Scaled at BestYOffset
	Result  Result
}

// DimensionError reports a capture that cannot cover the reference frame
// once scaled to the reference width.
type DimensionError struct {
	ScaledWidth     int
	ScaledHeight    int
	ReferenceWidth  int
	ReferenceHeight int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("scaled capture is shorter than the reference image (%d < %d)", e.ScaledHeight, e.ReferenceHeight)
}

// ErrEmptyImage is returned when either input has no pixels.
var ErrEmptyImage = errors.New("align: empty image")

// Align rescales capture to the reference width, searches the best vertical
// offset and crops the matching window.
func Align(reference, capture *bitmap.Bitmap) (*Output, error) {
	scaled, err := Scale(reference, capture)
	if err != nil {
		return nil, err
	}

	offset, score := Search(reference, scaled, CoarseStep)
	aligned := scaled.Crop(image.Rect(0, offset, reference.Width, offset+reference.Height))

	return &Output{
		Scaled:  scaled,
		Aligned: aligned,
		Result: Result{
			ScaledWidth:  scaled.Width,
			ScaledHeight: scaled.Height,
			BestYOffset:  offset,
			CoarseScore:  score,
		},
	}, nil
}

// ScaledHeight returns the height of a captureWidth x captureHeight image
// resized to targetWidth with its aspect ratio kept. Halves round to even.
func ScaledHeight(captureWidth, captureHeight, targetWidth int) int {
	if captureWidth <= 0 {
		return 0
	}
	h := float64(captureHeight) * float64(targetWidth) / float64(captureWidth)
	return int(math.RoundToEven(h))
}

// Scale resizes capture to the reference width. It fails with a
// *DimensionError if the result is shorter than the reference.
func Scale(reference, capture *bitmap.Bitmap) (*bitmap.Bitmap, error) {
	if reference.Empty() || capture.Empty() {
		return nil, ErrEmptyImage
	}

	h := ScaledHeight(capture.Width, capture.Height, reference.Width)
	if h < reference.Height {
		return nil, &DimensionError{
			ScaledWidth:     reference.Width,
			ScaledHeight:    h,
			ReferenceWidth:  reference.Width,
			ReferenceHeight: reference.Height,
		}
	}

	return capture.Resize(reference.Width, h), nil
}

// Search scans every offset in [0, scaled.Height-reference.Height] and returns
// the first one with the strictly lowest coarse score.
// Both images must share the same width.
func Search(reference, scaled *bitmap.Bitmap, step int) (offset int, score float64) {
	score = math.Inf(1)
	maxOffset := scaled.Height - reference.Height
	for y := 0; y <= maxOffset; y++ {
		s := CoarseScore(reference, scaled, y, step)
		if s < score {
			score = s
			offset = y
		}
	}
	return offset, score
}

// CoarseScore is the mean absolute channel difference between reference and
// the window of scaled starting at row yOffset, sampling every step-th pixel
// in both axes.
func CoarseScore(reference, scaled *bitmap.Bitmap, yOffset, step int) float64 {
	if step <= 0 {
		step = 1
	}

	var total, count int
	for y := 0; y < reference.Height; y += step {
		refRow := reference.Offset(0, y)
		capRow := scaled.Offset(0, y+yOffset)
		for x := 0; x < reference.Width; x += step {
			i := refRow + x*bitmap.Channels
			j := capRow + x*bitmap.Channels
			total += absDiff(reference.Pix[i], scaled.Pix[j]) +
				absDiff(reference.Pix[i+1], scaled.Pix[j+1]) +
				absDiff(reference.Pix[i+2], scaled.Pix[j+2])
			count += bitmap.Channels
		}
	}

	if count == 0 {
		return 255
	}
	return float64(total) / float64(count)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
