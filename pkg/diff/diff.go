// Package diff scores an aligned capture against its reference image.
//
// One full-resolution pass produces global error metrics, per-cell averages
// over a grid, per-zone averages over horizontal bands and a red heatmap of
// the per-pixel difference.
package diff

import (
	"errors"
	"fmt"
	"math"

	"github.com/kataras/figma-droid/pkg/bitmap"
)

// HeatmapGain amplifies the per-pixel delta in the heatmap so small
// differences stay visible.
const HeatmapGain = 4

// Thresholds used for the "pixels over delta" fractions.
const (
	ThresholdLow    = 10
	ThresholdMedium = 25
	ThresholdHigh   = 50
)

// Options configures the grid and zone partitions.
type Options struct {
	GridCols int
	GridRows int
	Zones    []Band // nil means DefaultZones
}

// Metrics holds the global statistics of one comparison.
type Metrics struct {
	MAE               float64 // mean absolute channel error
	RMSE              float64 // root mean square channel error
	SimilarityPercent float64
	OverLowPercent    float64 // % of pixels whose channel-average delta exceeds ThresholdLow
	OverMediumPercent float64
	OverHighPercent   float64
}

// Cell is one grid partition of the image.
type Cell struct {
	Row               int
	Col               int
	Pixels            int
	AverageDelta      float64
	SimilarityPercent float64
}

// Zone is the score of one Band.
type Zone struct {
	Band
	Pixels            int
	AverageDelta      float64
	SimilarityPercent float64
}

// Result is the output of Compute.
type Result struct {
	Metrics Metrics
	Zones   []Zone         // in band order
	Cells   []Cell         // row-major, not sorted
	Heatmap *bitmap.Bitmap // red channel = min(255, delta*HeatmapGain)
}

var (
	// ErrSizeMismatch is returned when the two images differ in size.
	ErrSizeMismatch = errors.New("diff: images differ in size")
	// ErrEmptyImage is returned for images without pixels.
	ErrEmptyImage = errors.New("diff: empty image")
	// ErrInvalidGrid is returned for non-positive grid dimensions.
	ErrInvalidGrid = errors.New("diff: grid dimensions must be > 0")
)

// Similarity maps an average channel delta to a 0-100 similarity score.
func Similarity(avg float64) float64 {
	return math.Max(0, 100-(avg/255*100))
}

// Compute compares reference with aligned pixel by pixel.
func Compute(reference, aligned *bitmap.Bitmap, opts Options) (*Result, error) {
	if reference.Empty() || aligned.Empty() {
		return nil, ErrEmptyImage
	}
	if reference.Width != aligned.Width || reference.Height != aligned.Height {
		return nil, fmt.Errorf("%w: reference %dx%d, aligned %dx%d", ErrSizeMismatch,
			reference.Width, reference.Height, aligned.Width, aligned.Height)
	}
	if opts.GridCols <= 0 || opts.GridRows <= 0 {
		return nil, ErrInvalidGrid
	}

	bands := opts.Zones
	if bands == nil {
		bands = DefaultZones()
	}
	if err := ValidateZones(bands); err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	width, height := reference.Width, reference.Height
	cols, rows := opts.GridCols, opts.GridRows

	var sumAbs, sumSq int64
	var overLow, overMid, overHi int

	// Sums hold dr+dg+db, i.e. three times the channel-average delta.
	cellSums := make([]int64, cols*rows)
	cellPixels := make([]int, cols*rows)
	zoneSums := make([]int64, len(bands))
	zonePixels := make([]int, len(bands))

	heat := bitmap.New(width, height)

	// Column buckets depend only on x.
	colOf := make([]int, width)
	for x := range colOf {
		colOf[x] = min(cols-1, x*cols/width)
	}

	for y := 0; y < height; y++ {
		row := min(rows-1, y*rows/height)
		zone := zoneOf(bands, float64(y)/float64(height))

		for x := 0; x < width; x++ {
			i := reference.Offset(x, y)
			dr := absDiff(reference.Pix[i], aligned.Pix[i])
			dg := absDiff(reference.Pix[i+1], aligned.Pix[i+1])
			db := absDiff(reference.Pix[i+2], aligned.Pix[i+2])

			sum := dr + dg + db
			sumAbs += int64(sum)
			sumSq += int64(dr*dr + dg*dg + db*db)

			// sum > 3*t is the exact integer form of (sum/3) > t.
			if sum > 3*ThresholdLow {
				overLow++
			}
			if sum > 3*ThresholdMedium {
				overMid++
			}
			if sum > 3*ThresholdHigh {
				overHi++
			}

			idx := row*cols + colOf[x]
			cellSums[idx] += int64(sum)
			cellPixels[idx]++

			if zone >= 0 {
				zoneSums[zone] += int64(sum)
				zonePixels[zone]++
			}

			avg := float64(sum) / 3
			heat.Pix[i] = uint8(math.Min(255, math.RoundToEven(avg*HeatmapGain)))
		}
	}

	pixels := float64(width * height)
	channels := pixels * bitmap.Channels
	mae := float64(sumAbs) / channels

	res := &Result{
		Metrics: Metrics{
			MAE:               mae,
			RMSE:              math.Sqrt(float64(sumSq) / channels),
			SimilarityPercent: Similarity(mae),
			OverLowPercent:    float64(overLow) * 100 / pixels,
			OverMediumPercent: float64(overMid) * 100 / pixels,
			OverHighPercent:   float64(overHi) * 100 / pixels,
		},
		Cells:   make([]Cell, 0, cols*rows),
		Zones:   make([]Zone, 0, len(bands)),
		Heatmap: heat,
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := r*cols + c
			avg := average(cellSums[idx], cellPixels[idx])
			res.Cells = append(res.Cells, Cell{
				Row:               r,
				Col:               c,
				Pixels:            cellPixels[idx],
				AverageDelta:      avg,
				SimilarityPercent: Similarity(avg),
			})
		}
	}

	for i, b := range bands {
		avg := average(zoneSums[i], zonePixels[i])
		res.Zones = append(res.Zones, Zone{
			Band:              b,
			Pixels:            zonePixels[i],
			AverageDelta:      avg,
			SimilarityPercent: Similarity(avg),
		})
	}

	return res, nil
}

// average turns a sum of dr+dg+db over n pixels into a channel-average delta.
// Empty partitions (a grid finer than the image) average to 0.
func average(sum int64, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / 3 / float64(n)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
