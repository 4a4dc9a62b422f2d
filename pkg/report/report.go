// Package report assembles the alignment and diff outputs of one comparison
// run into the structure returned to callers.
package report

import (
	"math"
	"sort"

	"github.com/kataras/figma-droid/pkg/align"
	"github.com/kataras/figma-droid/pkg/diff"
)

// DefaultTopCells is the number of worst grid cells kept in a report.
const DefaultTopCells = 12

// Report is the full result of a comparison run.
type Report struct {
	RunID          string    `json:"runId"`
	Figma          Reference `json:"figma"`
	Alignment      Alignment `json:"alignment"`
	Metrics        Metrics   `json:"metrics"`
	Zones          []Zone    `json:"zones"`
	WorstGridCells []Cell    `json:"worstGridCells"`
	Artifacts      Artifacts `json:"artifacts"`
}

// Reference describes the design node the capture was compared with.
type Reference struct {
	FileKey           string  `json:"fileKey"`
	NodeID            string  `json:"nodeId"`
	Scale             float64 `json:"scale"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	UseAbsoluteBounds bool    `json:"useAbsoluteBounds"`
}

// Alignment mirrors align.Result.
type Alignment struct {
	ScaledWidth           int     `json:"scaledWidth"`
	ScaledHeight          int     `json:"scaledHeight"`
	BestYOffset           int     `json:"bestYOffset"`
	CoarseMAEAtBestOffset float64 `json:"coarseMaeAtBestOffset"`
}

// Metrics mirrors diff.Metrics.
type Metrics struct {
	MAE           float64 `json:"mae"`
	RMSE          float64 `json:"rmse"`
	SimilarityPct float64 `json:"similarityPct"`
	PxDiffGt10Pct float64 `json:"pxDiffGt10Pct"`
	PxDiffGt25Pct float64 `json:"pxDiffGt25Pct"`
	PxDiffGt50Pct float64 `json:"pxDiffGt50Pct"`
}

// Zone is the score of one named horizontal band.
type Zone struct {
	Name          string  `json:"name"`
	YStart        float64 `json:"yStart"`
	YEnd          float64 `json:"yEnd"`
	AvgDiff       float64 `json:"avgDiff"`
	SimilarityPct float64 `json:"similarityPct"`
}

// Cell is the score of one grid cell.
type Cell struct {
	Row           int     `json:"row"`
	Col           int     `json:"col"`
	AvgDiff       float64 `json:"avgDiff"`
	SimilarityPct float64 `json:"similarityPct"`
}

// Artifacts lists the files written for the run.
type Artifacts struct {
	EmulatorRaw     string `json:"emulatorRaw"`
	FigmaNode       string `json:"figmaNode"`
	EmulatorScaled  string `json:"emulatorScaled"`
	EmulatorAligned string `json:"emulatorAligned"`
	Heatmap         string `json:"heatmap"`
}

// Input is everything Build needs.
type Input struct {
	RunID     string
	Reference Reference // Width and Height are filled from Alignment when zero
	Alignment align.Result
	Diff      *diff.Result
	Artifacts Artifacts
	TopCells  int // <= 0 means DefaultTopCells
}

// Build assembles a Report. Metrics and the coarse score are rounded to four
// decimals, zone and cell values to three.
func Build(in Input) *Report {
	ref := in.Reference
	if ref.Width == 0 {
		ref.Width = in.Alignment.ScaledWidth
	}
	if ref.Height == 0 && in.Diff != nil && in.Diff.Heatmap != nil {
		ref.Height = in.Diff.Heatmap.Height
	}

	r := &Report{
		RunID: in.RunID,
		Figma: ref,
		Alignment: Alignment{
			ScaledWidth:           in.Alignment.ScaledWidth,
			ScaledHeight:          in.Alignment.ScaledHeight,
			BestYOffset:           in.Alignment.BestYOffset,
			CoarseMAEAtBestOffset: roundTo(in.Alignment.CoarseScore, 4),
		},
		Zones:          []Zone{},
		WorstGridCells: []Cell{},
		Artifacts:      in.Artifacts,
	}

	if in.Diff == nil {
		return r
	}

	m := in.Diff.Metrics
	r.Metrics = Metrics{
		MAE:           roundTo(m.MAE, 4),
		RMSE:          roundTo(m.RMSE, 4),
		SimilarityPct: roundTo(m.SimilarityPercent, 4),
		PxDiffGt10Pct: roundTo(m.OverLowPercent, 4),
		PxDiffGt25Pct: roundTo(m.OverMediumPercent, 4),
		PxDiffGt50Pct: roundTo(m.OverHighPercent, 4),
	}

	for _, z := range in.Diff.Zones {
		r.Zones = append(r.Zones, Zone{
			Name:          z.Name,
			YStart:        z.Start,
			YEnd:          z.End,
			AvgDiff:       roundTo(z.AverageDelta, 3),
			SimilarityPct: roundTo(z.SimilarityPercent, 3),
		})
	}

	for _, c := range WorstCells(in.Diff.Cells, in.TopCells) {
		r.WorstGridCells = append(r.WorstGridCells, Cell{
			Row:           c.Row,
			Col:           c.Col,
			AvgDiff:       roundTo(c.AverageDelta, 3),
			SimilarityPct: roundTo(c.SimilarityPercent, 3),
		})
	}

	return r
}

// WorstCells returns at most n cells ordered by descending average delta.
// Cells with equal deltas keep their input (row-major) order. The input
// slice is not modified.
func WorstCells(cells []diff.Cell, n int) []diff.Cell {
	if n <= 0 {
		n = DefaultTopCells
	}

	sorted := make([]diff.Cell, len(cells))
	copy(sorted, cells)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AverageDelta > sorted[j].AverageDelta
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func roundTo(v float64, decimals int) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
