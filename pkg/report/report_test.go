package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/kataras/figma-droid/pkg/align"
	"github.com/kataras/figma-droid/pkg/bitmap"
	"github.com/kataras/figma-droid/pkg/diff"
)

func cells(deltas ...float64) []diff.Cell {
	out := make([]diff.Cell, len(deltas))
	for i, d := range deltas {
		out[i] = diff.Cell{Row: i / 3, Col: i % 3, AverageDelta: d, SimilarityPercent: diff.Similarity(d)}
	}
	return out
}

func TestWorstCells(t *testing.T) {
	tests := []struct {
		name  string
		cells []diff.Cell
		n     int
		want  [][2]int // (row, col) in expected order
	}{
		{
			name:  "descending",
			cells: cells(1, 5, 3),
			n:     12,
			want:  [][2]int{{0, 1}, {0, 2}, {0, 0}},
		},
		{
			name:  "ties keep row-major order",
			cells: cells(2, 7, 2, 7, 0, 2),
			n:     12,
			want:  [][2]int{{0, 1}, {1, 0}, {0, 0}, {0, 2}, {1, 2}, {1, 1}},
		},
		{
			name:  "truncated",
			cells: cells(1, 2, 3, 4, 5, 6),
			n:     2,
			want:  [][2]int{{1, 2}, {1, 1}},
		},
		{
			name:  "empty",
			cells: nil,
			n:     12,
			want:  [][2]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WorstCells(tt.cells, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("WorstCells() returned %d cells, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if c.Row != tt.want[i][0] || c.Col != tt.want[i][1] {
					t.Errorf("WorstCells()[%d] = (%d,%d), want (%d,%d)", i, c.Row, c.Col, tt.want[i][0], tt.want[i][1])
				}
			}
		})
	}
}

func TestWorstCellsDefaultLimit(t *testing.T) {
	in := make([]diff.Cell, 60)
	for i := range in {
		in[i] = diff.Cell{Row: i / 6, Col: i % 6, AverageDelta: float64(i % 7)}
	}

	got := WorstCells(in, 0)
	if len(got) != DefaultTopCells {
		t.Fatalf("WorstCells(n=0) returned %d cells, want %d", len(got), DefaultTopCells)
	}
	for i := 1; i < len(got); i++ {
		if got[i].AverageDelta > got[i-1].AverageDelta {
			t.Errorf("WorstCells() not descending at %d: %v > %v", i, got[i].AverageDelta, got[i-1].AverageDelta)
		}
	}
	// The input must be left untouched.
	if in[0].AverageDelta != 0 || in[6].AverageDelta != 6 {
		t.Error("WorstCells() modified its input")
	}
}

func TestBuild(t *testing.T) {
	ref := bitmap.Solid(50, 100, 40, 75, 140)
	out, err := align.Align(ref, bitmap.Solid(100, 220, 35, 70, 135))
	if err != nil {
		t.Fatal(err)
	}
	res, err := diff.Compute(ref, out.Aligned, diff.Options{GridCols: 6, GridRows: 10})
	if err != nil {
		t.Fatal(err)
	}

	r := Build(Input{
		RunID:     "run",
		Reference: Reference{FileKey: "KEY", NodeID: "1:2", Scale: 3, UseAbsoluteBounds: true},
		Alignment: out.Result,
		Diff:      res,
		Artifacts: Artifacts{Heatmap: "out/run_heatmap.png"},
	})

	if r.Figma.Width != 50 || r.Figma.Height != 100 {
		t.Errorf("Build() reference size = %dx%d, want 50x100", r.Figma.Width, r.Figma.Height)
	}
	if r.Alignment.ScaledHeight != 110 || r.Alignment.BestYOffset != 0 {
		t.Errorf("Build() alignment = %+v, want scaled height 110 and offset 0", r.Alignment)
	}
	if r.Metrics.SimilarityPct <= 90 {
		t.Errorf("Build() SimilarityPct = %v, want > 90", r.Metrics.SimilarityPct)
	}
	if r.Metrics.MAE != 5 {
		t.Errorf("Build() MAE = %v, want 5", r.Metrics.MAE)
	}
	if want := 98.0392; r.Metrics.SimilarityPct != want {
		t.Errorf("Build() SimilarityPct = %v, want %v (rounded to 4 decimals)", r.Metrics.SimilarityPct, want)
	}
	if len(r.Zones) != 5 {
		t.Errorf("Build() returned %d zones, want 5", len(r.Zones))
	}
	if len(r.WorstGridCells) != DefaultTopCells {
		t.Errorf("Build() returned %d worst cells, want %d", len(r.WorstGridCells), DefaultTopCells)
	}
	if r.WorstGridCells[0].SimilarityPct != 98.039 {
		t.Errorf("Build() cell SimilarityPct = %v, want 98.039 (rounded to 3 decimals)", r.WorstGridCells[0].SimilarityPct)
	}
}

func TestBuildJSONShape(t *testing.T) {
	r := Build(Input{
		RunID:     "20260101_120000_abcd1234",
		Reference: Reference{FileKey: "KEY", NodeID: "1:2", Scale: 1, Width: 2, Height: 2},
		Diff: &diff.Result{
			Zones: []diff.Zone{{Band: diff.Band{Name: "header", Start: 0, End: 1}}},
			Cells: cells(1),
		},
	})

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"runId", "figma", "alignment", "metrics", "zones", "worstGridCells", "artifacts"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("report JSON is missing key %q: %s", key, data)
		}
	}
	for _, key := range []string{`"coarseMaeAtBestOffset"`, `"pxDiffGt25Pct"`, `"emulatorAligned"`, `"avgDiff"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("report JSON is missing %s: %s", key, data)
		}
	}
}

func TestMarkdown(t *testing.T) {
	r := &Report{
		RunID:          "run-1",
		Figma:          Reference{FileKey: "KEY", NodeID: "21:1074", Scale: 3, Width: 1080, Height: 2400},
		Zones:          []Zone{{Name: "header", YStart: 0, YEnd: 0.24, AvgDiff: 1.5, SimilarityPct: 99.4}},
		WorstGridCells: []Cell{{Row: 2, Col: 3, AvgDiff: 9.25, SimilarityPct: 96.37}},
		Artifacts:      Artifacts{Heatmap: "out/run-1_heatmap.png"},
	}

	md := Markdown(r)
	for _, want := range []string{"# Pixel Diff - KEY / 21:1074", "1080x2400 @3x", "| header |", "| 2 | 3 | 9.250 |", "out/run-1_heatmap.png"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() is missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Emulator (raw)") {
		t.Error("Markdown() lists an empty artifact path")
	}
}
