package diff

import (
	"errors"
	"fmt"
)

// Band is a named horizontal slice of the image, in fractions of its height.
// Start is inclusive and End exclusive.
type Band struct {
	Name  string  `json:"name" yaml:"name"`
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Contains reports whether the normalized row position y falls in the band.
func (b Band) Contains(y float64) bool {
	return b.Start <= y && y < b.End
}

// DefaultZones is the sample layout of a dashboard-style mobile screen:
// header, a row of cards, a gap analysis block, a strategy band and the
// bottom navigation bar.
func DefaultZones() []Band {
	return []Band{
		{Name: "header", Start: 0.00, End: 0.24},
		{Name: "cards", Start: 0.24, End: 0.47},
		{Name: "gap_analysis", Start: 0.47, End: 0.72},
		{Name: "strategy_band", Start: 0.72, End: 0.87},
		{Name: "bottom_nav", Start: 0.87, End: 1.00},
	}
}

// ErrNoZones is returned by ValidateZones for an empty band list.
var ErrNoZones = errors.New("at least one zone is required")

// ValidateZones checks that bands are named, ordered and contiguous and that
// together they cover [0, 1), so every row lands in exactly one band.
func ValidateZones(bands []Band) error {
	if len(bands) == 0 {
		return ErrNoZones
	}

	if bands[0].Start != 0 {
		return fmt.Errorf("zone %q must start at 0, got %g", bands[0].Name, bands[0].Start)
	}

	for i, b := range bands {
		if b.Name == "" {
			return fmt.Errorf("zone %d has no name", i)
		}
		if b.Start >= b.End {
			return fmt.Errorf("zone %q is empty: start %g >= end %g", b.Name, b.Start, b.End)
		}
		if i > 0 && bands[i-1].End != b.Start {
			return fmt.Errorf("zone %q starts at %g but previous zone %q ends at %g", b.Name, b.Start, bands[i-1].Name, bands[i-1].End)
		}
	}

	if last := bands[len(bands)-1]; last.End < 1 {
		return fmt.Errorf("zone %q must end at 1, got %g", last.Name, last.End)
	}

	return nil
}

// zoneOf returns the index of the first band containing y, or -1.
func zoneOf(bands []Band, y float64) int {
	for i, b := range bands {
		if b.Contains(y) {
			return i
		}
	}
	return -1
}
