package report

import (
	"fmt"
	"strings"
)

// Markdown renders a report as a short human-readable document: reference,
// alignment, global metrics, zone table, worst cells and artifact paths.
func Markdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Pixel Diff - %s / %s\n\n", r.Figma.FileKey, r.Figma.NodeID))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run `%s`\n\n", r.RunID))
	}

	// Reference
	sb.WriteString("## Reference\n\n")
	sb.WriteString(fmt.Sprintf("- **Size:** %dx%d @%gx\n", r.Figma.Width, r.Figma.Height, r.Figma.Scale))
	sb.WriteString(fmt.Sprintf("- **Absolute bounds:** %t\n\n", r.Figma.UseAbsoluteBounds))

	// Alignment
	sb.WriteString("## Alignment\n\n")
	sb.WriteString(fmt.Sprintf("- **Scaled capture:** %dx%d\n", r.Alignment.ScaledWidth, r.Alignment.ScaledHeight))
	sb.WriteString(fmt.Sprintf("- **Best Y offset:** %dpx\n", r.Alignment.BestYOffset))
	sb.WriteString(fmt.Sprintf("- **Coarse MAE at offset:** %.4f\n\n", r.Alignment.CoarseMAEAtBestOffset))

	// Metrics
	sb.WriteString("## Metrics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Similarity | %.2f%% |\n", r.Metrics.SimilarityPct))
	sb.WriteString(fmt.Sprintf("| MAE | %.4f |\n", r.Metrics.MAE))
	sb.WriteString(fmt.Sprintf("| RMSE | %.4f |\n", r.Metrics.RMSE))
	sb.WriteString(fmt.Sprintf("| Pixels with delta > 10 | %.2f%% |\n", r.Metrics.PxDiffGt10Pct))
	sb.WriteString(fmt.Sprintf("| Pixels with delta > 25 | %.2f%% |\n", r.Metrics.PxDiffGt25Pct))
	sb.WriteString(fmt.Sprintf("| Pixels with delta > 50 | %.2f%% |\n\n", r.Metrics.PxDiffGt50Pct))

	if len(r.Zones) > 0 {
		sb.WriteString("## Zones\n\n")
		sb.WriteString("| Zone | Band | Avg diff | Similarity |\n")
		sb.WriteString("|------|------|----------|------------|\n")
		for _, z := range r.Zones {
			sb.WriteString(fmt.Sprintf("| %s | %.2f-%.2f | %.3f | %.2f%% |\n", z.Name, z.YStart, z.YEnd, z.AvgDiff, z.SimilarityPct))
		}
		sb.WriteString("\n")
	}

	if len(r.WorstGridCells) > 0 {
		sb.WriteString("## Worst Grid Cells\n\n")
		sb.WriteString("| Row | Col | Avg diff | Similarity |\n")
		sb.WriteString("|-----|-----|----------|------------|\n")
		for _, c := range r.WorstGridCells {
			sb.WriteString(fmt.Sprintf("| %d | %d | %.3f | %.2f%% |\n", c.Row, c.Col, c.AvgDiff, c.SimilarityPct))
		}
		sb.WriteString("\n")
	}

	// Artifacts
	sb.WriteString("## Artifacts\n\n")
	writeArtifact(&sb, "Emulator (raw)", r.Artifacts.EmulatorRaw)
	writeArtifact(&sb, "Figma node", r.Artifacts.FigmaNode)
	writeArtifact(&sb, "Emulator (scaled)", r.Artifacts.EmulatorScaled)
	writeArtifact(&sb, "Emulator (aligned)", r.Artifacts.EmulatorAligned)
	writeArtifact(&sb, "Heatmap", r.Artifacts.Heatmap)

	return sb.String()
}

func writeArtifact(sb *strings.Builder, label, path string) {
	if path == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("- **%s:** `%s`\n", label, path))
}
