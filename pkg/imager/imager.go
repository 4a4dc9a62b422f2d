// Package imager exports Figma node renders as local reference PNG files.
package imager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/kataras/figma-droid/pkg/bitmap"
	"github.com/kataras/figma-droid/pkg/figma"
)

// ExportConfig holds configuration for reference export.
type ExportConfig struct {
	Scale             float64
	UseAbsoluteBounds bool
	OutputDir         string // created if missing, default "figma-references"
}

// ExportedAsset represents a single exported reference image.
type ExportedAsset struct {
	NodeID   string
	FileName string
	Width    int
	Height   int
	Scale    float64
}

// ExportResult holds the results of an export operation.
type ExportResult struct {
	Assets []ExportedAsset // in the order of the requested node IDs
	Errors []error         // non-fatal per-node failures
}

// DefaultOutputDir is used when ExportConfig.OutputDir is empty.
const DefaultOutputDir = "figma-references"

const maxNodesPerRequest = 100
const maxParallelDownloads = 5

// ExportReferences renders nodeIDs through the images API in batches,
// downloads the renders concurrently and writes every payload that decodes
// as an image to OutputDir. A failing batch request aborts the export; a
// failing node is reported in ExportResult.Errors.
func ExportReferences(ctx context.Context, client *figma.Client, fileKey string, nodeIDs []string, config ExportConfig) (*ExportResult, error) {
	if config.OutputDir == "" {
		config.OutputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %q: %w", config.OutputDir, err)
	}

	ids := normalizeNodeIDs(nodeIDs)
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}

	result := &ExportResult{}
	usedNames := make(map[string]int) // track filename collisions
	var mu sync.Mutex

	for i := 0; i < len(ids); i += maxNodesPerRequest {
		batch := ids[i:min(i+maxNodesPerRequest, len(ids))]

		imgResp, err := client.GetImages(ctx, fileKey, batch, figma.ImageRequest{
			Format:            "png",
			Scale:             config.Scale,
			UseAbsoluteBounds: config.UseAbsoluteBounds,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get images from Figma API: %w", err)
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, maxParallelDownloads)

		for _, nodeID := range batch {
			imageURL := imgResp.Images[nodeID]
			if imageURL == "" {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Errorf("no image URL returned for node %s", nodeID))
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(nID, url string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				asset, err := download(ctx, client, nID, url, config, func(name string) string {
					mu.Lock()
					defer mu.Unlock()
					return uniqueName(usedNames, name)
				})

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("failed to export node %s: %w", nID, err))
					return
				}
				result.Assets = append(result.Assets, *asset)
			}(nodeID, imageURL)
		}

		wg.Wait()
	}

	slices.SortFunc(result.Assets, func(a, b ExportedAsset) int {
		return order[a.NodeID] - order[b.NodeID]
	})

	return result, nil
}

func download(ctx context.Context, client *figma.Client, nodeID, url string, config ExportConfig, name func(string) string) (*ExportedAsset, error) {
	data, err := client.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	bm, err := bitmap.DecodeBytes(data)
	if err != nil {
		return nil, &figma.FetchError{Kind: figma.KindNotImage, Err: err}
	}

	fileName := name(buildFileName(nodeID, config.Scale))
	destPath := filepath.Join(config.OutputDir, fileName)
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file %q: %w", destPath, err)
	}

	return &ExportedAsset{
		NodeID:   nodeID,
		FileName: fileName,
		Width:    bm.Width,
		Height:   bm.Height,
		Scale:    config.Scale,
	}, nil
}

func normalizeNodeIDs(nodeIDs []string) []string {
	seen := make(map[string]bool, len(nodeIDs))
	ids := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		id = figma.NormalizeNodeID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func uniqueName(used map[string]int, fileName string) string {
	count, exists := used[fileName]
	if !exists {
		used[fileName] = 1
		return fileName
	}

	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)
	used[fileName] = count + 1
	return fmt.Sprintf("%s-%d%s", base, count+1, ext)
}

// buildFileName creates a file name from a node ID, "12:34" becoming
// "node-12-34.png". Scales above 1 get an @2x style suffix.
func buildFileName(nodeID string, scale float64) string {
	name := sanitize(strings.NewReplacer(":", "-", ";", "_").Replace(nodeID))
	if name == "" {
		name = "asset"
	}

	scaleSuffix := ""
	if scale > 1 {
		scaleSuffix = fmt.Sprintf("@%gx", scale)
	}

	return fmt.Sprintf("node-%s%s.png", name, scaleSuffix)
}

func sanitize(s string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
