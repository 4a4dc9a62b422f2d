package imager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kataras/figma-droid/pkg/bitmap"
	"github.com/kataras/figma-droid/pkg/figma"
)

// newFakeFigma serves renders for every requested id. Node 9:9 renders to a
// non-image payload and node 0:0 gets no URL.
func newFakeFigma(t *testing.T, batches *atomic.Int32) *httptest.Server {
	t.Helper()

	png, err := bitmap.Solid(4, 6, 10, 20, 30).PNG()
	if err != nil {
		t.Fatal(err)
	}

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/images/{key}", func(w http.ResponseWriter, r *http.Request) {
		batches.Add(1)
		images := make(map[string]string)
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if id == "0:0" {
				images[id] = ""
				continue
			}
			images[id] = srv.URL + "/render/" + id
		}
		json.NewEncoder(w).Encode(figma.ImagesResponse{Images: images})
	})
	mux.HandleFunc("GET /render/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "9:9" {
			w.Write([]byte("<html>not an image</html>"))
			return
		}
		w.Write(png)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExportReferences(t *testing.T) {
	var batches atomic.Int32
	srv := newFakeFigma(t, &batches)
	client := figma.NewClient("secret", figma.WithBaseURL(srv.URL+"/v1"))
	dir := filepath.Join(t.TempDir(), "refs")

	result, err := ExportReferences(context.Background(), client, "FILE",
		[]string{"1-2", "3:4", "1:2", "9:9", "0:0"},
		ExportConfig{Scale: 2, OutputDir: dir})
	if err != nil {
		t.Fatalf("ExportReferences() error: %v", err)
	}

	if batches.Load() != 1 {
		t.Errorf("images requests = %d, want 1", batches.Load())
	}

	if len(result.Assets) != 2 {
		t.Fatalf("exported %d assets, want 2: %+v", len(result.Assets), result.Assets)
	}
	wantFiles := []string{"node-1-2@2x.png", "node-3-4@2x.png"}
	for i, asset := range result.Assets {
		if asset.FileName != wantFiles[i] {
			t.Errorf("asset[%d].FileName = %q, want %q", i, asset.FileName, wantFiles[i])
		}
		if asset.Width != 4 || asset.Height != 6 {
			t.Errorf("asset[%d] = %dx%d, want 4x6", i, asset.Width, asset.Height)
		}
		if _, err := os.Stat(filepath.Join(dir, asset.FileName)); err != nil {
			t.Errorf("asset[%d] not written: %v", i, err)
		}
	}

	if len(result.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(result.Errors), result.Errors)
	}
	var notImage bool
	for _, err := range result.Errors {
		if figma.IsKind(err, figma.KindNotImage) {
			notImage = true
		}
	}
	if !notImage {
		t.Errorf("errors = %v, want a not_image error", result.Errors)
	}
}

func TestExportReferencesBatches(t *testing.T) {
	var batches atomic.Int32
	srv := newFakeFigma(t, &batches)
	client := figma.NewClient("secret", figma.WithBaseURL(srv.URL+"/v1"))

	ids := make([]string, 0, maxNodesPerRequest+1)
	for i := 0; i <= maxNodesPerRequest; i++ {
		ids = append(ids, fmt.Sprintf("1:%d", i))
	}

	result, err := ExportReferences(context.Background(), client, "FILE", ids, ExportConfig{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if batches.Load() != 2 {
		t.Errorf("images requests = %d, want 2", batches.Load())
	}
	if len(result.Assets) != len(ids) {
		t.Errorf("exported %d assets, want %d", len(result.Assets), len(ids))
	}
	for i, asset := range result.Assets {
		if asset.NodeID != ids[i] {
			t.Fatalf("asset[%d].NodeID = %q, want %q", i, asset.NodeID, ids[i])
		}
	}
}

func TestExportReferencesRequestError(t *testing.T) {
	var batches atomic.Int32
	srv := newFakeFigma(t, &batches)
	client := figma.NewClient("", figma.WithBaseURL(srv.URL+"/v1"))

	_, err := ExportReferences(context.Background(), client, "FILE", []string{"1:2"}, ExportConfig{OutputDir: t.TempDir()})
	if !errors.Is(err, figma.ErrTokenRequired) {
		t.Errorf("error = %v, want ErrTokenRequired", err)
	}
	if batches.Load() != 0 {
		t.Errorf("images requested without a token")
	}
}

func TestBuildFileName(t *testing.T) {
	tests := []struct {
		nodeID string
		scale  float64
		want   string
	}{
		{"12:34", 1, "node-12-34.png"},
		{"12:34", 0, "node-12-34.png"},
		{"12:34", 2, "node-12-34@2x.png"},
		{"12:34", 1.5, "node-12-34@1.5x.png"},
		{"I5:6;7:8", 1, "node-i5-6_7-8.png"},
		{"", 1, "node-asset.png"},
	}

	for _, tt := range tests {
		if got := buildFileName(tt.nodeID, tt.scale); got != tt.want {
			t.Errorf("buildFileName(%q, %g) = %q, want %q", tt.nodeID, tt.scale, got, tt.want)
		}
	}
}

func TestUniqueName(t *testing.T) {
	used := make(map[string]int)
	got := []string{
		uniqueName(used, "node-1-2.png"),
		uniqueName(used, "node-1-2.png"),
		uniqueName(used, "node-1-2.png"),
	}
	want := []string{"node-1-2.png", "node-1-2-2.png", "node-1-2-3.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("uniqueName #%d = %q, want %q", i, got[i], want[i])
		}
	}
}
