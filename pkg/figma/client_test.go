package figma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kataras/figma-droid/pkg/bitmap"
)

type fakeFigma struct {
	*httptest.Server
	hits  atomic.Int32
	token string
	png   []byte

	imagesStatus int
	imagesBody   string // overrides the generated JSON when set
	lastQuery    atomic.Value
}

func (f *fakeFigma) query() string {
	v, _ := f.lastQuery.Load().(string)
	return v
}

func newFakeFigma(t *testing.T) *fakeFigma {
	t.Helper()

	png, err := bitmap.Solid(4, 6, 10, 20, 30).PNG()
	if err != nil {
		t.Fatal(err)
	}

	f := &fakeFigma{token: "secret", png: png}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/images/{key}", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.lastQuery.Store(r.URL.RawQuery)

		if r.Header.Get("X-Figma-Token") != f.token {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"status":403,"err":"Invalid token"}`))
			return
		}
		if r.PathValue("key") != "FILE" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":404,"err":"Not found"}`))
			return
		}
		if f.imagesStatus != 0 {
			w.WriteHeader(f.imagesStatus)
		}
		if f.imagesBody != "" {
			w.Write([]byte(f.imagesBody))
			return
		}

		id := r.URL.Query().Get("ids")
		json.NewEncoder(w).Encode(ImagesResponse{Images: map[string]string{id: f.URL + "/render/" + id}})
	})
	mux.HandleFunc("GET /render/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.PathValue("id") == "9:9" {
			w.Write([]byte("<html>not an image</html>"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.png)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeFigma) client(token string) *Client {
	return NewClient(token, WithBaseURL(f.URL+"/v1"))
}

func TestFetchReferenceImage(t *testing.T) {
	f := newFakeFigma(t)

	bm, err := f.client("").FetchReferenceImage(context.Background(), ReferenceRequest{
		FileKey: "FILE",
		NodeID:  "1-2",
		Scale:   2,
		Token:   "secret",
	})
	if err != nil {
		t.Fatalf("FetchReferenceImage() error = %v", err)
	}
	if bm.Width != 4 || bm.Height != 6 {
		t.Errorf("FetchReferenceImage() size = %dx%d, want 4x6", bm.Width, bm.Height)
	}
	if r, g, b := bm.At(3, 5); r != 10 || g != 20 || b != 30 {
		t.Errorf("FetchReferenceImage() pixel = (%d,%d,%d), want (10,20,30)", r, g, b)
	}

	want := "format=png&ids=1%3A2&scale=2&use_absolute_bounds=false"
	if got := f.query(); got != want {
		t.Errorf("images query = %q, want %q", got, want)
	}
}

func TestFetchReferenceImageClientToken(t *testing.T) {
	f := newFakeFigma(t)

	_, err := f.client("secret").FetchReferenceImage(context.Background(), ReferenceRequest{
		FileKey:           "FILE",
		NodeID:            "1:2",
		Scale:             1,
		UseAbsoluteBounds: true,
	})
	if err != nil {
		t.Fatalf("FetchReferenceImage() error = %v", err)
	}
	if got := f.query(); got != "format=png&ids=1%3A2&scale=1&use_absolute_bounds=true" {
		t.Errorf("images query = %q", got)
	}
}

func TestFetchReferenceImageErrors(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		fileKey    string
		nodeID     string
		status     int
		body       string
		wantKind   ErrorKind
		wantStatus int
	}{
		{name: "rejected token", token: "wrong", fileKey: "FILE", nodeID: "1:2", wantKind: KindAuth, wantStatus: 403},
		{name: "unknown file", token: "secret", fileKey: "NOPE", nodeID: "1:2", wantKind: KindNotFound, wantStatus: 404},
		{name: "api err field", token: "secret", fileKey: "FILE", nodeID: "1:2", body: `{"err":"node not renderable","images":{}}`, wantKind: KindNotFound},
		{name: "null image url", token: "secret", fileKey: "FILE", nodeID: "1:2", body: `{"err":null,"images":{"1:2":null}}`, wantKind: KindNotFound},
		{name: "server error", token: "secret", fileKey: "FILE", nodeID: "1:2", status: 500, body: `oops`, wantKind: KindBadResponse, wantStatus: 500},
		{name: "malformed json", token: "secret", fileKey: "FILE", nodeID: "1:2", body: `{`, wantKind: KindBadResponse, wantStatus: 200},
		{name: "payload not an image", token: "secret", fileKey: "FILE", nodeID: "9:9", wantKind: KindNotImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFigma(t)
			f.imagesStatus = tt.status
			f.imagesBody = tt.body

			_, err := f.client(tt.token).FetchReferenceImage(context.Background(), ReferenceRequest{
				FileKey: tt.fileKey,
				NodeID:  tt.nodeID,
				Scale:   1,
			})

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("FetchReferenceImage() error = %v, want *FetchError", err)
			}
			if fe.Kind != tt.wantKind {
				t.Errorf("FetchError.Kind = %q, want %q (%v)", fe.Kind, tt.wantKind, err)
			}
			if fe.StatusCode != tt.wantStatus {
				t.Errorf("FetchError.StatusCode = %d, want %d", fe.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestFetchReferenceImageWithoutToken(t *testing.T) {
	f := newFakeFigma(t)

	_, err := f.client("").FetchReferenceImage(context.Background(), ReferenceRequest{FileKey: "FILE", NodeID: "1:2"})
	if !errors.Is(err, ErrTokenRequired) || !IsKind(err, KindAuth) {
		t.Fatalf("FetchReferenceImage() error = %v, want auth ErrTokenRequired", err)
	}
	if n := f.hits.Load(); n != 0 {
		t.Errorf("server received %d requests, want 0", n)
	}
}

func TestFetchReferenceImageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	_, err := c.FetchReferenceImage(context.Background(), ReferenceRequest{FileKey: "FILE", NodeID: "1:2"})
	if !IsKind(err, KindTransport) {
		t.Fatalf("FetchReferenceImage() error = %v, want transport error", err)
	}
}

func TestGetImagesMultipleNodes(t *testing.T) {
	f := newFakeFigma(t)
	f.imagesBody = `{"err":null,"images":{"1:2":"https://a","3:4":"https://b"}}`

	resp, err := f.client("secret").GetImages(context.Background(), "FILE", []string{"1:2", "3:4"}, ImageRequest{Format: "jpg"})
	if err != nil {
		t.Fatalf("GetImages() error = %v", err)
	}
	if len(resp.Images) != 2 || resp.Images["3:4"] != "https://b" {
		t.Errorf("GetImages() images = %v", resp.Images)
	}
	if got := f.query(); got != "format=jpg&ids=1%3A2%2C3%3A4&use_absolute_bounds=false" {
		t.Errorf("images query = %q", got)
	}
}
