package figma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kataras/figma-droid/pkg/bitmap"
)

const (
	// DefaultBaseURL is the Figma REST API root.
	DefaultBaseURL = "https://api.figma.com/v1"
	// DefaultTimeout bounds every request, including the image download.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
)

// Client represents a Figma API client used to render design nodes as
// images and download them.
type Client struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, mostly useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new Figma API client with the provided personal access token.
// accessToken may be empty when every request carries its own token.
func NewClient(accessToken string, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}

	c := &Client{
		accessToken: accessToken,
		baseURL:     DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetImages asks Figma to render the given nodes and returns the download
// URL of each one. A non-empty "err" field in the response body is reported
// as a not_found error.
func (c *Client) GetImages(ctx context.Context, fileKey string, nodeIDs []string, opts ImageRequest) (*ImagesResponse, error) {
	return c.getImages(ctx, c.accessToken, fileKey, nodeIDs, opts)
}

func (c *Client) getImages(ctx context.Context, token, fileKey string, nodeIDs []string, opts ImageRequest) (*ImagesResponse, error) {
	if token == "" {
		return nil, &FetchError{Kind: KindAuth, Err: ErrTokenRequired}
	}

	format := opts.Format
	if format == "" {
		format = "png"
	}

	q := url.Values{}
	q.Set("ids", strings.Join(nodeIDs, ","))
	q.Set("format", format)
	if opts.Scale > 0 {
		q.Set("scale", strconv.FormatFloat(opts.Scale, 'f', -1, 64))
	}
	q.Set("use_absolute_bounds", strconv.FormatBool(opts.UseAbsoluteBounds))

	endpoint := fmt.Sprintf("%s/images/%s?%s", c.baseURL, url.PathEscape(fileKey), q.Encode())

	body, err := c.get(ctx, endpoint, token)
	if err != nil {
		return nil, err
	}

	var imagesResp ImagesResponse
	if err := json.Unmarshal(body, &imagesResp); err != nil {
		return nil, fetchErr(KindBadResponse, http.StatusOK, "failed to parse response: %w", err)
	}
	if imagesResp.Err != "" {
		return nil, fetchErr(KindNotFound, 0, "Figma image API error: %s", imagesResp.Err)
	}

	return &imagesResp, nil
}

// Download fetches the bytes behind a rendered image URL. The URL is
// pre-signed, so no token is sent.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	return c.get(ctx, imageURL, "")
}

// FetchReferenceImage renders a single node as PNG, downloads it and decodes
// it into a bitmap. The request token takes precedence over the client token;
// when neither is set the call fails before reaching the network.
func (c *Client) FetchReferenceImage(ctx context.Context, req ReferenceRequest) (*bitmap.Bitmap, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = c.accessToken
	}
	if token == "" {
		return nil, &FetchError{Kind: KindAuth, Err: ErrTokenRequired}
	}

	nodeID := NormalizeNodeID(req.NodeID)
	imagesResp, err := c.getImages(ctx, token, req.FileKey, []string{nodeID}, ImageRequest{
		Format:            "png",
		Scale:             req.Scale,
		UseAbsoluteBounds: req.UseAbsoluteBounds,
	})
	if err != nil {
		return nil, err
	}

	imageURL := imagesResp.Images[nodeID]
	if imageURL == "" {
		return nil, fetchErr(KindNotFound, 0, "Figma did not return an image URL for node %s", nodeID)
	}

	data, err := c.Download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	bm, err := bitmap.DecodeBytes(data)
	if err != nil {
		return nil, &FetchError{Kind: KindNotImage, Err: err}
	}

	return bm, nil
}

func (c *Client) get(ctx context.Context, endpoint, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fetchErr(KindTransport, 0, "failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("X-Figma-Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fetchErr(KindTransport, 0, "failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fetchErr(statusKind(resp.StatusCode), resp.StatusCode, "API request failed: %s", errorMessage(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErr(KindTransport, resp.StatusCode, "failed to read response body: %w", err)
	}

	return body, nil
}

func statusKind(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindBadResponse
	}
}

func errorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Err != "" {
			return errResp.Err
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}
	return string(bytes.TrimSpace(body))
}
