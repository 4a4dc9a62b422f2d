package figma

// ImagesResponse represents the response of the Figma image render endpoint
// (GET /v1/images/:key). Images maps each requested node ID to a short-lived
// download URL; a node that could not be rendered maps to an empty string.
type ImagesResponse struct {
	Err    string            `json:"err"`
	Images map[string]string `json:"images"`
	Status int               `json:"status,omitempty"`
}

// ErrorResponse is the body Figma sends with non-2xx responses.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Err     string `json:"err"`
	Message string `json:"message"`
}

// ImageRequest holds the render options of an image export.
type ImageRequest struct {
	Format            string  // "png" (default), "jpg", "svg" or "pdf"
	Scale             float64 // 0.01 to 4
	UseAbsoluteBounds bool    // render the full node bounds, ignoring cropping by parents
}

// ReferenceRequest identifies the design node used as the reference image.
type ReferenceRequest struct {
	FileKey           string
	NodeID            string
	Scale             float64
	UseAbsoluteBounds bool
	Token             string // overrides the client token when set
}
