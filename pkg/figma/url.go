package figma

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// TokenEnv is the environment variable consulted when no token is passed.
const TokenEnv = "FIGMA_TOKEN"

var fileKeyRe = regexp.MustCompile(`^https?://(?:www\.)?figma\.com/(?:file|design)/([A-Za-z0-9]+)(?:/|$)`)

// ExtractFileKey extracts the unique file identifier from a Figma URL.
// Supports both /file/ and /design/ URL patterns (e.g., figma.com/file/ABC123/Design-Name).
// Returns an error if the URL format is invalid or if the URL doesn't match the expected Figma domain pattern.
func ExtractFileKey(figmaURL string) (string, error) {
	// Anchored to ensure the entire URL matches the expected pattern and prevent bypass attacks.
	matches := fileKeyRe.FindStringSubmatch(figmaURL)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Figma URL format: must be a valid figma.com URL with /file/ or /design/ path")
	}

	return matches[1], nil
}

// ExtractNodeIDs returns the node IDs referenced by a Figma URL, from the
// node-id query parameter, the hash fragment or a /nodes/ path segment, in
// that order of preference. IDs written with a dash (as in browser URLs) are
// normalized to the API's colon form. Duplicates are removed, order is kept.
func ExtractNodeIDs(figmaURL string) ([]string, error) {
	u, err := url.Parse(figmaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	raw := u.Query().Get("node-id")
	if raw == "" {
		raw = u.Fragment
	}
	if raw == "" {
		if i := strings.Index(u.Path, "/nodes/"); i >= 0 {
			raw = u.Path[i+len("/nodes/"):]
		}
	}

	ids := []string{}
	for _, part := range strings.Split(raw, ",") {
		id := NormalizeNodeID(part)
		if id != "" {
			ids = append(ids, id)
		}
	}

	return deduplicateNodeIDs(ids), nil
}

// NormalizeNodeID trims id and converts the dash separator to a colon.
func NormalizeNodeID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", ":")
}

// ResolveFileKey accepts either a raw file key or a figma.com URL.
func ResolveFileKey(input string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return ExtractFileKey(input)
	}
	return input, nil
}

// ResolveToken returns explicit when set, otherwise the FIGMA_TOKEN
// environment variable. Both are trimmed; an empty result is an error.
func ResolveToken(explicit string) (string, error) {
	token := strings.TrimSpace(explicit)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(TokenEnv))
	}
	if token == "" {
		return "", ErrTokenRequired
	}
	return token, nil
}

func deduplicateNodeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
