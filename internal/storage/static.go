package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// StaticHost maps files in the upload directory to a public base URL under
// which the web layer already serves them. Nothing is copied.
type StaticHost struct {
	BaseURL string
}

// NewStaticHost returns a host for baseURL, or nil when baseURL is empty.
func NewStaticHost(baseURL string) *StaticHost {
	if baseURL == "" {
		return nil
	}
	return &StaticHost{BaseURL: strings.TrimRight(baseURL, "/")}
}

// PublicURL returns BaseURL + "/" + the file name. The file must exist
// locally; reachability at the URL is the web layer's responsibility.
func (h *StaticHost) PublicURL(_ context.Context, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("storage static: %w", err)
	}
	return h.BaseURL + "/" + url.PathEscape(filepath.Base(localPath)), nil
}
