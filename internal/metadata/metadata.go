// Package metadata looks up title, description and thumbnail details for a
// video URL so admin uploads can be completed automatically.
package metadata

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/cinevault/backend/internal/models"
)

var (
	// ErrProviderUnavailable indicates the metadata provider is not configured.
	ErrProviderUnavailable = errors.New("video metadata provider unavailable")
	// ErrUnsupportedURL indicates the source is not an absolute http(s) URL.
	ErrUnsupportedURL = errors.New("metadata lookup requires an absolute http(s) url")
	// ErrEmptyMetadata indicates the source returned nothing usable.
	ErrEmptyMetadata = errors.New("metadata lookup returned no details")
)

// Metadata captures the details used to complete an upload.
type Metadata struct {
	Title       string
	Description string
	Thumbnail   string
	Uploader    string
	Duration    float64
}

// Provider returns metadata for the supplied video URL.
type Provider interface {
	Lookup(ctx context.Context, url string) (Metadata, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, url string) (Metadata, error)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(ctx context.Context, url string) (Metadata, error) {
	return f(ctx, url)
}

// FillMissing copies looked up details into the empty fields of v and
// reports whether anything changed.
func (m Metadata) FillMissing(v *models.Video) bool {
	changed := false
	if strings.TrimSpace(v.Title) == "" && m.Title != "" {
		v.Title = m.Title
		changed = true
	}
	if strings.TrimSpace(v.Description) == "" && m.Description != "" {
		v.Description = m.Description
		changed = true
	}
	if strings.TrimSpace(v.ThumbnailURL) == "" && m.Thumbnail != "" {
		v.ThumbnailURL = m.Thumbnail
		changed = true
	}
	if strings.TrimSpace(v.ThumbnailHint) == "" && m.Title != "" {
		v.ThumbnailHint = m.Title
		changed = true
	}
	return changed
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
