package core

import (
	"context"
	"io"
	"time"
)

// GenerationRequest is the inbound body of one generation call
type GenerationRequest struct {
	Prompt     string `json:"prompt"`
	Style      string `json:"style"`
	Resolution string `json:"resolution"`
	Quality    string `json:"quality"`
}

type GenerationResult struct {
	ImageURL      string `json:"imageUrl"`
	RevisedPrompt string `json:"revisedPrompt"`
}

// ImageEntry is one stored artifact as returned by the listing.
// Prompt holds the raw sidecar text; the two halves are decoded for convenience.
type ImageEntry struct {
	ImageURL       string `json:"imageUrl"`
	Prompt         string `json:"prompt"`
	OriginalPrompt string `json:"originalPrompt,omitempty"`
	RevisedPrompt  string `json:"revisedPrompt,omitempty"`
}

type ImageService interface {
	GenerateImage(ctx context.Context, request GenerationRequest) (*GenerationResult, error)
	ListImages(ctx context.Context) ([]ImageEntry, error)
	OpenImage(ctx context.Context, name string) (*ImageFile, error)
}

const (
	StyleVivid   = "vivid"
	StyleNatural = "natural"
)

var AllowedStyles = []string{StyleVivid, StyleNatural}

func ValidStyle(style string) bool {
	for _, s := range AllowedStyles {
		if s == style {
			return true
		}
	}
	return false
}

// ImageFile is an opened stored image, ready for http.ServeContent
type ImageFile struct {
	Content io.ReadSeekCloser
	Name    string
	ModTime time.Time
}

// ImagesRoute is the public path prefix stored images are served under
const ImagesRoute = "/images/"

func ImageURL(name string) string {
	return ImagesRoute + name
}
