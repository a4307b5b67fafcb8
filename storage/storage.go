package storage

import (
	"Pictor/artifact"
	"Pictor/core"
	"context"
	"io"
)

// Artifact is a complete image + prompt sidecar pair
type Artifact struct {
	Stem    artifact.Stem
	Sidecar string
}

// ArtifactStore persists artifacts. Put writes the image before the sidecar
// and never leaves an image without its sidecar behind on failure.
// List returns complete artifacts only, newest first.
type ArtifactStore interface {
	Put(ctx context.Context, stem artifact.Stem, image io.Reader, sidecar string) (int64, error)
	List(ctx context.Context) ([]Artifact, error)
	OpenImage(ctx context.Context, name string) (*core.ImageFile, error)
	Close() error
}
