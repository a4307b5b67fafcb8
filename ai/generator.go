package ai

import (
	"Pictor/artifact"
	"Pictor/core"
	"Pictor/lib/sl"
	"Pictor/storage"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ImageGenerator runs the generation pipeline: validate, generate, download,
// store image and prompt sidecar. It also reads the stored artifacts back.
type ImageGenerator struct {
	conf   *core.Config
	log    *slog.Logger
	dalle  *DallE
	store  storage.ArtifactStore
	now    func() time.Time
	random io.Reader
}

func NewImageGenerator(conf *core.Config, log *slog.Logger, store storage.ArtifactStore) *ImageGenerator {
	return &ImageGenerator{
		conf:   conf,
		log:    log.With(sl.Module("image-generator")),
		dalle:  NewDallE(conf, log),
		store:  store,
		now:    time.Now,
		random: rand.Reader,
	}
}

func (g *ImageGenerator) GenerateImage(ctx context.Context, request core.GenerationRequest) (*core.GenerationResult, error) {
	log := g.log.With(
		slog.String("style", request.Style),
		slog.String("resolution", request.Resolution),
		slog.String("quality", request.Quality),
	)
	log.With(sl.Truncate("prompt", request.Prompt, 200)).Info("generation request")

	if !core.ValidStyle(request.Style) {
		return nil, core.InvalidInput("style %q is not one of %v", request.Style, core.AllowedStyles)
	}

	image, err := g.dalle.Generate(ctx, NewImageRequest(g.conf.Model, request))
	if err != nil {
		return nil, err
	}

	body, err := g.dalle.Download(ctx, image.URL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := body.Close(); err != nil {
			log.Warn("closing image stream", sl.Err(err))
		}
	}()

	stem, err := artifact.NewStem(g.now(), request.Style, request.Quality, request.Resolution, g.random)
	if err != nil {
		return nil, core.Storage(fmt.Errorf("deriving file name: %w", err))
	}

	written, err := g.store.Put(ctx, stem, body, artifact.EncodeSidecar(request.Prompt, image.RevisedPrompt))
	if err != nil {
		return nil, err
	}
	log.With(
		sl.Stem(stem.String()),
		slog.Int64("bytes", written),
	).Info("image stored")

	return &core.GenerationResult{
		ImageURL:      core.ImageURL(stem.ImageName()),
		RevisedPrompt: image.RevisedPrompt,
	}, nil
}

// ListImages returns every stored artifact, newest first
func (g *ImageGenerator) ListImages(ctx context.Context) ([]core.ImageEntry, error) {
	artifacts, err := g.store.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]core.ImageEntry, 0, len(artifacts))
	for _, a := range artifacts {
		entry := core.ImageEntry{
			ImageURL: core.ImageURL(a.Stem.ImageName()),
			Prompt:   a.Sidecar,
		}
		if original, revised, ok := artifact.DecodeSidecar(a.Sidecar); ok {
			entry.OriginalPrompt = original
			entry.RevisedPrompt = revised
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (g *ImageGenerator) OpenImage(ctx context.Context, name string) (*core.ImageFile, error) {
	return g.store.OpenImage(ctx, name)
}

func (g *ImageGenerator) Close() error {
	return g.store.Close()
}
