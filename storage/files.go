package storage

import (
	"Pictor/artifact"
	"Pictor/core"
	"Pictor/lib/sl"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const sidecarReaders = 8

// FileStore keeps artifacts as a flat directory of {stem}.png and {stem}.prompt files
type FileStore struct {
	dir string
	log *slog.Logger
}

func NewFileStore(dir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating images directory: %w", err)
	}
	return &FileStore{
		dir: dir,
		log: log.With(sl.Module("file-store")),
	}, nil
}

func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) Put(ctx context.Context, stem artifact.Stem, image io.Reader, sidecar string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.Storage(err)
	}

	imagePath := filepath.Join(f.dir, stem.ImageName())
	written, err := f.writeFile(imagePath, image)
	if err != nil {
		return written, core.Storage(fmt.Errorf("writing image: %w", err))
	}

	if _, err = f.writeFile(filepath.Join(f.dir, stem.SidecarName()), strings.NewReader(sidecar)); err != nil {
		if rmErr := os.Remove(imagePath); rmErr != nil {
			f.log.With(sl.Stem(stem.String())).Error("removing image without sidecar", sl.Err(rmErr))
		}
		return written, core.Storage(fmt.Errorf("writing sidecar: %w", err))
	}

	f.log.With(
		sl.Stem(stem.String()),
		slog.Int64("bytes", written),
	).Debug("artifact stored")
	return written, nil
}

// writeFile streams r into a hidden temp file next to path and renames it
// into place, so a partially written file is never visible under its name
func (f *FileStore) writeFile(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(f.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		return written, fail(err)
	}
	if err = tmp.Chmod(0644); err != nil {
		return written, fail(err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return written, err
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return written, err
	}
	return written, nil
}

func (f *FileStore) List(ctx context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, core.Storage(fmt.Errorf("reading images directory: %w", err))
	}

	var stems []artifact.Stem
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if stem, ok := artifact.StemFromImageName(entry.Name()); ok {
			stems = append(stems, stem)
		}
	}
	sort.Slice(stems, func(i, j int) bool {
		return stems[i] > stems[j]
	})

	found := make([]*Artifact, len(stems))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sidecarReaders)
	for i, stem := range stems {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(f.dir, stem.SidecarName()))
			if errors.Is(err, fs.ErrNotExist) {
				// image written, sidecar not yet (or rolled back): not visible
				f.log.With(sl.Stem(stem.String())).Warn("image without sidecar skipped")
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = &Artifact{Stem: stem, Sidecar: string(data)}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, core.Storage(fmt.Errorf("reading sidecar: %w", err))
	}

	artifacts := make([]Artifact, 0, len(found))
	for _, a := range found {
		if a != nil {
			artifacts = append(artifacts, *a)
		}
	}
	return artifacts, nil
}

func (f *FileStore) OpenImage(_ context.Context, name string) (*core.ImageFile, error) {
	if filepath.Base(name) != name {
		return nil, core.ErrNotFound
	}
	if _, ok := artifact.StemFromImageName(name); !ok {
		return nil, core.ErrNotFound
	}

	file, err := os.Open(filepath.Join(f.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.Storage(fmt.Errorf("opening image: %w", err))
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, core.Storage(fmt.Errorf("stat image: %w", err))
	}
	return &core.ImageFile{
		Content: file,
		Name:    name,
		ModTime: info.ModTime(),
	}, nil
}

func (f *FileStore) Close() error {
	return nil
}
