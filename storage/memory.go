package storage

import (
	"Pictor/artifact"
	"Pictor/core"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type memoryArtifact struct {
	image     []byte
	sidecar   string
	createdAt time.Time
}

// MemoryStore keeps artifacts in process memory; nothing survives a restart
type MemoryStore struct {
	artifacts map[artifact.Stem]*memoryArtifact
	mutex     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[artifact.Stem]*memoryArtifact),
	}
}

func (m *MemoryStore) Put(ctx context.Context, stem artifact.Stem, image io.Reader, sidecar string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.Storage(err)
	}
	data, err := io.ReadAll(image)
	if err != nil {
		return int64(len(data)), core.Storage(fmt.Errorf("reading image: %w", err))
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.artifacts[stem] = &memoryArtifact{
		image:     data,
		sidecar:   sidecar,
		createdAt: time.Now(),
	}
	return int64(len(data)), nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Storage(err)
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	artifacts := make([]Artifact, 0, len(m.artifacts))
	for stem, a := range m.artifacts {
		artifacts = append(artifacts, Artifact{Stem: stem, Sidecar: a.sidecar})
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Stem > artifacts[j].Stem
	})
	return artifacts, nil
}

func (m *MemoryStore) OpenImage(_ context.Context, name string) (*core.ImageFile, error) {
	stem, ok := artifact.StemFromImageName(name)
	if !ok {
		return nil, core.ErrNotFound
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	a, ok := m.artifacts[stem]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &core.ImageFile{
		Content: nopCloser{bytes.NewReader(a.image)},
		Name:    name,
		ModTime: a.createdAt,
	}, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error {
	return nil
}
