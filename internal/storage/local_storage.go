package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalBlobFetcher reads artifacts from disk. With a root set, every location
// (leading slash or not) resolves inside root, mirroring URL paths.
type LocalBlobFetcher struct {
	root string
}

func NewLocalBlobFetcher(root string) *LocalBlobFetcher {
	return &LocalBlobFetcher{root: root}
}

func (l *LocalBlobFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, fmt.Errorf("empty artifact location")
	}
	path := location
	if l.root != "" {
		path = filepath.Join(l.root, strings.TrimLeft(location, "/"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
