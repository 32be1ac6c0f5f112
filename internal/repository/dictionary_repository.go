package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/internal/storage"
	"github.com/anime-shed/live-ocr-go/pkg/validation"
)

const reloadDebounce = 100 * time.Millisecond

// dictionaryRepository loads { "brands": [] } documents from a file or an http(s) URL
type dictionaryRepository struct {
	source  string
	remote  bool
	fetcher storage.BlobFetcher
}

// NewDictionaryRepository creates a repository for a file path or http(s) URL
func NewDictionaryRepository(source string) DictionaryRepository {
	remote := validation.IsRemote(source)
	var fetcher storage.BlobFetcher
	if remote {
		fetcher = storage.NewHTTPBlobFetcher("")
	} else {
		fetcher = storage.NewLocalBlobFetcher("")
	}
	return &dictionaryRepository{source: source, remote: remote, fetcher: fetcher}
}

func (r *dictionaryRepository) Source() string {
	return r.source
}

// Load fetches and decodes the dictionary
func (r *dictionaryRepository) Load(ctx context.Context) ([]string, error) {
	data, err := r.fetcher.Fetch(ctx, r.source)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}
	return Decode(data)
}

// Decode parses a dictionary document. Entries are trimmed, blanks dropped, order kept.
func Decode(data []byte) ([]string, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDictionary, err)
	}
	if doc.Brands == nil {
		return nil, fmt.Errorf("%w: missing \"brands\" array", ErrInvalidDictionary)
	}

	entries := make([]string, 0, len(doc.Brands))
	for _, b := range doc.Brands {
		if b = strings.TrimSpace(b); b != "" {
			entries = append(entries, b)
		}
	}
	return entries, nil
}

// Watch reloads the dictionary file when it is written, created or renamed
// into place. Invalid documents are logged and the previous entries stay in use.
func (r *dictionaryRepository) Watch(ctx context.Context, onChange func([]string)) error {
	if r.remote {
		return ErrWatchUnsupported
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(r.source)
	if err != nil {
		return err
	}
	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			reload = timer.C

		case <-reload:
			reload = nil
			entries, err := r.Load(ctx)
			if err != nil {
				logger.WithError(err).WithField("source", r.source).Warn("Dictionary reload failed, keeping previous entries")
				continue
			}
			logger.WithFields(logrus.Fields{
				"source":  r.source,
				"entries": len(entries),
			}).Info("Dictionary reloaded")
			onChange(entries)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Dictionary watcher error")
		}
	}
}
