// Package loader fetches the engine runtime module and model blobs and
// turns them into a ready engine.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/live-ocr-go/internal/engine"
	apperrors "github.com/anime-shed/live-ocr-go/internal/errors"
	"github.com/anime-shed/live-ocr-go/internal/factory"
	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/internal/storage"
)

// Artifact names one of the three blobs an engine needs.
type Artifact string

const (
	ArtifactRuntime     Artifact = "runtime"
	ArtifactDetection   Artifact = "detection"
	ArtifactRecognition Artifact = "recognition"
)

// Options locates the artifacts and selects the engine they are loaded into.
type Options struct {
	EngineType   factory.EngineType
	Language     string
	Runtime      string
	Detection    string
	Recognition  string
	FetchTimeout time.Duration
	// WorkDir is the parent of the private tessdata directory; empty means os.TempDir.
	WorkDir string
}

// Loader implements the model loading contract consumed by the pipeline controller.
type Loader struct {
	fetcher storage.BlobFetcher
	engines factory.EngineFactory
	opts    Options

	mu   sync.Mutex
	dirs []string
}

func New(fetcher storage.BlobFetcher, engines factory.EngineFactory, opts Options) *Loader {
	if opts.Language == "" {
		opts.Language = "eng"
	}
	return &Loader{fetcher: fetcher, engines: engines, opts: opts}
}

// Initialize fetches the runtime module and both models concurrently and
// constructs the engine. Any fetch failure, empty blob or unparsable
// runtime module yields a load error naming the artifact.
func (l *Loader) Initialize(ctx context.Context) (engine.Engine, error) {
	start := time.Now()

	if l.opts.EngineType == factory.NoopEngine {
		logger.Info("Noop engine selected, skipping model artifacts")
		return l.engines.CreateEngine(factory.NoopEngine, factory.EngineSpec{})
	}

	if l.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.FetchTimeout)
		defer cancel()
	}

	blobs, err := l.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	runtime, err := ParseRuntime(blobs[ArtifactRuntime])
	if err != nil {
		return nil, newLoadError(ArtifactRuntime, l.opts.Runtime, err)
	}

	dir, err := l.writeTessdata(blobs[ArtifactDetection], blobs[ArtifactRecognition])
	if err != nil {
		return nil, apperrors.NewInternalError("failed to stage model files", err)
	}

	eng, err := l.engines.CreateEngine(l.opts.EngineType, factory.EngineSpec{
		TessdataDir: dir,
		Language:    l.opts.Language,
		UseOSD:      true,
		PageSegMode: runtime.PageSegMode,
		Variables:   runtime.Variables,
	})
	if err != nil {
		l.removeDir(dir)
		return nil, newLoadError(ArtifactRecognition, l.opts.Recognition, err)
	}

	logger.WithFields(logrus.Fields{
		"engine":      eng.Name(),
		"runtime":     len(blobs[ArtifactRuntime]),
		"detection":   len(blobs[ArtifactDetection]),
		"recognition": len(blobs[ArtifactRecognition]),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Engine initialized")

	return eng, nil
}

func (l *Loader) fetchAll(ctx context.Context) (map[Artifact][]byte, error) {
	locations := []struct {
		artifact Artifact
		location string
	}{
		{ArtifactRuntime, l.opts.Runtime},
		{ArtifactDetection, l.opts.Detection},
		{ArtifactRecognition, l.opts.Recognition},
	}
	data := make([][]byte, len(locations))

	g, gctx := errgroup.WithContext(ctx)
	for i, loc := range locations {
		g.Go(func() error {
			blob, err := l.fetcher.Fetch(gctx, loc.location)
			if err != nil {
				return newLoadError(loc.artifact, loc.location, err)
			}
			if len(blob) == 0 {
				return newLoadError(loc.artifact, loc.location, fmt.Errorf("empty artifact"))
			}
			logger.WithFields(logrus.Fields{
				"artifact": loc.artifact,
				"location": loc.location,
				"bytes":    len(blob),
			}).Debug("Loaded artifact")
			data[i] = blob
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Artifact][]byte, len(locations))
	for i, loc := range locations {
		out[loc.artifact] = data[i]
	}
	return out, nil
}

func (l *Loader) writeTessdata(detection, recognition []byte) (string, error) {
	dir, err := os.MkdirTemp(l.opts.WorkDir, "liveocr-tessdata-")
	if err != nil {
		return "", err
	}
	files := []struct {
		name string
		blob []byte
	}{
		{"osd.traineddata", detection},
		{l.opts.Language + ".traineddata", recognition},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.blob, 0o600); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}

	l.mu.Lock()
	l.dirs = append(l.dirs, dir)
	l.mu.Unlock()
	return dir, nil
}

func (l *Loader) removeDir(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, d := range l.dirs {
		if d == dir {
			l.dirs = append(l.dirs[:i], l.dirs[i+1:]...)
			break
		}
	}
	os.RemoveAll(dir)
}

// Close removes staged model files. The engine must be closed first.
func (l *Loader) Close() error {
	l.mu.Lock()
	dirs := l.dirs
	l.dirs = nil
	l.mu.Unlock()

	var firstErr error
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newLoadError(artifact Artifact, location string, cause error) error {
	e := apperrors.NewLoadError(fmt.Sprintf("failed to load %s artifact %q", artifact, location), cause)
	e.Details = string(artifact)
	return e
}

// Runtime holds engine settings parsed from the runtime module.
type Runtime struct {
	PageSegMode *int
	Variables   map[string]string
}

// ParseRuntime reads "key value" lines; blank lines and # comments are
// ignored. The key "psm" selects the page segmentation mode, every other
// key is passed to the engine as a variable.
func ParseRuntime(data []byte) (*Runtime, error) {
	rt := &Runtime{Variables: make(map[string]string)}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected \"key value\", got %q", lineNo, line)
		}
		key, value := fields[0], strings.Join(fields[1:], " ")

		if key == "psm" {
			mode, err := strconv.Atoi(value)
			if err != nil || mode < 0 || mode > 13 {
				return nil, fmt.Errorf("line %d: invalid psm %q", lineNo, value)
			}
			rt.PageSegMode = &mode
			continue
		}
		rt.Variables[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rt, nil
}
