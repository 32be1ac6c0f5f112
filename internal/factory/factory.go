package factory

import (
	"fmt"

	"github.com/anime-shed/live-ocr-go/internal/config"
	"github.com/anime-shed/live-ocr-go/internal/engine"
	"github.com/anime-shed/live-ocr-go/internal/engine/tesseract"
	"github.com/anime-shed/live-ocr-go/internal/storage"
)

// EngineType represents the available recognition engine bindings
type EngineType string

const (
	// TesseractEngine binds libtesseract through gosseract
	TesseractEngine EngineType = "tesseract"
	// NoopEngine finds no text; for running without native libraries
	NoopEngine EngineType = "noop"
)

// StorageType represents the backends model artifacts can be fetched from
type StorageType string

const (
	// HTTPStorage for HTTP-based artifact fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// EngineSpec describes an engine once its artifacts are on disk.
type EngineSpec struct {
	TessdataDir string
	Language    string
	UseOSD      bool
	PageSegMode *int
	Variables   map[string]string
}

// EngineFactory creates recognition engines
type EngineFactory interface {
	CreateEngine(engineType EngineType, spec EngineSpec) (engine.Engine, error)
}

// StorageFactory creates artifact fetchers
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.BlobFetcher, error)
}

type engineFactory struct{}

// NewEngineFactory creates a new engine factory
func NewEngineFactory() EngineFactory {
	return &engineFactory{}
}

// CreateEngine creates an engine based on the specified type
func (f *engineFactory) CreateEngine(engineType EngineType, spec EngineSpec) (engine.Engine, error) {
	switch engineType {
	case TesseractEngine:
		return tesseract.New(tesseract.Options{
			TessdataDir: spec.TessdataDir,
			Language:    spec.Language,
			UseOSD:      spec.UseOSD,
			PageSegMode: spec.PageSegMode,
			Variables:   spec.Variables,
		})
	case NoopEngine:
		return engine.NewNoopEngine(), nil
	default:
		return nil, fmt.Errorf("unsupported engine type: %s", engineType)
	}
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a storage factory reading backend settings from cfg
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a fetcher based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.BlobFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPBlobFetcher(
			f.cfg.Models.BaseURL,
			storage.WithAttempts(f.cfg.Models.FetchAttempts),
			storage.WithAllowedHosts(f.cfg.Models.AllowedHosts...),
		), nil
	case AzureStorage:
		az := f.cfg.Azure
		return storage.NewAzureBlobFetcher(az.AccountName, az.AccountKey, az.ServiceURL, az.Container)
	case LocalStorage:
		return storage.NewLocalBlobFetcher(f.cfg.Models.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	EngineFactory  EngineFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		EngineFactory:  NewEngineFactory(),
		StorageFactory: NewStorageFactory(cfg),
	}
}
