package factory

import (
	"testing"

	"github.com/anime-shed/live-ocr-go/internal/config"
	"github.com/anime-shed/live-ocr-go/internal/storage"
)

func TestEngineFactory_CreateEngine(t *testing.T) {
	f := NewEngineFactory()

	e, err := f.CreateEngine(NoopEngine, EngineSpec{})
	if err != nil {
		t.Fatalf("noop engine: %v", err)
	}
	if e.Name() != "noop" {
		t.Errorf("Name() = %s", e.Name())
	}

	if _, err := f.CreateEngine(EngineType("paddle"), EngineSpec{}); err == nil {
		t.Error("expected error for unsupported engine type")
	}
}

func TestStorageFactory_CreateStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Models.BaseURL = "https://models.example.com"
	cfg.Azure.AccountName = "acct"
	cfg.Azure.Container = "models"
	f := NewStorageFactory(cfg)

	tests := []struct {
		name     string
		typ      StorageType
		wantType interface{}
		wantErr  bool
	}{
		{"http", HTTPStorage, &storage.HTTPBlobFetcher{}, false},
		{"azure", AzureStorage, &storage.AzureBlobFetcher{}, false},
		{"local", LocalStorage, &storage.LocalBlobFetcher{}, false},
		{"unknown", StorageType("s3"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.CreateStorage(tt.typ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch tt.wantType.(type) {
			case *storage.HTTPBlobFetcher:
				if _, ok := got.(*storage.HTTPBlobFetcher); !ok {
					t.Errorf("got %T", got)
				}
			case *storage.AzureBlobFetcher:
				if _, ok := got.(*storage.AzureBlobFetcher); !ok {
					t.Errorf("got %T", got)
				}
			case *storage.LocalBlobFetcher:
				if _, ok := got.(*storage.LocalBlobFetcher); !ok {
					t.Errorf("got %T", got)
				}
			}
		})
	}
}

func TestStorageFactory_AzureMissingContainer(t *testing.T) {
	cfg := config.Default()
	cfg.Azure.AccountName = "acct"
	if _, err := NewStorageFactory(cfg).CreateStorage(AzureStorage); err == nil {
		t.Error("expected error without container")
	}
}
