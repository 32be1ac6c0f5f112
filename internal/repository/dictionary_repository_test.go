package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"brands", `{"brands":["Nike","Adidas"]}`, []string{"Nike", "Adidas"}, false},
		{"trims and drops blanks", `{"brands":[" Puma ",""," "]}`, []string{"Puma"}, false},
		{"empty list", `{"brands":[]}`, []string{}, false},
		{"missing key", `{"names":["Nike"]}`, nil, true},
		{"not json", `brands: [Nike]`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidDictionary) {
					t.Errorf("expected ErrInvalidDictionary, got %v", err)
				}
				return
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Decode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDictionaryRepository_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.json")
	if err := os.WriteFile(path, []byte(`{"brands":["Nike","Adidas"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := NewDictionaryRepository(path)
	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0] != "Nike" {
		t.Errorf("Load() = %v", got)
	}
	if repo.Source() != path {
		t.Errorf("Source() = %s", repo.Source())
	}
}

func TestDictionaryRepository_LoadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/brands.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"brands":["Reebok"]}`))
	}))
	defer server.Close()

	got, err := NewDictionaryRepository(server.URL + "/brands.json").Load(context.Background())
	if err != nil || len(got) != 1 || got[0] != "Reebok" {
		t.Errorf("Load() = %v, %v", got, err)
	}

	if _, err := NewDictionaryRepository(server.URL + "/missing.json").Load(context.Background()); err == nil {
		t.Error("expected error for non-success status")
	}
}

func TestDictionaryRepository_WatchURLUnsupported(t *testing.T) {
	err := NewDictionaryRepository("https://example.com/brands.json").Watch(context.Background(), func([]string) {})
	if !errors.Is(err, ErrWatchUnsupported) {
		t.Errorf("expected ErrWatchUnsupported, got %v", err)
	}
}

func TestDictionaryRepository_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brands.json")
	if err := os.WriteFile(path, []byte(`{"brands":["Nike"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	repo := NewDictionaryRepository(path)
	go func() {
		done <- repo.Watch(ctx, func(entries []string) { changes <- entries })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"brands":["Nike","Puma"]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case entries := <-changes:
		if len(entries) != 2 || entries[1] != "Puma" {
			t.Errorf("reloaded entries = %v", entries)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop on cancel")
	}
}
