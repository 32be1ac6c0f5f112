package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anime-shed/live-ocr-go/pkg/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, logLevel, configForce = "", "", false
	scanOverlayDir, scanMaxWidth = "", 0

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dict := filepath.Join(dir, "brands.json")
	if err := os.WriteFile(dict, []byte(`{"brands":["Nike","Adidas","Puma"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := fmt.Sprintf(`log_level: error
engine:
  type: noop
models:
  source: local
matcher:
  dictionary: %s
  watch: false
`, dict)
	path := filepath.Join(dir, "liveocr.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liveocr.yaml")

	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "engine:") {
		t.Errorf("written config missing engine section:\n%s", data)
	}

	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("expected error when file exists")
	}
	if _, err := execute(t, "config", "init", "--force", path); err != nil {
		t.Errorf("--force: %v", err)
	}
}

func TestMatchCommand(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := execute(t, "--config", cfg, "match", "NIKE")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	var resp models.MatchResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if resp.Query != "NIKE" || len(resp.Matches) == 0 || resp.Matches[0].Text != "Nike" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestScanCommand(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := t.TempDir()

	img := filepath.Join(dir, "blank.png")
	f, err := os.Create(img)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 100, 50))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	overlays := filepath.Join(dir, "out")
	out, err := execute(t, "--config", cfg, "scan", "--overlay", overlays, img)
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}

	var results []scanOutput
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].Result == nil {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Result.Width != 100 || len(results[0].Result.Lines) != 0 {
		t.Errorf("result = %+v", results[0].Result)
	}
	if _, err := os.Stat(filepath.Join(overlays, "blank.overlay.png")); err != nil {
		t.Errorf("overlay not written: %v", err)
	}
}

func TestScanCommand_MissingFile(t *testing.T) {
	cfg := writeTestConfig(t)
	out, err := execute(t, "--config", cfg, "scan", filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(out, "nope.png") {
		t.Errorf("output should name the file: %s", out)
	}
}
