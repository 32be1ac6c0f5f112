package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anime-shed/live-ocr-go/internal/container"
	"github.com/anime-shed/live-ocr-go/internal/frame"
	"github.com/anime-shed/live-ocr-go/internal/overlay"
	"github.com/anime-shed/live-ocr-go/pkg/models"
)

var (
	scanOverlayDir string
	scanMaxWidth   int
)

type scanOutput struct {
	File    string         `json:"file"`
	Format  string         `json:"format,omitempty"`
	Result  *models.Result `json:"result,omitempty"`
	Overlay string         `json:"overlay,omitempty"`
	Dropped bool           `json:"dropped,omitempty"`
	Error   string         `json:"error,omitempty"`
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>...",
	Short: "Recognize text in image files",
	Long: `Wait for the engine to load, then run one detection and recognition
pass per image and print the results as JSON. Supported formats: png, jpeg,
gif, bmp, tiff and webp.`,
	Example: `  liveocr scan shoe.jpg
  liveocr scan --overlay out/ *.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Matcher.Watch = false

		c, err := container.NewContainer(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctrl := c.Start(ctx)
		if err := ctrl.Wait(ctx); err != nil {
			return err
		}

		if scanOverlayDir != "" {
			if err := os.MkdirAll(scanOverlayDir, 0o755); err != nil {
				return err
			}
		}

		outputs := make([]scanOutput, 0, len(args))
		failed := 0
		for _, path := range args {
			out := scanOutput{File: path}

			f, format, err := decodeFile(path)
			if err != nil {
				out.Error = err.Error()
				failed++
				outputs = append(outputs, out)
				continue
			}
			out.Format = format

			res, err := ctrl.DetectAndRecognize(ctx, f)
			switch {
			case err != nil:
				out.Error = err.Error()
				failed++
			case res == nil:
				out.Dropped = true
			default:
				out.Result = res
				if scanOverlayDir != "" {
					out.Overlay, err = writeOverlay(path, f, res)
					if err != nil {
						out.Error = err.Error()
						failed++
					}
				}
			}
			outputs = append(outputs, out)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(outputs); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanOverlayDir, "overlay", "", "write PNG overlays with word boxes to this directory")
	scanCmd.Flags().IntVar(&scanMaxWidth, "overlay-max-width", 0, "downscale overlays wider than this (0 keeps size)")
}

func decodeFile(path string) (*frame.RawFrame, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	return frame.Decode(file)
}

func writeOverlay(path string, f *frame.RawFrame, res *models.Result) (string, error) {
	img, err := f.Image()
	if err != nil {
		return "", err
	}
	drawn := overlay.Draw(img, res, overlay.Options{MaxWidth: scanMaxWidth})

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dst := filepath.Join(scanOverlayDir, base+".overlay.png")
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if err := png.Encode(out, drawn); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}
