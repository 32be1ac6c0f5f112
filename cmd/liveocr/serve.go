package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/live-ocr-go/internal/container"
	"github.com/anime-shed/live-ocr-go/internal/logger"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OCR HTTP server",
	Long: `Start the HTTP server, begin loading the recognition engine in the
background and run the frame sampler over frames posted to /frames.

Endpoints:
  GET  /health          - liveness
  GET  /status          - controller state and counters
  GET  /metrics         - pipeline event metrics
  POST /frames          - store the latest frame for the sampler
  POST /detect          - run one pass synchronously
  GET  /results/latest  - most recent sampler result
  POST /match           - fuzzy-match text against the dictionary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveHost != "" {
			cfg.Host = serveHost
		}
		if servePort != "" {
			cfg.Port = servePort
		}

		c, err := container.NewContainer(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		c.Start(ctx)

		server := &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      c.Handler(),
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout + time.Second,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return c.Sampler().Run(gctx)
		})
		g.Go(func() error {
			if err := c.WatchDictionary(gctx); err != nil {
				logger.WithError(err).Warn("Dictionary hot reload stopped")
			}
			return nil
		})
		g.Go(func() error {
			logger.WithFields(logrus.Fields{
				"address": cfg.ServerAddress(),
				"timeout": cfg.RequestTimeout.String(),
			}).Info("Starting HTTP server")

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down server...")

			// Create a deadline for shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			logger.WithError(err).Error("Server stopped with error")
			return err
		}
		logger.Info("Server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (overrides config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides config)")
}
