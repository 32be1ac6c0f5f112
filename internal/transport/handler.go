package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/live-ocr-go/internal/config"
	apperrors "github.com/anime-shed/live-ocr-go/internal/errors"
	"github.com/anime-shed/live-ocr-go/internal/frame"
	"github.com/anime-shed/live-ocr-go/internal/fuzzy"
	"github.com/anime-shed/live-ocr-go/internal/logger"
	"github.com/anime-shed/live-ocr-go/internal/pipeline"
	"github.com/anime-shed/live-ocr-go/internal/sampler"
	"github.com/anime-shed/live-ocr-go/pkg/models"
)

// Detector is the pipeline controller as seen by the HTTP surface
type Detector interface {
	DetectAndRecognize(ctx context.Context, f *frame.RawFrame) (*models.Result, error)
	Stats() pipeline.Stats
}

// Searcher is the fuzzy matcher as seen by the HTTP surface
type Searcher interface {
	SearchAll(query string) []fuzzy.Candidate
	Len() int
}

// MetricsSource exposes collected counters
type MetricsSource interface {
	GetMetrics() map[string]interface{}
}

// Deps bundles what the routes need
type Deps struct {
	Controller Detector
	Matcher    Searcher
	Frames     *sampler.LatestFrame
	Results    *sampler.ResultStore
	Metrics    MetricsSource
	Config     *config.Config
}

func NewHandler(deps Deps) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(deps.Config.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/status", status(deps))
	r.GET("/metrics", metrics(deps))
	r.POST("/frames", submitFrame(deps))
	r.POST("/detect", detect(deps))
	r.GET("/results/latest", latestResult(deps))
	r.POST("/match", match(deps))

	return r
}

func detect(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), d.Config.RequestTimeout)
		defer cancel()

		f, err := readFrame(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid frame", err)
			return
		}

		result, err := d.Controller.DetectAndRecognize(ctx, f)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "detection failed", err)
			return
		}
		if result == nil {
			reason := "busy"
			switch d.Controller.Stats().Status {
			case pipeline.StatusUninitialized, pipeline.StatusInitializing:
				reason = "not_ready"
			}
			c.JSON(http.StatusAccepted, models.DroppedResponse{Status: "dropped", Reason: reason})
			return
		}

		logger.WithFields(logrus.Fields{
			"frame_id":           result.FrameID,
			"lines":              len(result.Lines),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Detection completed")

		c.JSON(http.StatusOK, result)
	}
}

func submitFrame(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := readFrame(c)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid frame", err)
			return
		}
		d.Frames.Put(f)
		c.JSON(http.StatusAccepted, models.FrameAccepted{Status: "accepted", Width: f.Width, Height: f.Height})
	}
}

func latestResult(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := d.Results.Latest()
		if result == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func match(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", apperrors.NewValidationError("text is required", err))
			return
		}

		scored := d.Matcher.SearchAll(req.Text)
		resp := models.MatchResponse{Query: req.Text, Matches: make([]models.MatchCandidate, 0, len(scored))}
		for _, s := range scored {
			resp.Matches = append(resp.Matches, models.MatchCandidate{Text: s.Text, Score: s.Score})
		}
		c.JSON(http.StatusOK, resp)
	}
}

func status(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := d.Controller.Stats()
		resp := models.StatusResponse{
			Status:       s.Status.String(),
			Engine:       s.Engine,
			Passes:       s.Passes,
			DroppedBusy:  s.DroppedBusy,
			DroppedReady: s.DroppedNotReady,
			Failures:     s.Failures,
			Timeouts:     s.Timeouts,
			LastError:    s.LastError,
		}
		if d.Matcher != nil {
			resp.Dictionary = d.Matcher.Len()
		}
		code := http.StatusOK
		if s.Status == pipeline.StatusFailed {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	}
}

func metrics(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Metrics == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, d.Metrics.GetMetrics())
	}
}

// readFrame accepts a JSON raw frame, a multipart "image" file or a raw image body.
func readFrame(c *gin.Context) (*frame.RawFrame, error) {
	contentType := c.ContentType()

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, apperrors.NewValidationError("multipart field \"image\" is required", err)
		}
		file, err := fh.Open()
		if err != nil {
			return nil, apperrors.NewValidationError("cannot open uploaded image", err)
		}
		defer file.Close()
		f, _, err := frame.Decode(file)
		return f, err

	case strings.HasPrefix(contentType, "image/"):
		f, _, err := frame.Decode(c.Request.Body)
		return f, err

	default:
		var req models.FrameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperrors.NewValidationError("invalid frame request", err)
		}
		f := &frame.RawFrame{
			Width:    req.Width,
			Height:   req.Height,
			Channels: req.Channels,
			Pixels:   req.Pixels,
		}
		if f.Channels == 0 && req.Width*req.Height > 0 {
			f.Channels = len(req.Pixels) / (req.Width * req.Height)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		return f, nil
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
