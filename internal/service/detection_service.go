package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ecobot-service/internal/domain/detection"
	"ecobot-service/internal/exifgps"
	"ecobot-service/internal/formatter"
	"ecobot-service/internal/imageio"
	"ecobot-service/internal/metrics"
	"ecobot-service/internal/model"
)

var ErrModelUnavailable = errors.New("model unavailable")

type DetectionService struct {
	handle      *model.Handle
	metrics     *metrics.Metrics
	jpegQuality int
	log         zerolog.Logger
}

func NewDetectionService(handle *model.Handle, m *metrics.Metrics, jpegQuality int, log zerolog.Logger) *DetectionService {
	return &DetectionService{
		handle:      handle,
		metrics:     m,
		jpegQuality: jpegQuality,
		log:         log,
	}
}

// EnsureModel loads the model if it is not loaded yet.
func (s *DetectionService) EnsureModel(ctx context.Context) error {
	if _, err := s.handle.Ensure(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return nil
}

func (s *DetectionService) Status() detection.Status {
	return detection.Status{
		Status:      "online",
		ModelLoaded: s.handle.Loaded(),
		ModelPath:   s.handle.Path(),
	}
}

// Process runs decode, GPS extraction, inference, formatting and annotation
// over one uploaded image.
func (s *DetectionService) Process(ctx context.Context, data []byte) (*detection.Result, error) {
	start := time.Now()

	detector, err := s.handle.Detector()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	img, err := imageio.Decode(data)
	if err != nil {
		return nil, err
	}

	gps, gpsErr := exifgps.Parse(bytes.NewReader(data))
	if gpsErr != nil && !errors.Is(gpsErr, exifgps.ErrNoGPS) {
		s.log.Debug().Err(gpsErr).Msg("ignoring unreadable gps metadata")
	}
	s.metrics.RecordGPS(gps != nil)

	inferStart := time.Now()
	raw, err := detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	s.metrics.RecordInference(time.Since(inferStart))

	dets, avg, err := formatter.Format(raw, detector.Names())
	if err != nil {
		return nil, err
	}

	uri, err := imageio.JPEGDataURI(detector.Annotate(img, dets), s.jpegQuality)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDetections(len(dets))
	s.metrics.RecordPipeline(time.Since(start))

	event := s.log.Info().
		Int("count", len(dets)).
		Float64("average_confidence", avg).
		Bool("gps", gps != nil).
		Dur("took", time.Since(start))
	if gps != nil {
		event = event.Float64("latitude", gps.Latitude).Float64("longitude", gps.Longitude)
	}
	event.Msg("processed image")

	for _, d := range dets {
		s.log.Debug().
			Int("class_id", d.ClassID).
			Str("class_name", d.ClassName).
			Float64("confidence", d.Confidence).
			Ints("bbox", d.BBox[:]).
			Msg("detection")
	}

	return &detection.Result{
		Success:           true,
		Image:             uri,
		Detections:        dets,
		GPSCoordinates:    gps,
		Count:             len(dets),
		AverageConfidence: avg,
		PlasticLevel:      formatter.PlasticLevel(len(dets)),
	}, nil
}
