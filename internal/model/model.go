// Package model holds the detector capability and the process-wide handle
// that loads it.
package model

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ecobot-service/internal/domain/detection"
)

var ErrNotLoaded = errors.New("model not loaded")

// Detector is a loaded object-detection model.
type Detector interface {
	// Detect returns boxes in img pixel space, in model order.
	Detect(ctx context.Context, img image.Image) ([]detection.RawBox, error)
	// Names is the model's class table keyed by class id.
	Names() map[int]string
	Annotate(img image.Image, dets []detection.Detection) image.Image
	Close() error
}

// LoadFunc builds a Detector from the weights at path.
type LoadFunc func(ctx context.Context, path string) (Detector, error)

type loaded struct {
	Detector
}

// Handle loads the detector at most once at a time. A failed load leaves the
// handle empty and the next Ensure tries again.
type Handle struct {
	path string
	load LoadFunc
	log  zerolog.Logger

	mu       sync.Mutex
	current  atomic.Pointer[loaded]
	onLoaded func(err error, took time.Duration)
}

func NewHandle(path string, load LoadFunc, log zerolog.Logger) *Handle {
	return &Handle{
		path: path,
		load: load,
		log:  log,
	}
}

// OnLoad registers a callback run after every load attempt.
func (h *Handle) OnLoad(fn func(err error, took time.Duration)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLoaded = fn
}

func (h *Handle) Path() string {
	return h.path
}

func (h *Handle) Loaded() bool {
	return h.current.Load() != nil
}

// Detector returns the loaded detector without trying to load it.
func (h *Handle) Detector() (Detector, error) {
	if l := h.current.Load(); l != nil {
		return l.Detector, nil
	}
	return nil, ErrNotLoaded
}

// Ensure returns the detector, loading it first when needed.
func (h *Handle) Ensure(ctx context.Context) (Detector, error) {
	if l := h.current.Load(); l != nil {
		return l.Detector, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if l := h.current.Load(); l != nil {
		return l.Detector, nil
	}

	start := time.Now()
	d, err := h.load(ctx, h.path)
	took := time.Since(start)
	if err == nil && d == nil {
		err = errors.New("loader returned no detector")
	}
	if h.onLoaded != nil {
		h.onLoaded(err, took)
	}
	if err != nil {
		h.log.Error().Err(err).Str("model_path", h.path).Msg("error loading model")
		return nil, fmt.Errorf("load model %s: %w", h.path, err)
	}

	h.current.Store(&loaded{Detector: d})
	h.log.Info().
		Str("model_path", h.path).
		Int("classes", len(d.Names())).
		Dur("took", took).
		Msg("model loaded successfully")
	return d, nil
}

// Close releases the detector, if any. The handle can be loaded again later.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	l := h.current.Swap(nil)
	if l == nil {
		return nil
	}
	return l.Close()
}
