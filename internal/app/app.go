// Package app wires configuration, the model handle and the HTTP surface
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"ecobot-service/internal/config"
	httphandler "ecobot-service/internal/http"
	"ecobot-service/internal/httpclient"
	"ecobot-service/internal/imageio"
	"ecobot-service/internal/logger"
	"ecobot-service/internal/metrics"
	"ecobot-service/internal/model"
	"ecobot-service/internal/model/local"
	"ecobot-service/internal/model/remote"
	"ecobot-service/internal/service"
)

const readHeaderTimeout = 10 * time.Second

type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	handle  *model.Handle
	engine  *gin.Engine
	metrics *metrics.Metrics
}

func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	handle := model.NewHandle(cfg.Model.Path, newLoader(cfg, log), log.With().Str("component", "model").Logger())
	handle.OnLoad(m.RecordModelLoad)

	quality := cfg.Image.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = imageio.DefaultJPEGQuality
	}
	svc := service.NewDetectionService(handle, m, quality, log.With().Str("component", "service").Logger())
	h := httphandler.NewHandler(svc, cfg, m, log.With().Str("component", "http").Logger())

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httphandler.RequestID())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(corsConfig(cfg.HTTP.CORSAllowedOrigins)))

	h.Register(r, httphandler.JWTAuth(cfg.Auth.JWTSecret, m))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return &App{
		cfg:     cfg,
		log:     log,
		handle:  handle,
		engine:  r,
		metrics: m,
	}, nil
}

// Handler exposes the gin engine, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.engine
}

// Run loads the model, serves until ctx is done and then shuts down.
func (a *App) Run(ctx context.Context) error {
	if _, err := a.handle.Ensure(ctx); err != nil {
		a.log.Warn().Err(err).Msg("model not loaded at startup, will retry on first request")
	}
	defer func() {
		if err := a.handle.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to release model")
		}
	}()

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr(),
		Handler:           a.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", srv.Addr).
			Str("backend", a.cfg.Model.ResolvedBackend()).
			Str("model_path", a.cfg.Model.Path).
			Msg("starting ecobot api")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLoader(cfg *config.Config, log zerolog.Logger) model.LoadFunc {
	backendLog := log.With().Str("component", "backend").Logger()
	if cfg.Model.ResolvedBackend() == config.BackendTFLite {
		return local.Loader(local.Options{
			LabelsPath:    cfg.Model.LabelsPath,
			ConfThreshold: cfg.Model.ConfThreshold,
			IOUThreshold:  cfg.Model.IOUThreshold,
			Threads:       cfg.Model.Threads,
		}, backendLog)
	}
	hc := httpclient.New(&httpclient.Config{DefaultTimeout: cfg.Model.Timeout})
	return remote.Loader(cfg.Model.InferenceURL, hc, backendLog)
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", "X-Request-ID")
	c.ExposeHeaders = []string{"X-Request-ID"}
	if len(origins) == 0 || lo.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	return c
}
