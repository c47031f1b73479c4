package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP  HTTPConfig
	Model ModelConfig
	Image ImageConfig
	Auth  AuthConfig
	Debug bool
}

type HTTPConfig struct {
	Host               string
	Port               int
	MaxUploadMB        int
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

type ModelConfig struct {
	Path          string
	Backend       string
	InferenceURL  string
	LabelsPath    string
	ConfThreshold float64
	IOUThreshold  float64
	Timeout       time.Duration
	Threads       int
}

type ImageConfig struct {
	JPEGQuality int
}

type AuthConfig struct {
	JWTSecret string
}

const (
	BackendAuto   = "auto"
	BackendRemote = "remote"
	BackendTFLite = "tflite"
)

// env maps viper keys to the environment variables that set them.
var env = map[string]string{
	"debug":                "DEBUG",
	"http.host":            "HOST",
	"http.port":            "PORT",
	"http.max_upload_mb":   "MAX_UPLOAD_MB",
	"http.cors_origins":    "CORS_ALLOWED_ORIGINS",
	"http.shutdown":        "SHUTDOWN_TIMEOUT",
	"model.path":           "MODEL_PATH",
	"model.backend":        "MODEL_BACKEND",
	"model.inference_url":  "INFERENCE_URL",
	"model.labels":         "MODEL_LABELS",
	"model.conf_threshold": "CONF_THRESHOLD",
	"model.iou_threshold":  "IOU_THRESHOLD",
	"model.timeout":        "INFERENCE_TIMEOUT",
	"model.threads":        "MODEL_THREADS",
	"image.jpeg_quality":   "JPEG_QUALITY",
	"auth.jwt_secret":      "AUTH_JWT_SECRET",
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", "False")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5000)
	v.SetDefault("http.max_upload_mb", 0)
	v.SetDefault("http.cors_origins", "*")
	v.SetDefault("http.shutdown", "10s")
	v.SetDefault("model.path", "./models/ecobot.pt")
	v.SetDefault("model.backend", BackendAuto)
	v.SetDefault("model.inference_url", "http://localhost:8000")
	v.SetDefault("model.labels", "")
	v.SetDefault("model.conf_threshold", 0.25)
	v.SetDefault("model.iou_threshold", 0.7)
	v.SetDefault("model.timeout", "60s")
	v.SetDefault("model.threads", 0)
	v.SetDefault("image.jpeg_quality", 75)
	v.SetDefault("auth.jwt_secret", "")
}

// LoadDotEnv reads .env files into the process environment without
// overriding variables that are already set. Missing files are fine.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Bind wires defaults, environment variables and an optional config file
// into v. configFile may be empty, in which case ./config.yaml is used when
// present.
func Bind(v *viper.Viper, configFile string) error {
	SetDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load builds a Config from an already bound viper instance.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Debug: ParseBool(v.GetString("debug")),
		HTTP: HTTPConfig{
			Host:               v.GetString("http.host"),
			Port:               v.GetInt("http.port"),
			MaxUploadMB:        v.GetInt("http.max_upload_mb"),
			CORSAllowedOrigins: splitList(v.GetString("http.cors_origins")),
			ShutdownTimeout:    v.GetDuration("http.shutdown"),
		},
		Model: ModelConfig{
			Path:          v.GetString("model.path"),
			Backend:       strings.ToLower(v.GetString("model.backend")),
			InferenceURL:  v.GetString("model.inference_url"),
			LabelsPath:    v.GetString("model.labels"),
			ConfThreshold: v.GetFloat64("model.conf_threshold"),
			IOUThreshold:  v.GetFloat64("model.iou_threshold"),
			Timeout:       v.GetDuration("model.timeout"),
			Threads:       v.GetInt("model.threads"),
		},
		Image: ImageConfig{
			JPEGQuality: v.GetInt("image.jpeg_quality"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model path must not be empty")
	}
	switch c.Model.Backend {
	case BackendAuto, BackendRemote, BackendTFLite:
	default:
		return fmt.Errorf("unknown model backend %q", c.Model.Backend)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.HTTP.Port)
	}
	// MaxUploadMB 0 accepts any body size.
	if c.HTTP.MaxUploadMB < 0 {
		return fmt.Errorf("invalid max upload size %dMB", c.HTTP.MaxUploadMB)
	}
	return nil
}

// ResolvedBackend turns "auto" into a concrete backend from the weights
// file extension.
func (m ModelConfig) ResolvedBackend() string {
	if m.Backend != BackendAuto && m.Backend != "" {
		return m.Backend
	}
	if strings.EqualFold(filepath.Ext(m.Path), ".tflite") {
		return BackendTFLite
	}
	return BackendRemote
}

func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// ParseBool accepts "true", "1" and "t" in any case; anything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
