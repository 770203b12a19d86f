// Package config gathers Engram's environment-style knobs into a single
// Config struct built by Load, matching the teacher's direct os.Getenv
// usage (internal/tracing/collector.go, cmd/onboard.go) rather than a
// Viper/Koanf framework. An optional YAML overlay file may supply device
// metadata and multi-profile settings on top of the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full set of environment-style knobs recognized at
// startup (SPEC_FULL.md §6.5).
type Config struct {
	DBPath               string
	ModelsDir            string
	APIURL               string
	SyncInlineBlobMaxBytes int
	SyncBlobURLTTLSeconds  int
	VectorDim            int
	RedisURL             string
	OTLPEndpoint         string
	LogLevel             string
	ConfigFile           string

	Overlay Overlay
}

// Overlay is the shape of the optional YAML config-file overlay.
type Overlay struct {
	DeviceName string            `yaml:"device_name"`
	Profiles   map[string]string `yaml:"profiles"`
}

// Load reads environment variables and, if ENGRAM_CONFIG_FILE points at
// an existing file, layers its YAML overlay on top.
func Load() (Config, error) {
	home, _ := os.UserHomeDir()
	defaultDBPath := filepath.Join(home, ".engram", "memory.db")

	cfg := Config{
		DBPath:                 getenvDefault("ENGRAM_PATH", defaultDBPath),
		ModelsDir:              getenvDefault("ENGRAM_MODELS_DIR", filepath.Join(home, ".engram", "models")),
		APIURL:                 os.Getenv("ENGRAM_API_URL"),
		SyncInlineBlobMaxBytes: getenvInt("SYNC_INLINE_BLOB_MAX_BYTES", 262144),
		SyncBlobURLTTLSeconds:  getenvInt("SYNC_BLOB_URL_TTL_SECONDS", 300),
		VectorDim:              getenvInt("ENGRAM_VECTOR_DIM", 384),
		RedisURL:               os.Getenv("ENGRAM_REDIS_URL"),
		OTLPEndpoint:           os.Getenv("ENGRAM_OTLP_ENDPOINT"),
		LogLevel:               getenvDefault("ENGRAM_LOG_LEVEL", "info"),
		ConfigFile:             os.Getenv("ENGRAM_CONFIG_FILE"),
	}

	if cfg.ConfigFile != "" {
		overlay, err := loadOverlay(cfg.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("config: load overlay: %w", err)
		}
		cfg.Overlay = overlay
	}

	return cfg, nil
}

func loadOverlay(path string) (Overlay, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Overlay{}, nil
	}
	if err != nil {
		return Overlay{}, err
	}
	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Overlay{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return overlay, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
