// Package config loads service configuration from config.yaml and
// WORKFLOWLENS_ environment variables.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/workflow-lens/internal/domain"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

const envPrefix = "WORKFLOWLENS_"

type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Log       LogConfig                 `koanf:"log"`
	Storage   StorageConfig             `koanf:"storage"`
	Frames    FramesConfig              `koanf:"frames"`
	Gemini    GeminiConfig              `koanf:"gemini"`
	HTTP      HTTPConfig                `koanf:"http"`
	Uploads   UploadsConfig             `koanf:"uploads"`
	Telemetry TelemetryConfig           `koanf:"telemetry"`
	Providers map[string]ProviderConfig `koanf:"providers"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type StorageConfig struct {
	// DSN of the session database. The default is a shared in-memory
	// database that lives as long as the process.
	DSN string `koanf:"dsn"`
}

type FramesConfig struct {
	MaxFrames   int           `koanf:"max_frames"`
	Width       int           `koanf:"width"`
	Quality     int           `koanf:"quality"`
	SeekTimeout time.Duration `koanf:"seek_timeout"`
	FFmpegPath  string        `koanf:"ffmpeg_path"`
	FFprobePath string        `koanf:"ffprobe_path"`
}

type GeminiConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	MaxWait      time.Duration `koanf:"max_wait"`
}

type HTTPConfig struct {
	Timeout              time.Duration `koanf:"timeout"`
	BlockPrivateNetworks bool          `koanf:"block_private_networks"`
}

type UploadsConfig struct {
	Dir      string `koanf:"dir"`
	MaxBytes int64  `koanf:"max_bytes"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	PrettyPrint bool   `koanf:"pretty_print"`
}

type ProviderConfig struct {
	APIKey       string `koanf:"api_key"`
	DefaultModel string `koanf:"default_model"`
	BaseURL      string `koanf:"base_url"`   // Custom API endpoint
	MaxFrames    int    `koanf:"max_frames"` // Frames per request for frame-based providers
}

var defaultModels = map[domain.ProviderType]string{
	domain.ProviderGemini:    "gemini-2.5-flash",
	domain.ProviderOpenAI:    "gpt-4o",
	domain.ProviderAnthropic: "claude-sonnet-4-5",
}

// Provider returns the configuration of one provider with defaults applied.
func (c *Config) Provider(p domain.ProviderType) ProviderConfig {
	pc := c.Providers[string(p)]
	if pc.DefaultModel == "" {
		pc.DefaultModel = defaultModels[p]
	}
	if pc.MaxFrames <= 0 && !p.UsesNativeVideo() {
		pc.MaxFrames = 20
	}
	return pc
}

// DefaultModels returns the default model of every provider.
func (c *Config) DefaultModels() map[domain.ProviderType]string {
	out := make(map[domain.ProviderType]string, len(domain.ProviderTypes))
	for _, p := range domain.ProviderTypes {
		out[p] = c.Provider(p).DefaultModel
	}
	return out
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (if it exists), then environment overrides, then applies
// defaults for anything still unset.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for name, pc := range cfg.Providers {
		pc.APIKey = substituteEnvVars(pc.APIKey)
		cfg.Providers[name] = pc
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                 8080,
		"server.request_timeout":      "15m",
		"log.level":                   "info",
		"log.format":                  "json",
		"storage.dsn":                 "file:workflowlens?mode=memory&cache=shared",
		"frames.max_frames":           30,
		"frames.width":                640,
		"frames.quality":              70,
		"frames.seek_timeout":         "10s",
		"gemini.poll_interval":        "5s",
		"gemini.max_wait":             "10m",
		"http.timeout":                "5m",
		"http.block_private_networks": false,
		"uploads.dir":                 os.TempDir(),
		"uploads.max_bytes":           int64(2 << 30),
		"telemetry.enabled":           false,
		"telemetry.service_name":      "workflow-lens",
		"telemetry.pretty_print":      true,
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
