package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents worker configuration loaded from environment variables.
type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	ServerAddress string
	ComfyPort     int
	ClientID      string

	WorkflowPath      string
	WorkflowFLF2VPath string
	InputTempDir      string
	DefaultImagePath  string
	CleanupInputs     bool

	Downloader      string
	DownloadTimeout time.Duration

	ReadinessAttempts int
	ReadinessInterval time.Duration
	ReadinessTimeout  time.Duration
	ChannelAttempts   int
	ChannelInterval   time.Duration

	ArtifactStoragePath string

	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	MaxConcurrentJobs int
	CORSOrigins       []string
}

// LoadConfig loads configuration from the environment, after reading optional
// .env files, and applies defaults where needed.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		Port:     getEnv("PORT", "8080"),

		ServerAddress: getEnv("SERVER_ADDRESS", "127.0.0.1"),
		ComfyPort:     getEnvInt("COMFY_PORT", 8188),
		ClientID:      strings.TrimSpace(os.Getenv("CLIENT_ID")),

		WorkflowPath:      getEnv("WORKFLOW_PATH", "/new_Wan22_api.json"),
		WorkflowFLF2VPath: getEnv("WORKFLOW_FLF2V_PATH", "/new_Wan22_flf2v_api.json"),
		InputTempDir:      getEnv("INPUT_TEMP_DIR", "/tmp/runpod_inputs"),
		DefaultImagePath:  getEnv("DEFAULT_IMAGE_PATH", "/example_image.png"),
		CleanupInputs:     getEnvBool("CLEANUP_INPUTS", false),

		Downloader:      strings.ToLower(getEnv("DOWNLOADER", "wget")),
		DownloadTimeout: time.Second * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 300)),

		ReadinessAttempts: getEnvInt("READINESS_ATTEMPTS", 180),
		ReadinessInterval: time.Millisecond * time.Duration(getEnvInt("READINESS_INTERVAL_MS", 1000)),
		ReadinessTimeout:  time.Second * time.Duration(getEnvInt("READINESS_TIMEOUT_SECONDS", 5)),
		ChannelAttempts:   getEnvInt("CHANNEL_ATTEMPTS", 36),
		ChannelInterval:   time.Millisecond * time.Duration(getEnvInt("CHANNEL_INTERVAL_MS", 5000)),

		ArtifactStoragePath: strings.TrimSpace(os.Getenv("ARTIFACT_STORAGE_PATH")),

		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 1800)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", 1),
		CORSOrigins:       getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	switch cfg.Downloader {
	case "wget", "http":
	default:
		return nil, fmt.Errorf("DOWNLOADER must be wget or http, got %q", cfg.Downloader)
	}
	if cfg.ComfyPort <= 0 || cfg.ComfyPort > 65535 {
		return nil, fmt.Errorf("COMFY_PORT out of range: %d", cfg.ComfyPort)
	}
	if cfg.ReadinessAttempts <= 0 {
		return nil, fmt.Errorf("READINESS_ATTEMPTS must be positive")
	}
	if cfg.ChannelAttempts <= 0 {
		return nil, fmt.Errorf("CHANNEL_ATTEMPTS must be positive")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}

	return cfg, nil
}

// EngineHTTPURL is the base URL of the engine's HTTP API.
func (c *Config) EngineHTTPURL() string {
	return fmt.Sprintf("http://%s:%d", c.ServerAddress, c.ComfyPort)
}

// EngineWSURL is the base URL of the engine's progress stream, without query.
func (c *Config) EngineWSURL() string {
	return fmt.Sprintf("ws://%s:%d/ws", c.ServerAddress, c.ComfyPort)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
