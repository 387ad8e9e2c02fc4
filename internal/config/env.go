package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// DetectConfig tunes divider detection. Zero values select the detector
// defaults.
type DetectConfig struct {
	PatchThreshold int
	PatchMinArea   int
	PatchMinAspect float64
	PatchMaxAspect float64
}

// SplitConfig controls a segmentation run.
type SplitConfig struct {
	Workers int
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port                string
	RedisURL            string // empty keeps job status in memory
	DispatchConcurrency int
	QueueSize           int
	S3Bucket            string // checked by /ready when set
	OutputDir           string
	TempMaxAge          time.Duration
	UploadMaxAge        time.Duration // upload dirs and their segments
	MaxUploadMB         int
	ShutdownTimeout     time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Detect  DetectConfig
	Split   SplitConfig
	Server  ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults. A
// .env file in the working directory is read first when present; real
// environment variables win.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/patchsplit.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_patchsplit",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Detect = DetectConfig{
		PatchThreshold: parseInt(getEnv("PATCH_THRESHOLD", ""), 0),
		PatchMinArea:   parseInt(getEnv("PATCH_MIN_AREA", ""), 0),
		PatchMinAspect: parseFloat(getEnv("PATCH_MIN_ASPECT", ""), 0),
		PatchMaxAspect: parseFloat(getEnv("PATCH_MAX_ASPECT", ""), 0),
	}
	if cfg.Detect.PatchThreshold < 0 || cfg.Detect.PatchThreshold > 255 {
		cfg.Detect.PatchThreshold = 0
	}

	cfg.Split = SplitConfig{
		Workers: parseInt(getEnv("SPLIT_WORKERS", ""), runtime.NumCPU()),
	}

	cfg.Server = ServerConfig{
		Port:                getEnv("PORT", "8080"),
		RedisURL:            getEnv("REDIS_URL", ""),
		DispatchConcurrency: parseInt(getEnv("DISPATCH_CONCURRENCY", "2"), 2),
		QueueSize:           parseInt(getEnv("QUEUE_SIZE", "100"), 100),
		S3Bucket:            getEnv("AWS_S3_BUCKET", ""),
		OutputDir:           getEnv("OUTPUT_DIR", "output"),
		TempMaxAge:          parseDuration(getEnv("TEMP_MAX_AGE", "1h"), time.Hour),
		UploadMaxAge:        parseDuration(getEnv("UPLOAD_MAX_AGE", "24h"), 24*time.Hour),
		MaxUploadMB:         parseInt(getEnv("MAX_UPLOAD_MB", "256"), 256),
		ShutdownTimeout:     parseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s"), 30*time.Second),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
