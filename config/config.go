package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
)

type BasicConfig interface {
	Load(map[string]string) error
	Validate() error
}

type AppConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// IntakeConfig holds the upload limits and the storage base path.
type IntakeConfig struct {
	BasePath      string
	MaxFileSizeMB int64
	AllowedTypes  []string
}

func (c IntakeConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * units.MiB
}

const (
	BackendVolumes = "volumes"
	BackendMinIO   = "minio"
	BackendS3      = "s3"
	BackendLocal   = "local"
)

type StorageConfig struct {
	Backend string
}

type VolumesConfig struct {
	Host    string
	Token   string
	Profile string
}

type MinIOConfig struct {
	UseSSL          bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Location        string
}

type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type LocalConfig struct {
	Root string
}

type AuthConfig struct {
	JWTSecret       string
	DevBypass       bool
	TrustForwarded  bool
	DefaultUploader string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type Config struct {
	App     AppConfig
	Intake  IntakeConfig
	Storage StorageConfig
	Volumes VolumesConfig
	MinIO   MinIOConfig
	S3      S3Config
	Local   LocalConfig
	Auth    AuthConfig
	CORS    CORSConfig
	Log     LogConfig
}

// ReadEnv merges an optional .env file with the process environment; real
// environment variables win.
func ReadEnv() (map[string]string, error) {
	envMap, err := godotenv.Read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env file: %w", err)
		}
		slog.Debug(".env file not found, using process environment only")
		envMap = map[string]string{}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			envMap[k] = v
		}
	}
	return envMap, nil
}

// LogFromEnv loads only the LOG_* section so logging can be set up before
// the rest of the configuration is read.
func LogFromEnv(env map[string]string) (LogConfig, error) {
	var c LogConfig
	if err := c.Load(env); err != nil {
		return LogConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return LogConfig{}, err
	}
	return c, nil
}

// FromEnv loads and validates every section from env. Only the section of
// the selected storage backend is validated.
func FromEnv(env map[string]string) (Config, error) {
	var cfg Config

	common := []BasicConfig{&cfg.App, &cfg.Intake, &cfg.Storage, &cfg.Auth, &cfg.CORS, &cfg.Log}
	backends := map[string]BasicConfig{
		BackendVolumes: &cfg.Volumes,
		BackendMinIO:   &cfg.MinIO,
		BackendS3:      &cfg.S3,
		BackendLocal:   &cfg.Local,
	}

	for _, c := range common {
		if err := c.Load(env); err != nil {
			slog.Error("failed to load configuration", "error", err)
			return Config{}, err
		}
		if err := c.Validate(); err != nil {
			slog.Error("configuration is invalid", "error", err)
			return Config{}, err
		}
	}

	for name, c := range backends {
		if err := c.Load(env); err != nil {
			slog.Error("failed to load configuration", "backend", name, "error", err)
			return Config{}, err
		}
	}
	if err := backends[cfg.Storage.Backend].Validate(); err != nil {
		slog.Error("storage configuration is invalid", "backend", cfg.Storage.Backend, "error", err)
		return Config{}, err
	}
	if cfg.Storage.Backend == BackendVolumes && !strings.HasPrefix(cfg.Intake.BasePath, "/Volumes/") {
		err := fmt.Errorf("DATABRICKS_VOLUME_PATH must start with /Volumes/, got %q", cfg.Intake.BasePath)
		slog.Error("storage configuration is invalid", "backend", cfg.Storage.Backend, "error", err)
		return Config{}, err
	}

	slog.Info("configuration loaded", "storage_backend", cfg.Storage.Backend, "base_path", cfg.Intake.BasePath)
	return cfg, nil
}
