package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8000
	defaultShutdownTimeout = 15
	defaultBasePath        = "/Volumes/jmr_demo/intake/storage"
	defaultMaxFileSizeMB   = 100
	defaultAllowedTypes    = "csv,json,pdf,xlsx,txt"
	defaultRegion          = "us-east-1"
	defaultLocalRoot       = "./data"
	defaultUploader        = "unknown@databricks.com"
)

func (c *AppConfig) Load(env map[string]string) error {
	c.Host = stringOr(env, "APP_HOST", defaultHost)

	port, err := intOr(env, "APP_PORT", defaultPort)
	if err != nil {
		return err
	}
	c.Port = int(port)

	secs, err := intOr(env, "SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeout)
	if err != nil {
		return err
	}
	c.ShutdownTimeout = time.Duration(secs) * time.Second
	return nil
}

func (c *IntakeConfig) Load(env map[string]string) error {
	c.BasePath = stringOr(env, "DATABRICKS_VOLUME_PATH", defaultBasePath)

	mb, err := intOr(env, "MAX_FILE_SIZE_MB", defaultMaxFileSizeMB)
	if err != nil {
		return err
	}
	c.MaxFileSizeMB = mb

	c.AllowedTypes = lo.Uniq(lo.Map(splitList(stringOr(env, "ALLOWED_FILE_TYPES", defaultAllowedTypes)), func(s string, _ int) string {
		return strings.ToLower(strings.TrimPrefix(s, "."))
	}))
	return nil
}

func (c *StorageConfig) Load(env map[string]string) error {
	c.Backend = strings.ToLower(stringOr(env, "STORAGE_BACKEND", BackendVolumes))
	return nil
}

func (c *VolumesConfig) Load(env map[string]string) error {
	c.Host = env["DATABRICKS_HOST"]
	c.Token = env["DATABRICKS_TOKEN"]
	c.Profile = env["DATABRICKS_CONFIG_PROFILE"]
	return nil
}

func (c *MinIOConfig) Load(env map[string]string) error {
	var ok bool

	c.Endpoint, ok = env["MINIO_ENDPOINT"]
	if !ok {
		slog.Warn("MINIO_ENDPOINT is not set")
	}
	c.AccessKeyID, ok = env["MINIO_ACCESS_KEY"]
	if !ok {
		slog.Warn("MINIO_ACCESS_KEY is not set")
	}
	c.SecretAccessKey, ok = env["MINIO_SECRET_KEY"]
	if !ok {
		slog.Warn("MINIO_SECRET_KEY is not set")
	}

	useSSLStr, ok := env["MINIO_USE_SSL"]
	if ok {
		c.UseSSL = strings.ToLower(useSSLStr) != "false"
	} else {
		c.UseSSL = true
	}

	c.BucketName = env["MINIO_BUCKET_NAME"]
	c.Location = stringOr(env, "MINIO_LOCATION", defaultRegion)
	return nil
}

func (c *S3Config) Load(env map[string]string) error {
	c.Region = stringOr(env, "AWS_REGION", defaultRegion)
	c.Bucket = env["S3_BUCKET"]
	c.Endpoint = env["AWS_ENDPOINT_URL"]
	c.AccessKeyID = env["AWS_ACCESS_KEY_ID"]
	c.SecretAccessKey = env["AWS_SECRET_ACCESS_KEY"]
	return nil
}

func (c *LocalConfig) Load(env map[string]string) error {
	c.Root = stringOr(env, "LOCAL_STORAGE_ROOT", defaultLocalRoot)
	return nil
}

func (c *AuthConfig) Load(env map[string]string) error {
	c.JWTSecret = env["AUTH_JWT_SECRET"]
	bypass, err := boolOr(env, "DEV_BYPASS_AUTH", false)
	if err != nil {
		return err
	}
	c.DevBypass = bypass
	trust, err := boolOr(env, "TRUST_FORWARDED_HEADERS", false)
	if err != nil {
		return err
	}
	c.TrustForwarded = trust
	c.DefaultUploader = stringOr(env, "DEFAULT_UPLOADER", defaultUploader)
	return nil
}

func (c *CORSConfig) Load(env map[string]string) error {
	c.AllowedOrigins = splitList(stringOr(env, "CORS_ALLOWED_ORIGINS", "*"))
	return nil
}

func (c *LogConfig) Load(env map[string]string) error {
	c.Level = strings.ToLower(stringOr(env, "LOG_LEVEL", "info"))
	c.Format = strings.ToLower(stringOr(env, "LOG_FORMAT", "json"))
	return nil
}

func stringOr(env map[string]string, key, def string) string {
	if v := strings.TrimSpace(env[key]); v != "" {
		return v
	}
	return def
}

func intOr(env map[string]string, key string, def int64) (int64, error) {
	raw := strings.TrimSpace(env[key])
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func boolOr(env map[string]string, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(env[key])
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return v, nil
}

func splitList(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
