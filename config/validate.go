package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

func (ap *AppConfig) Validate() error {
	if ap.Port <= 0 || ap.Port > 65535 {
		return fmt.Errorf("APP_PORT must be in range 1-65535, got %d", ap.Port)
	}
	if ap.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be positive, got %s", ap.ShutdownTimeout)
	}
	return nil
}

func (ic *IntakeConfig) Validate() error {
	if ic.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", ic.MaxFileSizeMB)
	}
	if len(ic.AllowedTypes) == 0 {
		return errors.New("ALLOWED_FILE_TYPES must list at least one extension")
	}
	if !strings.HasPrefix(ic.BasePath, "/") {
		return fmt.Errorf("DATABRICKS_VOLUME_PATH must be absolute, got %q", ic.BasePath)
	}
	return nil
}

func (sc *StorageConfig) Validate() error {
	switch sc.Backend {
	case BackendVolumes, BackendMinIO, BackendS3, BackendLocal:
		return nil
	}
	return fmt.Errorf("STORAGE_BACKEND must be one of volumes, minio, s3, local, got %q", sc.Backend)
}

// Validate accepts an empty section: the SDK then falls back to its default
// credential chain (env, ~/.databrickscfg, platform identity).
func (vc *VolumesConfig) Validate() error {
	if vc.Token != "" && vc.Host == "" {
		return errors.New("DATABRICKS_HOST must be set when DATABRICKS_TOKEN is set")
	}
	return nil
}

func (mc *MinIOConfig) Validate() error {
	missingVars := []string{}

	if mc.Endpoint == "" {
		missingVars = append(missingVars, "MINIO_ENDPOINT")
	}
	if mc.AccessKeyID == "" {
		missingVars = append(missingVars, "MINIO_ACCESS_KEY")
	}
	if mc.SecretAccessKey == "" {
		missingVars = append(missingVars, "MINIO_SECRET_KEY")
	}
	if mc.BucketName == "" {
		missingVars = append(missingVars, "MINIO_BUCKET_NAME")
	}

	if len(missingVars) > 0 {
		message := fmt.Sprintf("required environment variables are not set: %s", strings.Join(missingVars, ", "))
		slog.Warn(message)
		return errors.New(message)
	}

	if !isValidBucketName(mc.BucketName) {
		message := fmt.Sprintf("bucket name %q is invalid: use lowercase letters, digits and hyphens only", mc.BucketName)
		slog.Error(message)
		return errors.New(message)
	}

	return nil
}

func (sc *S3Config) Validate() error {
	missingVars := []string{}

	if sc.Bucket == "" {
		missingVars = append(missingVars, "S3_BUCKET")
	}
	if sc.AccessKeyID != "" && sc.SecretAccessKey == "" {
		missingVars = append(missingVars, "AWS_SECRET_ACCESS_KEY")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("required environment variables are not set: %s", strings.Join(missingVars, ", "))
	}
	if !isValidBucketName(sc.Bucket) {
		return fmt.Errorf("bucket name %q is invalid: use lowercase letters, digits and hyphens only", sc.Bucket)
	}
	return nil
}

func (lc *LocalConfig) Validate() error {
	if lc.Root == "" {
		return errors.New("LOCAL_STORAGE_ROOT must not be empty")
	}
	return nil
}

func (ac *AuthConfig) Validate() error {
	if ac.DefaultUploader == "" {
		return errors.New("DEFAULT_UPLOADER must not be empty")
	}
	return nil
}

func (cc *CORSConfig) Validate() error {
	if len(cc.AllowedOrigins) == 0 {
		return errors.New("CORS_ALLOWED_ORIGINS must list at least one origin")
	}
	return nil
}

func (lc *LogConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", lc.Level)
	}
	switch lc.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", lc.Format)
	}
	return nil
}

var bucketNameRegex = regexp.MustCompile(`^[a-z0-9\-]+$`)

func isValidBucketName(bucketName string) bool {
	return bucketNameRegex.MatchString(bucketName)
}
