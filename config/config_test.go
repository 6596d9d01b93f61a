package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(map[string]string{})
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.App.Host != "0.0.0.0" || cfg.App.Port != 8000 {
		t.Errorf("unexpected app config %+v", cfg.App)
	}
	if cfg.App.ShutdownTimeout != 15*time.Second {
		t.Errorf("unexpected shutdown timeout %s", cfg.App.ShutdownTimeout)
	}
	if cfg.Intake.BasePath != "/Volumes/jmr_demo/intake/storage" {
		t.Errorf("unexpected base path %s", cfg.Intake.BasePath)
	}
	if cfg.Intake.MaxFileSizeBytes() != 100*1024*1024 {
		t.Errorf("unexpected max size %d", cfg.Intake.MaxFileSizeBytes())
	}
	if strings.Join(cfg.Intake.AllowedTypes, ",") != "csv,json,pdf,xlsx,txt" {
		t.Errorf("unexpected allowed types %v", cfg.Intake.AllowedTypes)
	}
	if cfg.Storage.Backend != BackendVolumes {
		t.Errorf("unexpected backend %s", cfg.Storage.Backend)
	}
	if cfg.Auth.DefaultUploader != "unknown@databricks.com" || cfg.Auth.DevBypass || cfg.Auth.TrustForwarded {
		t.Errorf("unexpected auth config %+v", cfg.Auth)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(map[string]string{
		"APP_PORT":                "9090",
		"MAX_FILE_SIZE_MB":        "5",
		"ALLOWED_FILE_TYPES":      " CSV, .json ,,csv",
		"STORAGE_BACKEND":         "local",
		"LOCAL_STORAGE_ROOT":      "/tmp/intake",
		"DEV_BYPASS_AUTH":         "true",
		"TRUST_FORWARDED_HEADERS": "1",
		"CORS_ALLOWED_ORIGINS":    "https://a.example, https://b.example",
		"LOG_FORMAT":              "console",
	})
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.App.Port != 9090 {
		t.Errorf("unexpected port %d", cfg.App.Port)
	}
	if cfg.Intake.MaxFileSizeBytes() != 5*1024*1024 {
		t.Errorf("unexpected max size %d", cfg.Intake.MaxFileSizeBytes())
	}
	if strings.Join(cfg.Intake.AllowedTypes, ",") != "csv,json" {
		t.Errorf("unexpected allowed types %v", cfg.Intake.AllowedTypes)
	}
	if cfg.Storage.Backend != BackendLocal || cfg.Local.Root != "/tmp/intake" {
		t.Errorf("unexpected storage config %+v %+v", cfg.Storage, cfg.Local)
	}
	if !cfg.Auth.DevBypass {
		t.Error("expected dev bypass to be enabled")
	}
	if !cfg.Auth.TrustForwarded {
		t.Error("expected forwarded headers to be trusted")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad port", map[string]string{"APP_PORT": "70000"}, "APP_PORT"},
		{"port not a number", map[string]string{"APP_PORT": "eighty"}, "APP_PORT"},
		{"zero size", map[string]string{"MAX_FILE_SIZE_MB": "0"}, "MAX_FILE_SIZE_MB"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "ftp"}, "STORAGE_BACKEND"},
		{"volume path", map[string]string{"DATABRICKS_VOLUME_PATH": "/mnt/data"}, "/Volumes/"},
		{"token without host", map[string]string{"DATABRICKS_TOKEN": "dapi"}, "DATABRICKS_HOST"},
		{"bad bypass", map[string]string{"DEV_BYPASS_AUTH": "maybe"}, "DEV_BYPASS_AUTH"},
		{"bad forwarded trust", map[string]string{"TRUST_FORWARDED_HEADERS": "sometimes"}, "TRUST_FORWARDED_HEADERS"},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL"},
		{"s3 without bucket", map[string]string{"STORAGE_BACKEND": "s3"}, "S3_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(tt.env)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error to mention %s, got %v", tt.want, err)
			}
		})
	}
}

func TestLogFromEnv(t *testing.T) {
	lc, err := LogFromEnv(map[string]string{"LOG_LEVEL": "DEBUG", "LOG_FORMAT": "console", "STORAGE_BACKEND": "ftp"})
	if err != nil {
		t.Fatalf("LogFromEnv failed: %v", err)
	}
	if lc.Level != "debug" || lc.Format != "console" {
		t.Errorf("unexpected log config %+v", lc)
	}

	if _, err := LogFromEnv(map[string]string{"LOG_FORMAT": "xml"}); err == nil || !strings.Contains(err.Error(), "LOG_FORMAT") {
		t.Errorf("expected LOG_FORMAT error, got %v", err)
	}
}

func TestMinIOValidateListsAllMissing(t *testing.T) {
	_, err := FromEnv(map[string]string{"STORAGE_BACKEND": "minio", "MINIO_ENDPOINT": "localhost:9000"})
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, v := range []string{"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET_NAME"} {
		if !strings.Contains(err.Error(), v) {
			t.Errorf("expected %s in %v", v, err)
		}
	}
	if strings.Contains(err.Error(), "MINIO_ENDPOINT") {
		t.Errorf("endpoint was set, got %v", err)
	}
}

func TestMinIOConfig(t *testing.T) {
	cfg, err := FromEnv(map[string]string{
		"STORAGE_BACKEND":   "minio",
		"MINIO_ENDPOINT":    "localhost:9000",
		"MINIO_ACCESS_KEY":  "minio",
		"MINIO_SECRET_KEY":  "minio123",
		"MINIO_BUCKET_NAME": "research-intake",
		"MINIO_USE_SSL":     "false",
	})
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.MinIO.UseSSL {
		t.Error("expected SSL to be disabled")
	}
	if cfg.MinIO.Location != "us-east-1" {
		t.Errorf("unexpected location %s", cfg.MinIO.Location)
	}

	_, err = FromEnv(map[string]string{
		"STORAGE_BACKEND":   "minio",
		"MINIO_ENDPOINT":    "localhost:9000",
		"MINIO_ACCESS_KEY":  "minio",
		"MINIO_SECRET_KEY":  "minio123",
		"MINIO_BUCKET_NAME": "Research_Intake",
	})
	if err == nil {
		t.Error("expected invalid bucket name to be rejected")
	}
}
