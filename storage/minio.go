package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"research_intake/config"
)

const uploadChunkSize = 1024 * 1024 * 10

// MinIO stores objects in a single bucket; intake paths become object keys.
type MinIO struct {
	client     *minio.Client
	bucketName string
}

func NewMinIO(cfg config.MinIOConfig) (*MinIO, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		slog.Error("failed to connect to MinIO", "error", err)
		return nil, err
	}

	slog.Info("minio client connected", "endpoint", cfg.Endpoint, "bucket", cfg.BucketName)
	return &MinIO{client: minioClient, bucketName: cfg.BucketName}, nil
}

func (m *MinIO) Name() string { return "minio" }

// EnsureBucket creates the bucket unless it exists or another process
// created it concurrently.
func (m *MinIO) EnsureBucket(ctx context.Context, location string) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		slog.Error("failed to check bucket", "bucket", m.bucketName, "error", err)
		return fmt.Errorf("check bucket %s: %w", m.bucketName, err)
	}
	if exists {
		slog.Info("bucket already exists", "bucket", m.bucketName)
		return nil
	}

	err = m.client.MakeBucket(ctx, m.bucketName, minio.MakeBucketOptions{Region: location})
	if err != nil {
		if isBucketAlreadyExists(err) {
			slog.Info("bucket was created concurrently", "bucket", m.bucketName)
			return nil
		}
		slog.Error("failed to create bucket", "bucket", m.bucketName, "error", err)
		return fmt.Errorf("create bucket %s: %w", m.bucketName, err)
	}

	slog.Info("bucket created", "bucket", m.bucketName)
	return nil
}

func (m *MinIO) Put(ctx context.Context, p string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucketName, objectKey(p), r, size, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    uploadChunkSize,
		UserMetadata: map[string]string{
			"X-Uploaded-At":   time.Now().UTC().Format(time.RFC3339),
			"X-Original-Name": path.Base(p),
		},
	})
	if err != nil {
		return newError(classifyMinIO(err), p, err)
	}
	return nil
}

func (m *MinIO) Stat(ctx context.Context, p string) (FileInfo, error) {
	info, err := m.client.StatObject(ctx, m.bucketName, objectKey(p), minio.StatObjectOptions{})
	if err != nil {
		return FileInfo{}, newError(classifyMinIO(err), p, err)
	}
	return FileInfo{
		Path:        p,
		Name:        path.Base(info.Key),
		Size:        info.Size,
		ModifiedAt:  info.LastModified,
		ContentType: info.ContentType,
	}, nil
}

func (m *MinIO) List(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := strings.TrimSuffix(objectKey(dir), "/") + "/"
	out := []FileInfo{}
	for obj := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, newError(classifyMinIO(obj.Err), dir, obj.Err)
		}
		isDir := strings.HasSuffix(obj.Key, "/")
		out = append(out, FileInfo{
			Path:        path.Join(dir, path.Base(obj.Key)),
			Name:        path.Base(obj.Key),
			Size:        obj.Size,
			IsDir:       isDir,
			ModifiedAt:  obj.LastModified,
			ContentType: obj.ContentType,
		})
	}
	return out, nil
}

func classifyMinIO(err error) Kind {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return KindPermissionDenied
	case "NoSuchBucket", "NoSuchKey", "NoSuchObject":
		return KindPathNotFound
	case "XMinioAdminBucketQuotaExceeded", "XMinioStorageFull", "QuotaExceeded":
		return KindQuotaExceeded
	}
	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindPathNotFound
	case http.StatusInsufficientStorage:
		return KindQuotaExceeded
	}
	return KindUnknown
}

func isBucketAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	code := minio.ToErrorResponse(err).Code
	return code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" ||
		strings.Contains(err.Error(), "BucketAlreadyExists")
}

// objectKey maps an intake path onto a bucket key.
func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
