package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/apierr"
	"github.com/databricks/databricks-sdk-go/service/files"

	"research_intake/config"
)

// Volumes writes through the Databricks Files API into a Unity Catalog
// volume (paths like /Volumes/<catalog>/<schema>/<volume>/...).
type Volumes struct {
	files files.FilesInterface
}

// NewVolumes authenticates with host/token or a CLI profile; unset values
// fall through to the SDK's default credential chain.
func NewVolumes(cfg config.VolumesConfig) (*Volumes, error) {
	w, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:    cfg.Host,
		Token:   cfg.Token,
		Profile: cfg.Profile,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("databricks workspace client ready", "host", w.Config.Host)
	return &Volumes{files: w.Files}, nil
}

func (v *Volumes) Name() string { return "volumes" }

func (v *Volumes) Put(ctx context.Context, p string, r io.Reader, size int64, contentType string) error {
	dir := path.Dir(p)
	if err := v.files.CreateDirectory(ctx, files.CreateDirectoryRequest{DirectoryPath: dir}); err != nil {
		if !isAlreadyExists(err) {
			return newError(classifyVolumes(err), dir, err)
		}
	}

	err := v.files.Upload(ctx, files.UploadRequest{
		FilePath:  p,
		Contents:  io.NopCloser(r),
		Overwrite: true,
	})
	if err != nil {
		return newError(classifyVolumes(err), p, err)
	}
	return nil
}

func (v *Volumes) Stat(ctx context.Context, p string) (FileInfo, error) {
	meta, err := v.files.GetMetadata(ctx, files.GetMetadataRequest{FilePath: p})
	if err != nil {
		return FileInfo{}, newError(classifyVolumes(err), p, err)
	}
	info := FileInfo{
		Path:        p,
		Name:        path.Base(p),
		Size:        meta.ContentLength,
		ContentType: meta.ContentType,
	}
	if t, err := http.ParseTime(meta.LastModified); err == nil {
		info.ModifiedAt = t
	}
	return info, nil
}

func (v *Volumes) List(ctx context.Context, dir string) ([]FileInfo, error) {
	entries, err := v.files.ListDirectoryContentsAll(ctx, files.ListDirectoryContentsRequest{DirectoryPath: dir})
	if err != nil {
		return nil, newError(classifyVolumes(err), dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info := FileInfo{
			Path:  e.Path,
			Name:  e.Name,
			Size:  e.FileSize,
			IsDir: e.IsDirectory,
		}
		if e.LastModified > 0 {
			info.ModifiedAt = time.UnixMilli(e.LastModified).UTC()
		}
		out = append(out, info)
	}
	return out, nil
}

func classifyVolumes(err error) Kind {
	var apiErr *apierr.APIError
	if !errors.As(err, &apiErr) {
		return KindUnknown
	}
	switch apiErr.ErrorCode {
	case "PERMISSION_DENIED", "UNAUTHENTICATED":
		return KindPermissionDenied
	case "NOT_FOUND", "RESOURCE_DOES_NOT_EXIST":
		return KindPathNotFound
	case "RESOURCE_EXHAUSTED", "QUOTA_EXCEEDED":
		return KindQuotaExceeded
	}
	switch apiErr.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindPathNotFound
	case http.StatusInsufficientStorage:
		return KindQuotaExceeded
	}
	return KindUnknown
}

func isAlreadyExists(err error) bool {
	var apiErr *apierr.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode == "ALREADY_EXISTS" || apiErr.ErrorCode == "RESOURCE_ALREADY_EXISTS") {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
