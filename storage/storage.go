// Package storage persists uploaded files and their metadata records on a
// path-addressable blob backend.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"research_intake/metadata"
)

const metadataContentType = "application/json"

// FileInfo describes a stored object or directory.
type FileInfo struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size_bytes"`
	IsDir       bool      `json:"is_directory"`
	ModifiedAt  time.Time `json:"modified_at,omitzero"`
	ContentType string    `json:"content_type,omitempty"`
}

// Backend is the capability "put bytes at path" plus the lookups used by
// the listing endpoints. Backends return *Error for every failure.
type Backend interface {
	Name() string
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Stat(ctx context.Context, path string) (FileInfo, error)
	List(ctx context.Context, dir string) ([]FileInfo, error)
}

// Writer writes the file first and the metadata record second. It never
// removes a file whose metadata write failed.
type Writer struct {
	backend Backend
}

func NewWriter(b Backend) *Writer {
	return &Writer{backend: b}
}

func (w *Writer) BackendName() string {
	return w.backend.Name()
}

func (w *Writer) WriteFile(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	start := time.Now()
	if err := w.backend.Put(ctx, path, r, size, contentType); err != nil {
		return asError("write file", path, err)
	}
	slog.Info("file stored", "backend", w.backend.Name(), "path", path, "size", size, "duration", time.Since(start).Seconds())
	return nil
}

func (w *Writer) WriteMetadata(ctx context.Context, path string, rec metadata.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return &Error{Kind: KindUnknown, Op: "encode metadata", Path: path, Err: err}
	}
	if err := w.backend.Put(ctx, path, bytes.NewReader(data), int64(len(data)), metadataContentType); err != nil {
		return asError("write metadata", path, err)
	}
	slog.Info("metadata stored", "backend", w.backend.Name(), "path", path)
	return nil
}

func (w *Writer) Stat(ctx context.Context, path string) (FileInfo, error) {
	info, err := w.backend.Stat(ctx, path)
	if err != nil {
		return FileInfo{}, asError("stat", path, err)
	}
	return info, nil
}

// Exists reports whether an object is stored at path.
func (w *Writer) Exists(ctx context.Context, path string) (bool, error) {
	_, err := w.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if IsKind(err, KindPathNotFound) {
		return false, nil
	}
	return false, err
}

// List returns the entries of dir; a missing directory yields an empty list.
func (w *Writer) List(ctx context.Context, dir string) ([]FileInfo, error) {
	entries, err := w.backend.List(ctx, dir)
	if err != nil {
		if IsKind(err, KindPathNotFound) {
			return []FileInfo{}, nil
		}
		return nil, asError("list", dir, err)
	}
	if entries == nil {
		entries = []FileInfo{}
	}
	return entries, nil
}

// Kind classifies storage failures.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindPathNotFound     Kind = "path_not_found"
	KindQuotaExceeded    Kind = "quota_exceeded"
	KindUnknown          Kind = "unknown"
)

// Error is the normalised failure of a backend call.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is a human readable, actionable description of the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		return fmt.Sprintf("permission denied writing to %s: check that the service principal can write to the storage location", e.Path)
	case KindPathNotFound:
		return fmt.Sprintf("storage location for %s does not exist: check the configured base path", e.Path)
	case KindQuotaExceeded:
		return fmt.Sprintf("storage quota exceeded while writing %s: free space or raise the quota and retry", e.Path)
	}
	return fmt.Sprintf("storage error writing %s: %v", e.Path, e.Err)
}

// IsKind reports whether err is a storage *Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

// asError keeps a backend *Error (filling in the operation) and wraps
// anything else as KindUnknown.
func asError(op, path string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		out := *se
		if out.Op == "" {
			out.Op = op
		}
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}
	return &Error{Kind: KindUnknown, Op: op, Path: path, Err: err}
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
