package models

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/docker/go-units"
)

// ErrLimitExceeded is returned by ProgressReader once more than Limit bytes
// have been read.
var ErrLimitExceeded = errors.New("read limit exceeded")

// ProgressReader counts the bytes flowing through it, logs progress once a
// second and fails the stream when Limit (if positive) is exceeded.
type ProgressReader struct {
	Reader      io.Reader
	Name        string
	Limit       int64
	TotalBytes  int64
	ChunkCount  int
	LastLogTime time.Time
}

func NewProgressReader(r io.Reader, name string, limit int64) *ProgressReader {
	return &ProgressReader{Reader: r, Name: name, Limit: limit, LastLogTime: time.Now()}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.Reader.Read(p)
	pr.TotalBytes += int64(n)
	pr.ChunkCount++

	if pr.Limit > 0 && pr.TotalBytes > pr.Limit {
		slog.Warn("upload exceeded size limit", "name", pr.Name, "limit", units.BytesSize(float64(pr.Limit)), "read", pr.TotalBytes)
		return n, ErrLimitExceeded
	}

	now := time.Now()
	if now.Sub(pr.LastLogTime) >= time.Second {
		slog.Info("upload progress", "name", pr.Name, "chunk_number", pr.ChunkCount, "bytes_read_in_chunk", n, "total", units.BytesSize(float64(pr.TotalBytes)))
		pr.LastLogTime = now
	}
	return n, err
}
