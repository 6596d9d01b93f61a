package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const tmpPrefix = ".tmp-"

// Local maps intake paths onto a directory tree under root.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Name() string { return "local" }

// Put writes to a temp file in the target directory and renames it into
// place, so readers never observe a partial object.
func (l *Local) Put(_ context.Context, p string, r io.Reader, _ int64, _ string) error {
	target := l.fsPath(p)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return newError(classifyLocal(err), p, err)
	}

	tmpPath := filepath.Join(filepath.Dir(target), tmpPrefix+uuid.NewString())
	defer os.Remove(tmpPath)

	f, err := os.Create(tmpPath)
	if err != nil {
		return newError(classifyLocal(err), p, err)
	}

	buf := make([]byte, 1*1024*1024)
	if _, err := io.CopyBuffer(f, r, buf); err != nil {
		f.Close()
		return newError(classifyLocal(err), p, err)
	}
	if err := f.Close(); err != nil {
		return newError(classifyLocal(err), p, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return newError(classifyLocal(err), p, err)
	}
	return nil
}

func (l *Local) Stat(_ context.Context, p string) (FileInfo, error) {
	target := l.fsPath(p)
	st, err := os.Stat(target)
	if err != nil {
		return FileInfo{}, newError(classifyLocal(err), p, err)
	}
	info := FileInfo{
		Path:       p,
		Name:       st.Name(),
		Size:       st.Size(),
		IsDir:      st.IsDir(),
		ModifiedAt: st.ModTime().UTC(),
	}
	if !st.IsDir() {
		if mt, err := mimetype.DetectFile(target); err == nil {
			info.ContentType = mt.String()
		}
	}
	return info, nil
}

func (l *Local) List(_ context.Context, dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(l.fsPath(dir))
	if err != nil {
		return nil, newError(classifyLocal(err), dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Path:       path.Join(dir, e.Name()),
			Name:       e.Name(),
			Size:       st.Size(),
			IsDir:      e.IsDir(),
			ModifiedAt: st.ModTime().UTC(),
		})
	}
	return out, nil
}

// fsPath cleans p as an absolute slash path first so ".." can never climb
// above root.
func (l *Local) fsPath(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(l.root, filepath.FromSlash(clean))
}

func classifyLocal(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return KindPathNotFound
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return KindQuotaExceeded
	}
	return KindUnknown
}
