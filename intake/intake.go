// Package intake runs one upload from the validated form to the stored file
// and its metadata record.
package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"

	"research_intake/metadata"
	"research_intake/models"
	"research_intake/naming"
	"research_intake/options"
	"research_intake/storage"
	"research_intake/validate"
)

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

type State string

const (
	StateReceived        State = "received"
	StateValidated       State = "validated"
	StatePathResolved    State = "path_resolved"
	StateFileWritten     State = "file_written"
	StateMetadataWritten State = "metadata_written"
	StateComplete        State = "complete"

	StateRejectedInvalid     State = "rejected_invalid"
	StateFailedFileWrite     State = "failed_file_write"
	StateFailedMetadataWrite State = "failed_metadata_write"
)

// Submission is one upload as received from the client.
type Submission struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Form        models.Form
	Uploader    string
}

// Outcome is returned for every processed submission, failed or not.
type Outcome struct {
	State        State
	UploadID     string
	Record       metadata.Record
	FilePath     string
	MetadataPath string
}

type Config struct {
	BasePath string
	Limits   validate.Limits
	Options  options.Table
}

// Settings is the public view of the service configuration.
type Settings struct {
	BasePath         string
	MaxFileSizeBytes int64
	AllowedTypes     []string
	StorageBackend   string
	Fields           []validate.Rule
}

type Service struct {
	writer *storage.Writer
	cfg    Config
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDSource(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(w *storage.Writer, cfg Config, opts ...Option) *Service {
	s := &Service{
		writer: w,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Config() Settings {
	return Settings{
		BasePath:         s.cfg.BasePath,
		MaxFileSizeBytes: s.cfg.Limits.MaxBytes,
		AllowedTypes:     append([]string(nil), s.cfg.Limits.AllowedTypes...),
		StorageBackend:   s.writer.BackendName(),
		Fields:           append([]validate.Rule(nil), validate.Schema...),
	}
}

func (s *Service) Options() options.Table {
	return s.cfg.Options
}

// Process validates the submission, stores the file and then its metadata
// record. A single attempt is made; nothing is rolled back.
func (s *Service) Process(ctx context.Context, sub Submission) (*Outcome, error) {
	out := &Outcome{State: StateReceived, UploadID: s.newID()}
	log := slog.With("upload_id", out.UploadID, "filename", sub.Filename, "uploader", sub.Uploader)

	form := sub.Form.Normalize()
	fileErr := validate.File(sub.Filename, sub.Size, s.cfg.Limits)
	fieldErrs := validate.Form(form, s.cfg.Options)
	if fileErr != nil || len(fieldErrs) > 0 {
		out.State = StateRejectedInvalid
		verr := &ValidationError{File: fileErr, Fields: fieldErrs}
		log.Warn("upload rejected", "error", verr)
		return out, verr
	}
	out.State = StateValidated

	body, contentType, err := sniff(sub.Body, sub.ContentType)
	if err != nil {
		out.State = StateFailedFileWrite
		log.Error("failed to read upload", "error", err)
		return out, fmt.Errorf("read upload: %w", err)
	}

	at := s.now().UTC()
	layout := naming.Build(s.cfg.BasePath, form.ProjectName, sub.Filename, form.WorkflowType, at)
	out.State = StatePathResolved

	// the write must finish or fail on its own even if the client goes away
	writeCtx := context.WithoutCancel(ctx)
	reader := models.NewProgressReader(body, layout.StoredFilename, s.cfg.Limits.MaxBytes)
	if err := s.writer.WriteFile(writeCtx, layout.FilePath, reader, sub.Size, contentType); err != nil {
		if errors.Is(err, models.ErrLimitExceeded) || (s.cfg.Limits.MaxBytes > 0 && reader.TotalBytes > s.cfg.Limits.MaxBytes) {
			out.State = StateRejectedInvalid
			verr := &ValidationError{File: fmt.Errorf("%w: stream exceeds maximum allowed size of %s",
				validate.ErrFileTooLarge, units.BytesSize(float64(s.cfg.Limits.MaxBytes)))}
			log.Warn("upload rejected", "error", verr)
			return out, verr
		}
		out.State = StateFailedFileWrite
		log.Error("failed to store file", "path", layout.FilePath, "error", err)
		return out, err
	}
	out.State = StateFileWritten
	out.FilePath = layout.FilePath

	rec := metadata.Assemble(metadata.Input{
		UploadID:         out.UploadID,
		Form:             form,
		OriginalFilename: sub.Filename,
		Layout:           layout,
		Uploader:         sub.Uploader,
		At:               at,
		Size:             reader.TotalBytes,
		ContentType:      contentType,
	})
	out.Record = rec

	if err := s.writer.WriteMetadata(writeCtx, layout.MetadataPath, rec); err != nil {
		out.State = StateFailedMetadataWrite
		log.Error("file stored without metadata", "file_path", layout.FilePath, "metadata_path", layout.MetadataPath, "error", err)
		return out, &PartialFailure{FilePath: layout.FilePath, MetadataPath: layout.MetadataPath, Err: err}
	}
	out.State = StateMetadataWritten
	out.MetadataPath = layout.MetadataPath

	out.State = StateComplete
	log.Info("upload complete", "file_path", out.FilePath, "metadata_path", out.MetadataPath, "size", units.BytesSize(float64(reader.TotalBytes)))
	return out, nil
}

// sniff peeks at the head of r to detect its content type and returns a
// reader that still yields the whole stream. A specific declared type wins
// over the detected one.
func sniff(r io.Reader, declared string) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]

	contentType := strings.TrimSpace(declared)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(head).String()
	}
	return io.MultiReader(bytes.NewReader(head), r), contentType, nil
}

// ProjectFile is one entry of a project date folder.
type ProjectFile struct {
	storage.FileInfo
	IsMetadata bool `json:"is_metadata"`
}

// ListProjectFiles lists the folder of project for date (YYYY-MM-DD, today
// in UTC when empty). A missing folder yields an empty list.
func (s *Service) ListProjectFiles(ctx context.Context, project, date string) ([]ProjectFile, error) {
	var fields validate.Errors
	if strings.TrimSpace(project) == "" {
		fields = append(fields, validate.FieldError{Field: "project", Reason: "required"})
	}
	day := s.now().UTC()
	if date != "" {
		d, err := time.Parse(naming.DateFolderLayout, date)
		if err != nil {
			fields = append(fields, validate.FieldError{Field: "date", Reason: "must be a date in YYYY-MM-DD format"})
		}
		day = d
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	dir := naming.DateFolder(s.cfg.BasePath, project, day)
	entries, err := s.writer.List(ctx, dir)
	if err != nil {
		slog.Error("failed to list project files", "dir", dir, "error", err)
		return nil, err
	}

	out := make([]ProjectFile, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProjectFile{FileInfo: e, IsMetadata: !e.IsDir && naming.IsMetadataFilename(e.Name)})
	}
	return out, nil
}

// FileInfo describes a stored object under the base path.
func (s *Service) FileInfo(ctx context.Context, p string) (storage.FileInfo, error) {
	clean, err := s.underBase(p)
	if err != nil {
		return storage.FileInfo{}, err
	}
	return s.writer.Stat(ctx, clean)
}

// FileExists reports whether an object is stored at p under the base path.
func (s *Service) FileExists(ctx context.Context, p string) (bool, error) {
	clean, err := s.underBase(p)
	if err != nil {
		return false, err
	}
	return s.writer.Exists(ctx, clean)
}

func (s *Service) underBase(p string) (string, error) {
	base := path.Clean("/" + s.cfg.BasePath)
	clean := path.Clean("/" + p)
	if clean != base && !strings.HasPrefix(clean, strings.TrimSuffix(base, "/")+"/") {
		return "", &ValidationError{Fields: validate.Errors{{Field: "path", Reason: "must be inside " + base}}}
	}
	return clean, nil
}
