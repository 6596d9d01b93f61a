package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"research_intake/models"
	"research_intake/options"
	"research_intake/storage"
	"research_intake/validate"
)

const testBase = "/Volumes/jmr_demo/intake/storage"

type fakeBackend struct {
	objects map[string][]byte
	types   map[string]string
	puts    []string
	failOn  map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: map[string][]byte{}, types: map[string]string{}, failOn: map[string]error{}}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Put(_ context.Context, p string, r io.Reader, _ int64, contentType string) error {
	f.puts = append(f.puts, p)
	if err, ok := f.failOn[p]; ok {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[p] = data
	f.types[p] = contentType
	return nil
}

func (f *fakeBackend) Stat(_ context.Context, p string) (storage.FileInfo, error) {
	data, ok := f.objects[p]
	if !ok {
		return storage.FileInfo{}, &storage.Error{Kind: storage.KindPathNotFound, Path: p, Err: fs.ErrNotExist}
	}
	return storage.FileInfo{Path: p, Name: p[strings.LastIndex(p, "/")+1:], Size: int64(len(data))}, nil
}

func (f *fakeBackend) List(_ context.Context, dir string) ([]storage.FileInfo, error) {
	var out []storage.FileInfo
	for p, data := range f.objects {
		if strings.HasPrefix(p, dir+"/") {
			out = append(out, storage.FileInfo{Path: p, Name: p[len(dir)+1:], Size: int64(len(data))})
		}
	}
	if out == nil {
		return nil, &storage.Error{Kind: storage.KindPathNotFound, Path: dir, Err: fs.ErrNotExist}
	}
	return out, nil
}

var fixedTime = time.Date(2025, 1, 30, 14, 5, 9, 0, time.UTC)

func newTestService(b *fakeBackend, maxBytes int64) *Service {
	return NewService(storage.NewWriter(b), Config{
		BasePath: testBase,
		Limits:   validate.Limits{MaxBytes: maxBytes, AllowedTypes: validate.DefaultAllowedTypes},
		Options:  options.Default(),
	},
		WithClock(func() time.Time { return fixedTime }),
		WithIDSource(func() string { return "01JTESTUPLOAD" }),
	)
}

func validForm() models.Form {
	return models.Form{
		ProjectName:      "Q1 Consumer Study",
		Hypothesis:       "Price sensitivity rises with basket size",
		DataSource:       "Panel survey",
		CollectionMethod: "Online questionnaire",
		WorkflowType:     "csv",
	}
}

func submission(body string, form models.Form) Submission {
	return Submission{
		Filename:    "survey.csv",
		ContentType: "text/csv",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
		Form:        form,
		Uploader:    "analyst@example.com",
	}
}

func TestProcessStoresFileAndMetadata(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	body := "respondent,score\n1,4\n2,5\n"

	out, err := svc.Process(context.Background(), submission(body, validForm()))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.State != StateComplete {
		t.Errorf("unexpected state %s", out.State)
	}

	wantFile := testBase + "/q1-consumer-study/2025-01-30/survey_csv_20250130_140509.csv"
	wantMeta := testBase + "/q1-consumer-study/2025-01-30/metadata_survey_csv_20250130_140509.json"
	if out.FilePath != wantFile || out.MetadataPath != wantMeta {
		t.Fatalf("unexpected paths %s %s", out.FilePath, out.MetadataPath)
	}
	if len(b.puts) != 2 || b.puts[0] != wantFile || b.puts[1] != wantMeta {
		t.Errorf("expected file then metadata writes, got %v", b.puts)
	}
	if string(b.objects[wantFile]) != body {
		t.Errorf("file contents changed: %q", b.objects[wantFile])
	}
	if b.types[wantMeta] != "application/json" {
		t.Errorf("unexpected metadata content type %s", b.types[wantMeta])
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(b.objects[wantMeta], &raw); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	info := raw["upload_info"]
	if info["upload_id"] != "01JTESTUPLOAD" || info["timestamp"] != "2025-01-30T14:05:09Z" || info["uploader"] != "analyst@example.com" {
		t.Errorf("unexpected upload_info %v", info)
	}
	if info["original_filename"] != "survey.csv" || info["file_path"] != wantFile {
		t.Errorf("unexpected upload_info %v", info)
	}
	tech := raw["technical_metadata"]
	if tech["file_size_bytes"] != float64(len(body)) || tech["file_format"] != "csv" || tech["workflow_type"] != "csv" {
		t.Errorf("unexpected technical_metadata %v", tech)
	}
	if reqs, ok := tech["processing_requirements"].([]any); !ok || len(reqs) != 0 {
		t.Errorf("expected empty processing_requirements, got %v", tech["processing_requirements"])
	}
	research := raw["research_metadata"]
	for _, key := range []string{"experiment_id", "date_range", "research_phase", "privacy_level"} {
		if _, ok := research[key]; ok {
			t.Errorf("optional key %s should be omitted", key)
		}
	}
	if research["project_name"] != "Q1 Consumer Study" {
		t.Errorf("unexpected project_name %v", research["project_name"])
	}
}

func TestProcessMissingHypothesisWritesNothing(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	form := validForm()
	form.Hypothesis = "   "

	out, err := svc.Process(context.Background(), submission("a,b\n", form))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !verr.Fields.Has("hypothesis") {
		t.Errorf("expected hypothesis error, got %v", verr.Fields)
	}
	if out.State != StateRejectedInvalid {
		t.Errorf("unexpected state %s", out.State)
	}
	if len(b.puts) != 0 {
		t.Errorf("expected no storage writes, got %v", b.puts)
	}
}

func TestProcessReportsAllFailures(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	form := validForm()
	form.DataSource = ""
	form.WorkflowType = "docx"
	sub := submission("x", form)
	sub.Filename = "notes.docx"

	_, err := svc.Process(context.Background(), sub)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !errors.Is(err, validate.ErrFileTypeNotAllowed) {
		t.Errorf("expected file type error, got %v", verr.File)
	}
	all := verr.All()
	if len(all) != 3 || all[0].Field != "file" {
		t.Errorf("expected file, data_source and workflow_type errors, got %v", all)
	}
}

func TestProcessSizeBoundaries(t *testing.T) {
	const limit = 16

	tests := []struct {
		name     string
		body     string
		declared int64
		wantErr  error
	}{
		{"empty", "", 0, validate.ErrNoFileProvided},
		{"at limit", strings.Repeat("a", limit), limit, nil},
		{"over limit", strings.Repeat("a", limit+1), limit + 1, validate.ErrFileTooLarge},
		{"declared size lies", strings.Repeat("a", limit+8), 4, validate.ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			svc := newTestService(b, limit)
			sub := submission(tt.body, validForm())
			sub.Size = tt.declared

			out, err := svc.Process(context.Background(), sub)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if out.Record.TechnicalMetadata.FileSizeBytes != limit {
					t.Errorf("unexpected size %d", out.Record.TechnicalMetadata.FileSizeBytes)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if out.State != StateRejectedInvalid {
				t.Errorf("unexpected state %s", out.State)
			}
			for _, p := range b.puts {
				if strings.HasSuffix(p, ".json") {
					t.Errorf("metadata must not be written for a rejected upload, got %s", p)
				}
			}
		})
	}
}

func TestProcessFileWriteFailure(t *testing.T) {
	b := newFakeBackend()
	filePath := testBase + "/q1-consumer-study/2025-01-30/survey_csv_20250130_140509.csv"
	b.failOn[filePath] = &storage.Error{Kind: storage.KindPermissionDenied, Path: filePath, Err: fs.ErrPermission}
	svc := newTestService(b, validate.DefaultMaxBytes)

	out, err := svc.Process(context.Background(), submission("a,b\n", validForm()))
	if !storage.IsKind(err, storage.KindPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if out.State != StateFailedFileWrite {
		t.Errorf("unexpected state %s", out.State)
	}
	if len(b.puts) != 1 {
		t.Errorf("metadata must not be attempted, got %v", b.puts)
	}
}

func TestProcessPartialFailure(t *testing.T) {
	b := newFakeBackend()
	metaPath := testBase + "/q1-consumer-study/2025-01-30/metadata_survey_csv_20250130_140509.json"
	b.failOn[metaPath] = &storage.Error{Kind: storage.KindQuotaExceeded, Path: metaPath, Err: errors.New("quota")}
	svc := newTestService(b, validate.DefaultMaxBytes)

	out, err := svc.Process(context.Background(), submission("a,b\n", validForm()))
	var pf *PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected *PartialFailure, got %v", err)
	}
	wantFile := testBase + "/q1-consumer-study/2025-01-30/survey_csv_20250130_140509.csv"
	if pf.FilePath != wantFile || out.FilePath != wantFile {
		t.Errorf("expected file path %s, got %s / %s", wantFile, pf.FilePath, out.FilePath)
	}
	if out.State != StateFailedMetadataWrite {
		t.Errorf("unexpected state %s", out.State)
	}
	if _, ok := b.objects[wantFile]; !ok {
		t.Error("stored file must not be removed")
	}
	if !storage.IsKind(err, storage.KindQuotaExceeded) {
		t.Errorf("expected quota kind through the chain, got %v", err)
	}
}

func TestProcessDetectsContentType(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	body := `{"respondents": 12}`
	sub := submission(body, validForm())
	sub.Filename = "panel.json"
	sub.ContentType = "application/octet-stream"
	sub.Form.WorkflowType = "json"

	out, err := svc.Process(context.Background(), sub)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Record.TechnicalMetadata.ContentType != "application/json" {
		t.Errorf("unexpected content type %s", out.Record.TechnicalMetadata.ContentType)
	}
	if !bytes.Equal(b.objects[out.FilePath], []byte(body)) {
		t.Errorf("stream was altered: %q", b.objects[out.FilePath])
	}
}

func TestProcessSurvivesCanceledContext(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := svc.Process(ctx, submission("a,b\n", validForm()))
	if err != nil || out.State != StateComplete {
		t.Errorf("expected completion with a canceled request context, got %v %v", out.State, err)
	}
}

func TestListProjectFiles(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	if _, err := svc.Process(context.Background(), submission("a,b\n", validForm())); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	files, err := svc.ListProjectFiles(context.Background(), "Q1 Consumer Study", "")
	if err != nil {
		t.Fatalf("ListProjectFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 entries, got %v", files)
	}
	var metas int
	for _, f := range files {
		if f.IsMetadata {
			metas++
		}
	}
	if metas != 1 {
		t.Errorf("expected one metadata entry, got %d", metas)
	}

	files, err = svc.ListProjectFiles(context.Background(), "Q1 Consumer Study", "2024-12-31")
	if err != nil || len(files) != 0 {
		t.Errorf("expected empty listing, got %v %v", files, err)
	}

	_, err = svc.ListProjectFiles(context.Background(), "", "31/12/2024")
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Fields.Has("project") || !verr.Fields.Has("date") {
		t.Errorf("expected project and date errors, got %v", err)
	}
}

func TestFileInfoStaysUnderBase(t *testing.T) {
	b := newFakeBackend()
	svc := newTestService(b, validate.DefaultMaxBytes)
	out, err := svc.Process(context.Background(), submission("a,b\n", validForm()))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	info, err := svc.FileInfo(context.Background(), out.FilePath)
	if err != nil || info.Size != 4 {
		t.Errorf("unexpected info %+v %v", info, err)
	}
	ok, err := svc.FileExists(context.Background(), out.MetadataPath)
	if err != nil || !ok {
		t.Errorf("expected metadata to exist, got %v %v", ok, err)
	}

	_, err = svc.FileInfo(context.Background(), testBase+"/../../other/secret.csv")
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Fields.Has("path") {
		t.Errorf("expected path error, got %v", err)
	}
}

func TestConfig(t *testing.T) {
	svc := newTestService(newFakeBackend(), 5*1024*1024)
	got := svc.Config()
	if got.MaxFileSizeBytes != 5*1024*1024 || got.BasePath != testBase || got.StorageBackend != "fake" {
		t.Errorf("unexpected settings %+v", got)
	}
	if len(got.Fields) == 0 {
		t.Error("expected the field schema")
	}
}
