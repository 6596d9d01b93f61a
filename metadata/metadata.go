// Package metadata assembles the JSON record stored next to every upload.
package metadata

import (
	"bytes"
	"encoding/json"
	"time"

	"research_intake/models"
	"research_intake/naming"
	"research_intake/validate"
)

const defaultContentType = "application/octet-stream"

// Record is the document written to metadata_*.json. Optional research
// fields are omitted when not supplied, never written as null.
type Record struct {
	UploadInfo        UploadInfo        `json:"upload_info"`
	TechnicalMetadata TechnicalMetadata `json:"technical_metadata"`
	ResearchMetadata  ResearchMetadata  `json:"research_metadata"`
}

type UploadInfo struct {
	UploadID         string `json:"upload_id"`
	Timestamp        string `json:"timestamp"`
	Uploader         string `json:"uploader"`
	OriginalFilename string `json:"original_filename"`
	StoredFilename   string `json:"stored_filename"`
	FilePath         string `json:"file_path"`
}

type TechnicalMetadata struct {
	FileSizeBytes          int64    `json:"file_size_bytes"`
	FileFormat             string   `json:"file_format"`
	ContentType            string   `json:"content_type"`
	WorkflowType           string   `json:"workflow_type"`
	ProcessingRequirements []string `json:"processing_requirements"`
}

type ResearchMetadata struct {
	ProjectName      string     `json:"project_name"`
	Hypothesis       string     `json:"hypothesis"`
	DataSource       string     `json:"data_source"`
	CollectionMethod string     `json:"collection_method"`
	ExperimentID     string     `json:"experiment_id,omitempty"`
	DateRange        *DateRange `json:"date_range,omitempty"`
	ResearchPhase    string     `json:"research_phase,omitempty"`
	PrivacyLevel     string     `json:"privacy_level,omitempty"`
}

// DateRange bounds are ISO dates; either may be absent.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Input carries everything Assemble needs. Form must already be validated.
type Input struct {
	UploadID         string
	Form             models.Form
	OriginalFilename string
	Layout           naming.Layout
	Uploader         string
	At               time.Time
	Size             int64
	ContentType      string
}

// Assemble merges the automatic technical values with the submitted form.
func Assemble(in Input) Record {
	reqs := in.Form.ProcessingRequirements
	if reqs == nil {
		reqs = []string{}
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	rec := Record{
		UploadInfo: UploadInfo{
			UploadID:         in.UploadID,
			Timestamp:        Timestamp(in.At),
			Uploader:         in.Uploader,
			OriginalFilename: in.OriginalFilename,
			StoredFilename:   in.Layout.StoredFilename,
			FilePath:         in.Layout.FilePath,
		},
		TechnicalMetadata: TechnicalMetadata{
			FileSizeBytes:          in.Size,
			FileFormat:             validate.Extension(in.OriginalFilename),
			ContentType:            contentType,
			WorkflowType:           in.Form.WorkflowType,
			ProcessingRequirements: reqs,
		},
		ResearchMetadata: ResearchMetadata{
			ProjectName:      in.Form.ProjectName,
			Hypothesis:       in.Form.Hypothesis,
			DataSource:       in.Form.DataSource,
			CollectionMethod: in.Form.CollectionMethod,
			ExperimentID:     in.Form.ExperimentID,
			ResearchPhase:    in.Form.ResearchPhase,
			PrivacyLevel:     in.Form.PrivacyLevel,
		},
	}
	if in.Form.DateRangeStart != "" || in.Form.DateRangeEnd != "" {
		rec.ResearchMetadata.DateRange = &DateRange{Start: in.Form.DateRangeStart, End: in.Form.DateRangeEnd}
	}
	return rec
}

// Timestamp renders t as ISO-8601 UTC with a Z suffix.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Encode renders the record the way it is stored: two-space indented JSON
// with non-ASCII and HTML characters left unescaped.
func (r Record) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
