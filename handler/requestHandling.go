package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/docker/go-units"

	"research_intake/identity"
	"research_intake/intake"
	"research_intake/models"
	"research_intake/validate"
)

// parts larger than this spill to temporary files
const multipartMemory = 32 * units.MiB

const fileField = "file"

// errorResponse is the body of every 4xx answer.
type errorResponse struct {
	Detail string                `json:"detail"`
	Errors []validate.FieldError `json:"errors,omitempty"`
}

// parseUpload reads the multipart body into a submission. The returned
// cleanup removes spilled temp files and closes the file part.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (intake.Submission, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return intake.Submission{}, func() {}, err
	}

	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("failed to remove multipart temp files", "error", err)
		}
	}

	form := formFromValues(r.MultipartForm.Value)
	sub := intake.Submission{Form: form}
	if u, ok := identity.FromContext(r.Context()); ok {
		sub.Uploader = u.ID
	}

	file, header, err := r.FormFile(fileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// let the validator report the missing file next to any field errors
			sub.Body = strings.NewReader("")
			return sub, cleanup, nil
		}
		cleanup()
		return intake.Submission{}, func() {}, err
	}

	sub.Filename = header.Filename
	sub.ContentType = header.Header.Get("Content-Type")
	sub.Size = header.Size
	sub.Body = file

	return sub, func() {
		file.Close()
		cleanup()
	}, nil
}

func formFromValues(v map[string][]string) models.Form {
	first := func(key string) string {
		if vals := v[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	return models.Form{
		ProjectName:            first("project_name"),
		Hypothesis:             first("hypothesis"),
		DataSource:             first("data_source"),
		CollectionMethod:       first("collection_method"),
		WorkflowType:           first("workflow_type"),
		ExperimentID:           first("experiment_id"),
		DateRangeStart:         first("date_range_start"),
		DateRangeEnd:           first("date_range_end"),
		ResearchPhase:          first("research_phase"),
		PrivacyLevel:           first("privacy_level"),
		ProcessingRequirements: models.SplitRequirements(v["processing_requirements"]),
	}
}

// parseErrorStatus maps a multipart parsing failure to a status and message.
func parseErrorStatus(err error) (int, string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %s", units.BytesSize(float64(maxErr.Limit)))
	}
	if errors.Is(err, multipart.ErrMessageTooLarge) {
		return http.StatusRequestEntityTooLarge, "form fields are too large"
	}
	if errors.Is(err, http.ErrNotMultipart) {
		return http.StatusBadRequest, "request must be multipart/form-data"
	}
	return http.StatusBadRequest, "invalid multipart form: " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string, fields []validate.FieldError) {
	writeJSON(w, status, errorResponse{Detail: detail, Errors: fields})
}
