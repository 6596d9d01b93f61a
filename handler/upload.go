package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"research_intake/intake"
	"research_intake/metadata"
	"research_intake/storage"
	"research_intake/validate"
)

const successfulUploadMessage = "File uploaded successfully"

type uploadResponse struct {
	Success           bool                       `json:"success"`
	Message           string                     `json:"message"`
	UploadInfo        metadata.UploadInfo        `json:"upload_info"`
	ResearchMetadata  metadata.ResearchMetadata  `json:"research_metadata"`
	TechnicalMetadata metadata.TechnicalMetadata `json:"technical_metadata"`
	MetadataFilePath  string                     `json:"metadata_file_path"`
}

type storageErrorResponse struct {
	Detail         string `json:"detail"`
	ErrorKind      string `json:"error_kind"`
	PartialSuccess bool   `json:"partial_success,omitempty"`
	FileStored     *bool  `json:"file_stored,omitempty"`
	MetadataStored *bool  `json:"metadata_stored,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
}

func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	sub, cleanup, err := s.parseUpload(w, r)
	defer cleanup()
	if err != nil {
		status, detail := parseErrorStatus(err)
		slog.Warn("failed to parse upload", "status", status, "error", err)
		writeError(w, status, detail, nil)
		return
	}

	out, err := s.intake.Process(r.Context(), sub)
	if err != nil {
		writeProcessError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Success:           true,
		Message:           successfulUploadMessage,
		UploadInfo:        out.Record.UploadInfo,
		ResearchMetadata:  out.Record.ResearchMetadata,
		TechnicalMetadata: out.Record.TechnicalMetadata,
		MetadataFilePath:  out.MetadataPath,
	})
}

func writeProcessError(w http.ResponseWriter, err error) {
	var verr *intake.ValidationError
	if errors.As(err, &verr) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(verr.File, validate.ErrFileTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(verr.File, validate.ErrFileTypeNotAllowed):
			status = http.StatusUnsupportedMediaType
		}
		writeError(w, status, validationDetail(verr), verr.All())
		return
	}

	var partial *intake.PartialFailure
	if errors.As(err, &partial) {
		stored, notStored := true, false
		writeJSON(w, http.StatusBadGateway, storageErrorResponse{
			Detail:         "file was stored but its metadata could not be written: " + storageMessage(partial.Err),
			ErrorKind:      string(storageKind(partial.Err)),
			PartialSuccess: true,
			FileStored:     &stored,
			MetadataStored: &notStored,
			FilePath:       partial.FilePath,
		})
		return
	}

	kind := storageKind(err)
	writeJSON(w, storageStatus(kind), storageErrorResponse{
		Detail:    storageMessage(err),
		ErrorKind: string(kind),
	})
}

func validationDetail(verr *intake.ValidationError) string {
	if verr.File != nil && len(verr.Fields) == 0 {
		return verr.File.Error()
	}
	return verr.Error()
}

func storageKind(err error) storage.Kind {
	var se *storage.Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return storage.KindUnknown
}

func storageMessage(err error) string {
	var se *storage.Error
	if errors.As(err, &se) {
		return se.Message()
	}
	return "internal error: " + err.Error()
}

// storageStatus is always 5xx: storage faults belong to the service
// principal, not the caller. error_kind in the body tells them apart.
func storageStatus(kind storage.Kind) int {
	switch kind {
	case storage.KindQuotaExceeded:
		return http.StatusInsufficientStorage
	case storage.KindPermissionDenied, storage.KindPathNotFound:
		return http.StatusInternalServerError
	}
	return http.StatusServiceUnavailable
}
