package handler

import (
	"errors"
	"net/http"

	"github.com/docker/go-units"

	"research_intake/intake"
	"research_intake/storage"
	"research_intake/validate"
)

type configResponse struct {
	MaxFileSizeMB    int64           `json:"max_file_size_mb"`
	MaxFileSizeBytes int64           `json:"max_file_size_bytes"`
	AllowedFileTypes []string        `json:"allowed_file_types"`
	VolumePath       string          `json:"volume_path"`
	StorageBackend   string          `json:"storage_backend"`
	Fields           []validate.Rule `json:"fields"`
}

type filesResponse struct {
	Project string               `json:"project"`
	Date    string               `json:"date,omitempty"`
	Count   int                  `json:"count"`
	Files   []intake.ProjectFile `json:"files"`
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Options lists the dropdown values a client may submit. Upload rejects any
// processing_requirements value missing from this list with a 400 naming
// the offending value; unknown values are never dropped silently.
func (s *Server) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.intake.Options().Listing())
}

func (s *Server) Config(w http.ResponseWriter, r *http.Request) {
	cfg := s.intake.Config()
	writeJSON(w, http.StatusOK, configResponse{
		MaxFileSizeMB:    cfg.MaxFileSizeBytes / units.MiB,
		MaxFileSizeBytes: cfg.MaxFileSizeBytes,
		AllowedFileTypes: cfg.AllowedTypes,
		VolumePath:       cfg.BasePath,
		StorageBackend:   cfg.StorageBackend,
		Fields:           cfg.Fields,
	})
}

func (s *Server) Files(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	date := r.URL.Query().Get("date")

	files, err := s.intake.ListProjectFiles(r.Context(), project, date)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filesResponse{Project: project, Date: date, Count: len(files), Files: files})
}

func (s *Server) FileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.intake.FileInfo(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// FileExists answers HEAD /upload/files/info with 200 when the object is
// stored and 404 when it is not.
func (s *Server) FileExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.intake.FileExists(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeLookupError(w http.ResponseWriter, err error) {
	var verr *intake.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error(), verr.All())
		return
	}
	if storage.IsKind(err, storage.KindPathNotFound) {
		writeError(w, http.StatusNotFound, "file not found", nil)
		return
	}
	writeProcessError(w, err)
}
