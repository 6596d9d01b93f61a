package intake

import (
	"fmt"
	"strings"

	"research_intake/validate"
)

// ValidationError is a client-fixable rejection. File holds the file level
// failure (wrapping one of the validate sentinels), Fields every form
// field failure.
type ValidationError struct {
	File   error
	Fields validate.Errors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, 2)
	if e.File != nil {
		parts = append(parts, "file: "+e.File.Error())
	}
	if len(e.Fields) > 0 {
		parts = append(parts, e.Fields.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.File }

// All lists every failure, the file first.
func (e *ValidationError) All() []validate.FieldError {
	out := make([]validate.FieldError, 0, len(e.Fields)+1)
	if e.File != nil {
		out = append(out, validate.FieldError{Field: "file", Reason: e.File.Error()})
	}
	return append(out, e.Fields...)
}

// PartialFailure means the file is stored but its metadata record is not.
type PartialFailure struct {
	FilePath     string
	MetadataPath string
	Err          error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("file stored at %s but metadata write to %s failed: %v", e.FilePath, e.MetadataPath, e.Err)
}

func (e *PartialFailure) Unwrap() error { return e.Err }
