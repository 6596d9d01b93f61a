// Package validate checks uploaded files and form fields before anything is
// written to storage. All functions are pure.
package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/docker/go-units"
	"github.com/samber/lo"

	"research_intake/models"
	"research_intake/options"
)

var (
	ErrNoFileProvided     = errors.New("no file provided")
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)

const (
	DefaultMaxBytes = 100 * units.MiB
	dateLayout      = "2006-01-02"
)

var DefaultAllowedTypes = []string{"csv", "json", "pdf", "xlsx", "txt"}

var projectNameRx = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)

// Limits bounds the accepted files.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

func DefaultLimits() Limits {
	return Limits{MaxBytes: DefaultMaxBytes, AllowedTypes: DefaultAllowedTypes}
}

// Extension returns the lowercased extension of name without the leading dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// File checks a candidate file. A size equal to MaxBytes is accepted.
func File(name string, size int64, l Limits) error {
	if strings.TrimSpace(name) == "" || size <= 0 {
		return ErrNoFileProvided
	}
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return fmt.Errorf("%w: %s exceeds maximum allowed size of %s",
			ErrFileTooLarge, units.BytesSize(float64(size)), units.BytesSize(float64(l.MaxBytes)))
	}
	ext := Extension(name)
	if !lo.Contains(l.AllowedTypes, ext) {
		return fmt.Errorf("%w: '.%s' is not allowed, allowed types: %s",
			ErrFileTypeNotAllowed, ext, strings.Join(l.AllowedTypes, ", "))
	}
	return nil
}

// Rule is one entry of the declarative form schema.
type Rule struct {
	Field    string `json:"field"`
	Required bool   `json:"required"`
	MaxLen   int    `json:"max_length,omitempty"`
}

// Schema lists the free-text form fields and their bounds.
var Schema = []Rule{
	{Field: "project_name", Required: true, MaxLen: 200},
	{Field: "hypothesis", Required: true, MaxLen: 1000},
	{Field: "data_source", Required: true, MaxLen: 200},
	{Field: "collection_method", Required: true, MaxLen: 200},
	{Field: "experiment_id", MaxLen: 100},
}

// FieldError is a single failing field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Reason }

// Errors collects every failing field of a submission.
type Errors []FieldError

func (e Errors) Error() string {
	return strings.Join(lo.Map(e, func(fe FieldError, _ int) string { return fe.Error() }), "; ")
}

// Fields returns the names of the failing fields in order.
func (e Errors) Fields() []string {
	return lo.Map(e, func(fe FieldError, _ int) string { return fe.Field })
}

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	return lo.ContainsBy(e, func(fe FieldError) bool { return fe.Field == field })
}

// Form validates every field of f and reports all failures. f is expected to
// be normalized.
func Form(f models.Form, t options.Table) Errors {
	var errs Errors

	values := map[string]string{
		"project_name":      f.ProjectName,
		"hypothesis":        f.Hypothesis,
		"data_source":       f.DataSource,
		"collection_method": f.CollectionMethod,
		"experiment_id":     f.ExperimentID,
	}
	for _, rule := range Schema {
		if err := checkText(values[rule.Field], rule); err != "" {
			errs = append(errs, FieldError{Field: rule.Field, Reason: err})
		}
	}

	if f.ProjectName != "" && !errs.Has("project_name") && !projectNameRx.MatchString(f.ProjectName) {
		errs = append(errs, FieldError{
			Field:  "project_name",
			Reason: "can only contain letters, numbers, spaces, hyphens, and underscores",
		})
	}

	switch {
	case f.WorkflowType == "":
		errs = append(errs, FieldError{Field: "workflow_type", Reason: "field required"})
	case !t.IsWorkflowType(f.WorkflowType):
		errs = append(errs, oneOf("workflow_type", t.WorkflowTypes()))
	}

	if f.ResearchPhase != "" && !t.IsResearchPhase(f.ResearchPhase) {
		errs = append(errs, oneOf("research_phase", t.ResearchPhases()))
	}
	if f.PrivacyLevel != "" && !t.IsPrivacyLevel(f.PrivacyLevel) {
		errs = append(errs, oneOf("privacy_level", t.PrivacyLevels()))
	}
	for _, req := range f.ProcessingRequirements {
		if !t.IsProcessingRequirement(req) {
			fe := oneOf("processing_requirements", t.ProcessingRequirements())
			fe.Reason = fmt.Sprintf("unknown value %q, %s", req, fe.Reason)
			errs = append(errs, fe)
		}
	}

	if f.DateRangeStart != "" && !isDate(f.DateRangeStart) {
		errs = append(errs, FieldError{Field: "date_range_start", Reason: "must be a date in YYYY-MM-DD format"})
	}
	if f.DateRangeEnd != "" && !isDate(f.DateRangeEnd) {
		errs = append(errs, FieldError{Field: "date_range_end", Reason: "must be a date in YYYY-MM-DD format"})
	}

	return errs
}

func checkText(v string, rule Rule) string {
	if v == "" {
		if rule.Required {
			return "field required"
		}
		return ""
	}
	if rule.MaxLen > 0 && utf8.RuneCountInString(v) > rule.MaxLen {
		return fmt.Sprintf("must be at most %d characters", rule.MaxLen)
	}
	return ""
}

func oneOf(field string, opts []options.Option) FieldError {
	return FieldError{Field: field, Reason: "must be one of: " + strings.Join(options.Values(opts), ", ")}
}

func isDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
