// Package models defines the request-side data shared by the intake packages.
package models

import (
	"strings"

	"github.com/samber/lo"
)

// Form is the research and technical metadata submitted with a file.
// Empty strings mean "not supplied" for the optional fields.
type Form struct {
	ProjectName      string
	Hypothesis       string
	DataSource       string
	CollectionMethod string
	WorkflowType     string

	ExperimentID           string
	DateRangeStart         string
	DateRangeEnd           string
	ResearchPhase          string
	PrivacyLevel           string
	ProcessingRequirements []string
}

// Normalize trims every field and drops blank or repeated processing
// requirements while keeping their first-seen order.
func (f Form) Normalize() Form {
	out := Form{
		ProjectName:      strings.TrimSpace(f.ProjectName),
		Hypothesis:       strings.TrimSpace(f.Hypothesis),
		DataSource:       strings.TrimSpace(f.DataSource),
		CollectionMethod: strings.TrimSpace(f.CollectionMethod),
		WorkflowType:     strings.TrimSpace(f.WorkflowType),
		ExperimentID:     strings.TrimSpace(f.ExperimentID),
		DateRangeStart:   strings.TrimSpace(f.DateRangeStart),
		DateRangeEnd:     strings.TrimSpace(f.DateRangeEnd),
		ResearchPhase:    strings.TrimSpace(f.ResearchPhase),
		PrivacyLevel:     strings.TrimSpace(f.PrivacyLevel),
	}

	reqs := lo.Map(f.ProcessingRequirements, func(r string, _ int) string { return strings.TrimSpace(r) })
	reqs = lo.Filter(reqs, func(r string, _ int) bool { return r != "" })
	out.ProcessingRequirements = lo.Uniq(reqs)
	return out
}

// SplitRequirements flattens repeated and comma-separated form values.
func SplitRequirements(values []string) []string {
	return lo.FlatMap(values, func(v string, _ int) []string {
		return strings.Split(v, ",")
	})
}
