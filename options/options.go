// Package options holds the enumerated choices offered by the intake form.
package options

import (
	"github.com/samber/lo"
)

// Option is a single dropdown entry.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

const (
	WorkflowCSV  = "csv"
	WorkflowJSON = "json"
	WorkflowPDF  = "pdf"
	WorkflowXLSX = "xlsx"
	WorkflowTXT  = "txt"
)

const (
	PhaseRawData   = "raw-data"
	PhaseProcessed = "processed"
	PhaseAnalysis  = "analysis"
	PhaseResults   = "results"
)

const (
	PrivacyPublic       = "public"
	PrivacyInternal     = "internal"
	PrivacyConfidential = "confidential"
)

const (
	RequirementCleaningNeeded      = "cleaning-needed"
	RequirementValidationRequired  = "validation-required"
	RequirementTransformationReady = "transformation-ready"
)

// Table is the immutable set of option lists. Build it once with Default and
// share it; accessors return copies.
type Table struct {
	workflowTypes          []Option
	researchPhases         []Option
	privacyLevels          []Option
	processingRequirements []Option
}

// Default returns the option table used by the service.
func Default() Table {
	return Table{
		workflowTypes: []Option{
			{Value: WorkflowCSV, Label: "CSV"},
			{Value: WorkflowJSON, Label: "JSON"},
			{Value: WorkflowPDF, Label: "PDF"},
			{Value: WorkflowXLSX, Label: "XLSX"},
			{Value: WorkflowTXT, Label: "TXT"},
		},
		researchPhases: []Option{
			{Value: PhaseRawData, Label: "Raw-Data"},
			{Value: PhaseProcessed, Label: "Processed"},
			{Value: PhaseAnalysis, Label: "Analysis"},
			{Value: PhaseResults, Label: "Results"},
		},
		privacyLevels: []Option{
			{Value: PrivacyPublic, Label: "Public"},
			{Value: PrivacyInternal, Label: "Internal"},
			{Value: PrivacyConfidential, Label: "Confidential"},
		},
		processingRequirements: []Option{
			{Value: RequirementCleaningNeeded, Label: "Cleaning-Needed"},
			{Value: RequirementValidationRequired, Label: "Validation-Required"},
			{Value: RequirementTransformationReady, Label: "Transformation-Ready"},
		},
	}
}

func (t Table) WorkflowTypes() []Option          { return clone(t.workflowTypes) }
func (t Table) ResearchPhases() []Option         { return clone(t.researchPhases) }
func (t Table) PrivacyLevels() []Option          { return clone(t.privacyLevels) }
func (t Table) ProcessingRequirements() []Option { return clone(t.processingRequirements) }

func (t Table) IsWorkflowType(v string) bool          { return has(t.workflowTypes, v) }
func (t Table) IsResearchPhase(v string) bool         { return has(t.researchPhases, v) }
func (t Table) IsPrivacyLevel(v string) bool          { return has(t.privacyLevels, v) }
func (t Table) IsProcessingRequirement(v string) bool { return has(t.processingRequirements, v) }

// Listing is the payload served by GET /upload/options.
type Listing struct {
	WorkflowTypes          []Option `json:"workflow_types"`
	ResearchPhases         []Option `json:"research_phases"`
	PrivacyLevels          []Option `json:"privacy_levels"`
	ProcessingRequirements []Option `json:"processing_requirements"`
}

func (t Table) Listing() Listing {
	return Listing{
		WorkflowTypes:          t.WorkflowTypes(),
		ResearchPhases:         t.ResearchPhases(),
		PrivacyLevels:          t.PrivacyLevels(),
		ProcessingRequirements: t.ProcessingRequirements(),
	}
}

// Values returns the raw values of opts in order.
func Values(opts []Option) []string {
	return lo.Map(opts, func(o Option, _ int) string { return o.Value })
}

func has(opts []Option, v string) bool {
	return lo.ContainsBy(opts, func(o Option) bool { return o.Value == v })
}

func clone(opts []Option) []Option {
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}
