package analysis

import (
	"fmt"
	"time"

	"github.com/Veraticus/spice-insight/internal/model"
)

// Phase is the orchestrator's position in a run.
type Phase string

const (
	// PhaseDataExtraction categorizes and profiles the batch.
	PhaseDataExtraction Phase = "data_extraction"
	// PhaseAnalysis runs the independent analysis stages concurrently.
	PhaseAnalysis Phase = "analysis"
	// PhasePersonalityTransform turns the insights into a narrative.
	PhasePersonalityTransform Phase = "personality_transform"
	// PhaseComplete means a result, possibly degraded, is available.
	PhaseComplete Phase = "complete"
	// PhaseError means no stage produced usable output.
	PhaseError Phase = "error"
)

// StageStatus is the readiness of one named stage.
type StageStatus string

const (
	// StageIdle indicates the stage has not started.
	StageIdle StageStatus = "idle"
	// StageProcessing indicates the stage is running.
	StageProcessing StageStatus = "processing"
	// StageComplete indicates the stage produced output.
	StageComplete StageStatus = "complete"
	// StageErrored indicates the stage failed and was replaced by a degraded record.
	StageErrored StageStatus = "error"
)

// Stage names.
const (
	StageNameCategory  = "category"
	StageNameSpending  = "spending"
	StageNameSavings   = "savings"
	StageNameRisk      = "risk"
	StageNameNarrative = "narrative"
)

// FallbackNarrative is returned when the narrative cannot be generated.
const FallbackNarrative = "I had trouble putting your full analysis into words, but your transactions were processed. Check the insights below for details."

// Batch is the per-run value every stage reads. The category stage fills in
// everything after Transactions; the analysis stages only read it.
type Batch struct {
	Merchants     map[string][]model.CategorizedTransaction
	SessionID     string
	Transactions  []model.Transaction
	Categorized   []model.CategorizedTransaction
	Clusters      []model.MerchantCluster
	Patterns      []model.RecurringPattern
	Anomalies     []model.AnomalyFlag
	MerchantOrder []string
	Quality       model.DataQualityScore
}

// StageOutput is what a stage returns.
type StageOutput struct {
	Metadata map[string]any
	Insights []model.InsightRecord
}

// StageResult is one stage's entry in a Result.
type StageResult struct {
	Metadata map[string]any        `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Name     string                `json:"name" yaml:"name"`
	Status   StageStatus           `json:"status" yaml:"status"`
	Error    string                `json:"error,omitempty" yaml:"error,omitempty"`
	Insights []model.InsightRecord `json:"insights" yaml:"insights"`
	Duration time.Duration         `json:"duration" yaml:"duration"`
}

// Result is the consolidated output of one run. It is always returned, even
// when stages fail.
type Result struct {
	StartedAt   time.Time                      `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time                      `json:"completed_at" yaml:"completed_at"`
	Err         error                          `json:"-" yaml:"-"`
	SessionID   string                         `json:"session_id" yaml:"session_id"`
	Phase       Phase                          `json:"phase" yaml:"phase"`
	Narrative   string                         `json:"narrative" yaml:"narrative"`
	Error       string                         `json:"error,omitempty" yaml:"error,omitempty"`
	Stages      []StageResult                  `json:"stages" yaml:"stages"`
	Categorized []model.CategorizedTransaction `json:"categorized" yaml:"-"`
	Clusters    []model.MerchantCluster        `json:"clusters" yaml:"clusters"`
	Patterns    []model.RecurringPattern       `json:"patterns" yaml:"patterns"`
	Anomalies   []model.AnomalyFlag            `json:"anomalies" yaml:"anomalies"`
	Quality     model.DataQualityScore         `json:"quality" yaml:"quality"`
}

// Insights flattens every stage's records in stage order.
func (r *Result) Insights() []model.InsightRecord {
	var out []model.InsightRecord
	for _, s := range r.Stages {
		out = append(out, s.Insights...)
	}
	return out
}

// Stage returns the named stage result, if present.
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Degraded reports whether any stage failed.
func (r *Result) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status == StageErrored {
			return true
		}
	}
	return false
}

// StageError records a failed stage. Recovered panics arrive here too.
type StageError struct {
	Err   error
	Stage string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
