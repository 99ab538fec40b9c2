package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/insight"
	"github.com/Veraticus/spice-insight/internal/model"
)

// Run outcomes reported to the RunObserver.
const (
	OutcomeComplete = "complete"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"
)

// RunObserver receives run and stage measurements. *metrics.Recorder satisfies it.
type RunObserver interface {
	ObserveRun(outcome string)
	ObserveStage(stage, outcome string, duration time.Duration)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = common.LoggerOrDefault(logger)
	}
}

// WithObserver sets the metrics observer.
func WithObserver(observer RunObserver) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithStageTimeout bounds each stage. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.stageTimeout = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator runs the category stage, then the analysis stages concurrently,
// then the narrator. Run never returns an error; failures are folded into the
// Result as degraded stages.
//
// Each Run tracks its stages separately, so concurrent runs on one
// Orchestrator do not share state. Status and Phase report the run that
// started most recently.
type Orchestrator struct {
	category     Stage
	narrator     Narrator
	observer     RunObserver
	logger       *slog.Logger
	status       atomic.Pointer[statusTracker]
	now          func() time.Time
	analyses     []Stage
	names        []string
	stageTimeout time.Duration
}

// NewOrchestrator creates an Orchestrator. Analysis stages run concurrently and
// their results are aggregated in the order given here.
func NewOrchestrator(category Stage, analyses []Stage, narrator Narrator, opts ...Option) (*Orchestrator, error) {
	if category == nil {
		return nil, fmt.Errorf("%w: category stage is required", common.ErrInvalidConfig)
	}
	if narrator == nil {
		return nil, fmt.Errorf("%w: narrator is required", common.ErrInvalidConfig)
	}

	names := []string{category.Name()}
	seen := map[string]bool{category.Name(): true, StageNameNarrative: true}
	for _, s := range analyses {
		if s == nil {
			return nil, fmt.Errorf("%w: nil analysis stage", common.ErrInvalidConfig)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("%w: duplicate stage %q", common.ErrInvalidConfig, s.Name())
		}
		seen[s.Name()] = true
		names = append(names, s.Name())
	}
	names = append(names, StageNameNarrative)

	o := &Orchestrator{
		category: category,
		analyses: analyses,
		narrator: narrator,
		logger:   slog.Default(),
		now:      time.Now,
		names:    names,
	}
	o.status.Store(newStatusTracker(names))
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Status returns the readiness of every stage in pipeline order.
func (o *Orchestrator) Status() []StageState {
	return o.status.Load().snapshot()
}

// Phase returns the phase of the current or most recent run.
func (o *Orchestrator) Phase() Phase {
	return o.status.Load().currentPhase()
}

// Run analyzes one batch. An empty sessionID is replaced by a new UUID.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, txns []model.Transaction) *Result {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := o.logger.With("session_id", sessionID)

	status := newStatusTracker(o.names)
	o.status.Store(status)
	result := &Result{
		SessionID: sessionID,
		StartedAt: o.now(),
		Phase:     PhaseDataExtraction,
	}

	batch := &Batch{
		SessionID:    sessionID,
		Transactions: txns,
	}

	logger.Info("starting analysis", "transactions", len(txns))

	categoryResult := o.runStage(ctx, status, o.category, batch, logger)
	if categoryResult.Status == StageErrored {
		// Partial writes from a failed category stage are discarded.
		*batch = Batch{SessionID: sessionID, Transactions: txns}
	}
	result.Stages = append(result.Stages, categoryResult)

	setPhase(status, result, PhaseAnalysis)
	// One goroutine per stage; the default bound is GOMAXPROCS.
	mapper := iter.Mapper[Stage, StageResult]{MaxGoroutines: max(1, len(o.analyses))}
	analysisResults := mapper.Map(o.analyses, func(s *Stage) StageResult {
		return o.runStage(ctx, status, *s, batch, logger)
	})
	result.Stages = append(result.Stages, analysisResults...)

	setPhase(status, result, PhasePersonalityTransform)
	result.Narrative = o.narrate(ctx, status, batch, result.Insights(), logger)

	result.Categorized = batch.Categorized
	result.Clusters = batch.Clusters
	result.Patterns = batch.Patterns
	result.Anomalies = batch.Anomalies
	result.Quality = batch.Quality

	outcome := OutcomeComplete
	switch {
	case categoryResult.Status == StageErrored && !anyComplete(analysisResults):
		result.Err = fmt.Errorf("%w: %s", common.ErrStageFailed, categoryResult.Error)
		result.Error = result.Err.Error()
		outcome = OutcomeError
		setPhase(status, result, PhaseError)
	case result.Degraded():
		outcome = OutcomeDegraded
		setPhase(status, result, PhaseComplete)
	default:
		setPhase(status, result, PhaseComplete)
	}
	result.CompletedAt = o.now()

	if o.observer != nil {
		o.observer.ObserveRun(outcome)
	}
	logger.Info("analysis finished",
		"phase", result.Phase,
		"outcome", outcome,
		"insights", len(result.Insights()),
		"duration", result.CompletedAt.Sub(result.StartedAt))

	return result
}

func setPhase(status *statusTracker, result *Result, phase Phase) {
	result.Phase = phase
	status.setPhase(phase)
}

// runStage executes one stage with panic capture and converts any failure into
// a degraded StageResult. A stage that outlives its deadline but still returns
// without error keeps its output.
func (o *Orchestrator) runStage(ctx context.Context, status *statusTracker, stage Stage, batch *Batch, logger *slog.Logger) StageResult {
	name := stage.Name()
	status.set(name, StageProcessing)
	start := o.now()

	stageCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	var (
		output StageOutput
		err    error
		pc     panics.Catcher
	)
	pc.Try(func() {
		output, err = stage.Run(stageCtx, batch)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}

	duration := o.now().Sub(start)
	result := StageResult{
		Name:     name,
		Duration: duration,
	}

	if err != nil {
		stageErr := &StageError{Stage: name, Err: err}
		logger.Warn("stage failed", "stage", name, "error", stageErr)
		result.Status = StageErrored
		result.Error = stageErr.Error()
		result.Insights = []model.InsightRecord{insight.Degraded(name, stageErr)}
		status.set(name, StageErrored)
		o.observe(name, OutcomeError, duration)
		return result
	}

	result.Status = StageComplete
	result.Insights = output.Insights
	result.Metadata = output.Metadata
	for i := range result.Insights {
		if result.Insights[i].Stage == "" {
			result.Insights[i].Stage = name
		}
	}
	status.set(name, StageComplete)
	o.observe(name, OutcomeComplete, duration)
	logger.Debug("stage complete", "stage", name, "insights", len(result.Insights), "duration", duration)
	return result
}

// narrate never fails: errors and panics become FallbackNarrative.
func (o *Orchestrator) narrate(ctx context.Context, status *statusTracker, batch *Batch, insights []model.InsightRecord, logger *slog.Logger) string {
	status.set(StageNameNarrative, StageProcessing)
	start := o.now()

	var (
		text string
		err  error
		pc   panics.Catcher
	)
	pc.Try(func() {
		text, err = o.narrator.Narrate(ctx, batch, insights)
	})
	if recovered := pc.Recovered(); recovered != nil {
		err = recovered.AsError()
	}
	if err == nil && text == "" {
		err = errors.New("narrator returned empty text")
	}

	duration := o.now().Sub(start)
	if err != nil {
		logger.Warn("narrative failed, using fallback", "stage", StageNameNarrative, "error", err)
		status.set(StageNameNarrative, StageErrored)
		o.observe(StageNameNarrative, OutcomeError, duration)
		return FallbackNarrative
	}

	status.set(StageNameNarrative, StageComplete)
	o.observe(StageNameNarrative, OutcomeComplete, duration)
	return text
}

func (o *Orchestrator) observe(stage, outcome string, duration time.Duration) {
	if o.observer != nil {
		o.observer.ObserveStage(stage, outcome, duration)
	}
}

func anyComplete(results []StageResult) bool {
	for _, r := range results {
		if r.Status == StageComplete {
			return true
		}
	}
	return false
}
