package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

// stageFunc is a Stage backed by a function.
type stageFunc struct {
	run  func(ctx context.Context, batch *Batch) (StageOutput, error)
	name string
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Run(ctx context.Context, batch *Batch) (StageOutput, error) {
	return s.run(ctx, batch)
}

func recordStage(name, title string) stageFunc {
	return stageFunc{name: name, run: func(context.Context, *Batch) (StageOutput, error) {
		return StageOutput{Insights: []model.InsightRecord{{Title: title, Sentiment: model.SentimentNeutral}}}, nil
	}}
}

func failingStage(name string, err error) stageFunc {
	return stageFunc{name: name, run: func(context.Context, *Batch) (StageOutput, error) {
		return StageOutput{}, err
	}}
}

type narratorFunc func(ctx context.Context, batch *Batch, insights []model.InsightRecord) (string, error)

func (f narratorFunc) Narrate(ctx context.Context, batch *Batch, insights []model.InsightRecord) (string, error) {
	return f(ctx, batch, insights)
}

func staticNarrator(text string) Narrator {
	return narratorFunc(func(context.Context, *Batch, []model.InsightRecord) (string, error) {
		return text, nil
	})
}

type recordingRunObserver struct {
	stages map[string]string
	runs   []string
	mu     sync.Mutex
}

func newRecordingRunObserver() *recordingRunObserver {
	return &recordingRunObserver{stages: make(map[string]string)}
}

func (r *recordingRunObserver) ObserveRun(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, outcome)
}

func (r *recordingRunObserver) ObserveStage(stage, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage] = outcome
}

func sampleTransactions() []model.Transaction {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return []model.Transaction{
		{ID: "t1", Date: day, Description: "NETFLIX.COM", Amount: -15.99},
		{ID: "t2", Date: day.AddDate(0, 0, 1), Description: "PAYROLL ACME", Amount: 2500},
	}
}

func newTestOrchestrator(t *testing.T, category Stage, analyses []Stage, narrator Narrator, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(category, analyses, narrator, opts...)
	require.NoError(t, err)
	return o
}

func stageNames(result *Result) []string {
	names := make([]string, 0, len(result.Stages))
	for _, s := range result.Stages {
		names = append(names, s.Name)
	}
	return names
}

func TestNewOrchestrator_Validation(t *testing.T) {
	tests := []struct {
		category Stage
		narrator Narrator
		name     string
		analyses []Stage
	}{
		{name: "nil category", narrator: staticNarrator("x")},
		{name: "nil narrator", category: recordStage(StageNameCategory, "c")},
		{
			name:     "duplicate stage",
			category: recordStage(StageNameCategory, "c"),
			analyses: []Stage{recordStage(StageNameSpending, "a"), recordStage(StageNameSpending, "b")},
			narrator: staticNarrator("x"),
		},
		{
			name:     "stage named like the narrative",
			category: recordStage(StageNameCategory, "c"),
			analyses: []Stage{recordStage(StageNameNarrative, "a")},
			narrator: staticNarrator("x"),
		},
		{
			name:     "nil analysis stage",
			category: recordStage(StageNameCategory, "c"),
			analyses: []Stage{nil},
			narrator: staticNarrator("x"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(tt.category, tt.analyses, tt.narrator)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestOrchestrator_PreservesSubmissionOrder(t *testing.T) {
	// risk finishes first, spending last.
	riskDone := make(chan struct{})
	savingsDone := make(chan struct{})

	spending := stageFunc{name: StageNameSpending, run: func(context.Context, *Batch) (StageOutput, error) {
		<-savingsDone
		return StageOutput{Insights: []model.InsightRecord{{Title: "spending"}}}, nil
	}}
	savings := stageFunc{name: StageNameSavings, run: func(context.Context, *Batch) (StageOutput, error) {
		<-riskDone
		defer close(savingsDone)
		return StageOutput{Insights: []model.InsightRecord{{Title: "savings"}}}, nil
	}}
	risk := stageFunc{name: StageNameRisk, run: func(context.Context, *Batch) (StageOutput, error) {
		defer close(riskDone)
		return StageOutput{Insights: []model.InsightRecord{{Title: "risk"}}}, nil
	}}

	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{spending, savings, risk}, staticNarrator("done"))

	result := o.Run(context.Background(), "s1", sampleTransactions())

	assert.Equal(t, []string{StageNameCategory, StageNameSpending, StageNameSavings, StageNameRisk}, stageNames(result))
	titles := make([]string, 0, 4)
	for _, r := range result.Insights() {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"category", "spending", "savings", "risk"}, titles)
	assert.Equal(t, PhaseComplete, result.Phase)
	assert.Equal(t, "done", result.Narrative)
}

func TestOrchestrator_SavingsFailureIsIsolated(t *testing.T) {
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{
			recordStage(StageNameSpending, "spending"),
			failingStage(StageNameSavings, errors.New("boom")),
			recordStage(StageNameRisk, "risk"),
		},
		staticNarrator("done"))

	result := o.Run(context.Background(), "s1", sampleTransactions())

	require.NoError(t, result.Err)
	assert.Equal(t, PhaseComplete, result.Phase)
	assert.True(t, result.Degraded())

	spending, ok := result.Stage(StageNameSpending)
	require.True(t, ok)
	assert.Equal(t, StageComplete, spending.Status)
	assert.Equal(t, "spending", spending.Insights[0].Title)

	risk, ok := result.Stage(StageNameRisk)
	require.True(t, ok)
	assert.Equal(t, StageComplete, risk.Status)

	savings, ok := result.Stage(StageNameSavings)
	require.True(t, ok)
	assert.Equal(t, StageErrored, savings.Status)
	assert.Contains(t, savings.Error, "boom")
	require.Len(t, savings.Insights, 1)
	assert.True(t, savings.Insights[0].Degraded)
	assert.Equal(t, "Savings analysis failed", savings.Insights[0].Title)
}

func TestOrchestrator_StagePanicBecomesDegradedRecord(t *testing.T) {
	panicking := stageFunc{name: StageNameRisk, run: func(context.Context, *Batch) (StageOutput, error) {
		panic("nil map")
	}}
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{recordStage(StageNameSpending, "spending"), panicking},
		staticNarrator("done"))

	result := o.Run(context.Background(), "s1", sampleTransactions())

	assert.Equal(t, PhaseComplete, result.Phase)
	risk, ok := result.Stage(StageNameRisk)
	require.True(t, ok)
	assert.Equal(t, StageErrored, risk.Status)
	assert.Contains(t, risk.Error, "nil map")
	assert.True(t, risk.Insights[0].Degraded)
}

func TestOrchestrator_CategoryFailureContinues(t *testing.T) {
	var seen *Batch
	category := stageFunc{name: StageNameCategory, run: func(_ context.Context, batch *Batch) (StageOutput, error) {
		batch.Categorized = []model.CategorizedTransaction{{Category: model.CategoryOther}}
		return StageOutput{}, errors.New("bad input")
	}}
	spending := stageFunc{name: StageNameSpending, run: func(_ context.Context, batch *Batch) (StageOutput, error) {
		seen = batch
		return StageOutput{Insights: []model.InsightRecord{{Title: "spending"}}}, nil
	}}

	o := newTestOrchestrator(t, category, []Stage{spending}, staticNarrator("done"))
	result := o.Run(context.Background(), "s1", sampleTransactions())

	assert.Equal(t, PhaseComplete, result.Phase)
	require.NoError(t, result.Err)

	cat, ok := result.Stage(StageNameCategory)
	require.True(t, ok)
	assert.Equal(t, StageErrored, cat.Status)
	assert.Equal(t, "Category analysis failed", cat.Insights[0].Title)

	require.NotNil(t, seen)
	assert.Empty(t, seen.Categorized, "partial category output must be discarded")
	assert.Len(t, seen.Transactions, 2)
	assert.Empty(t, result.Categorized)
}

func TestOrchestrator_AllStagesFailingReachesErrorPhase(t *testing.T) {
	observer := newRecordingRunObserver()
	o := newTestOrchestrator(t,
		failingStage(StageNameCategory, errors.New("bad input")),
		[]Stage{failingStage(StageNameSpending, errors.New("x")), failingStage(StageNameRisk, errors.New("y"))},
		narratorFunc(func(context.Context, *Batch, []model.InsightRecord) (string, error) {
			return "", errors.New("offline")
		}),
		WithObserver(observer))

	result := o.Run(context.Background(), "s1", sampleTransactions())

	assert.Equal(t, PhaseError, result.Phase)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, common.ErrStageFailed)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, FallbackNarrative, result.Narrative)
	assert.Len(t, result.Insights(), 3)
	assert.Equal(t, []string{OutcomeError}, observer.runs)
	assert.Equal(t, PhaseError, o.Phase())
}

func TestOrchestrator_NarratorFailures(t *testing.T) {
	tests := []struct {
		narrator Narrator
		name     string
	}{
		{
			name: "error",
			narrator: narratorFunc(func(context.Context, *Batch, []model.InsightRecord) (string, error) {
				return "", errors.New("offline")
			}),
		},
		{
			name: "panic",
			narrator: narratorFunc(func(context.Context, *Batch, []model.InsightRecord) (string, error) {
				panic("template exploded")
			}),
		},
		{name: "empty text", narrator: staticNarrator("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
				[]Stage{recordStage(StageNameSpending, "spending")}, tt.narrator)

			result := o.Run(context.Background(), "s1", sampleTransactions())

			assert.Equal(t, PhaseComplete, result.Phase)
			assert.Equal(t, FallbackNarrative, result.Narrative)
			assert.False(t, result.Degraded())

			status := o.Status()
			assert.Equal(t, StageState{Name: StageNameNarrative, Status: StageErrored}, status[len(status)-1])
		})
	}
}

func TestOrchestrator_NarratorSeesAggregatedInsights(t *testing.T) {
	var got []model.InsightRecord
	narrator := narratorFunc(func(_ context.Context, _ *Batch, insights []model.InsightRecord) (string, error) {
		got = insights
		return "ok", nil
	})
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{recordStage(StageNameSpending, "spending"), failingStage(StageNameRisk, errors.New("x"))}, narrator)

	o.Run(context.Background(), "s1", sampleTransactions())

	require.Len(t, got, 3)
	assert.Equal(t, StageNameCategory, got[0].Stage, "empty stage names are filled in")
	assert.True(t, got[2].Degraded)
}

func TestOrchestrator_GeneratesSessionID(t *testing.T) {
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"), nil, staticNarrator("ok"))

	result := o.Run(context.Background(), "", nil)

	_, err := uuid.Parse(result.SessionID)
	assert.NoError(t, err)
}

func TestOrchestrator_Status(t *testing.T) {
	inStage := make(chan struct{})
	release := make(chan struct{})
	blocking := stageFunc{name: StageNameSavings, run: func(context.Context, *Batch) (StageOutput, error) {
		close(inStage)
		<-release
		return StageOutput{}, nil
	}}

	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{blocking}, staticNarrator("ok"))

	for _, s := range o.Status() {
		assert.Equal(t, StageIdle, s.Status)
	}

	done := make(chan *Result)
	go func() { done <- o.Run(context.Background(), "s1", nil) }()

	<-inStage
	assert.Equal(t, []StageState{
		{Name: StageNameCategory, Status: StageComplete},
		{Name: StageNameSavings, Status: StageProcessing},
		{Name: StageNameNarrative, Status: StageIdle},
	}, o.Status())
	assert.Equal(t, PhaseAnalysis, o.Phase())

	close(release)
	result := <-done

	assert.Equal(t, PhaseComplete, result.Phase)
	for _, s := range o.Status() {
		assert.Equal(t, StageComplete, s.Status, s.Name)
	}
}

func TestOrchestrator_StageTimeout(t *testing.T) {
	slow := stageFunc{name: StageNameSpending, run: func(ctx context.Context, _ *Batch) (StageOutput, error) {
		<-ctx.Done()
		return StageOutput{}, ctx.Err()
	}}
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{slow, recordStage(StageNameRisk, "risk")}, staticNarrator("ok"),
		WithStageTimeout(20*time.Millisecond))

	result := o.Run(context.Background(), "s1", nil)

	spending, ok := result.Stage(StageNameSpending)
	require.True(t, ok)
	assert.Equal(t, StageErrored, spending.Status)
	assert.Contains(t, spending.Error, context.DeadlineExceeded.Error())

	risk, _ := result.Stage(StageNameRisk)
	assert.Equal(t, StageComplete, risk.Status)
}

func TestOrchestrator_ObservesStagesAndRun(t *testing.T) {
	observer := newRecordingRunObserver()
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{recordStage(StageNameSpending, "spending"), failingStage(StageNameSavings, errors.New("x"))},
		staticNarrator("ok"), WithObserver(observer))

	o.Run(context.Background(), "s1", nil)

	assert.Equal(t, map[string]string{
		StageNameCategory:  OutcomeComplete,
		StageNameSpending:  OutcomeComplete,
		StageNameSavings:   OutcomeError,
		StageNameNarrative: OutcomeComplete,
	}, observer.stages)
	assert.Equal(t, []string{OutcomeDegraded}, observer.runs)
}

func TestOrchestrator_UsesClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return start.Add(time.Duration(calls) * time.Second)
	}

	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"), nil, staticNarrator("ok"), WithClock(clock))
	result := o.Run(context.Background(), "s1", nil)

	assert.True(t, result.CompletedAt.After(result.StartedAt))
	assert.Equal(t, start.Add(time.Second), result.StartedAt)
}

func TestOrchestrator_StagesOverlapOnOneProcessor(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	// Every stage waits until all of them have started.
	var started sync.WaitGroup
	started.Add(3)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	barrier := func(name string) stageFunc {
		return stageFunc{name: name, run: func(context.Context, *Batch) (StageOutput, error) {
			started.Done()
			select {
			case <-allStarted:
				return StageOutput{Insights: []model.InsightRecord{{Title: name}}}, nil
			case <-time.After(2 * time.Second):
				return StageOutput{}, errors.New("stages did not overlap")
			}
		}}
	}

	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{barrier(StageNameSpending), barrier(StageNameSavings), barrier(StageNameRisk)},
		staticNarrator("ok"))

	result := o.Run(context.Background(), "s1", nil)

	assert.False(t, result.Degraded())
	for _, name := range []string{StageNameSpending, StageNameSavings, StageNameRisk} {
		stage, ok := result.Stage(name)
		require.True(t, ok)
		assert.Equal(t, StageComplete, stage.Status, name)
	}
}

func TestOrchestrator_OutputReturnedAfterDeadlineIsKept(t *testing.T) {
	lateCategory := stageFunc{name: StageNameCategory, run: func(ctx context.Context, batch *Batch) (StageOutput, error) {
		<-ctx.Done()
		batch.Categorized = []model.CategorizedTransaction{{
			Transaction: batch.Transactions[0],
			Category:    model.CategoryOther,
			Confidence:  0.6,
		}}
		return StageOutput{Insights: []model.InsightRecord{{Title: "category"}}}, nil
	}}

	o := newTestOrchestrator(t, lateCategory, []Stage{recordStage(StageNameRisk, "risk")},
		staticNarrator("ok"), WithStageTimeout(10*time.Millisecond))

	result := o.Run(context.Background(), "s1", sampleTransactions())

	category, _ := result.Stage(StageNameCategory)
	assert.Equal(t, StageComplete, category.Status)
	assert.Len(t, result.Categorized, 1)
	assert.Equal(t, PhaseComplete, result.Phase)
	assert.False(t, result.Degraded())
}

func TestOrchestrator_ConcurrentRunsAreIndependent(t *testing.T) {
	sessionStage := stageFunc{name: StageNameSpending, run: func(_ context.Context, batch *Batch) (StageOutput, error) {
		time.Sleep(5 * time.Millisecond)
		return StageOutput{Insights: []model.InsightRecord{{Title: batch.SessionID}}}, nil
	}}
	o := newTestOrchestrator(t, recordStage(StageNameCategory, "category"),
		[]Stage{sessionStage}, staticNarrator("ok"))

	const runs = 8
	results := make([]*Result, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Run(context.Background(), fmt.Sprintf("s%d", i), nil)
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		assert.Equal(t, PhaseComplete, result.Phase)
		spending, ok := result.Stage(StageNameSpending)
		require.True(t, ok)
		require.Len(t, spending.Insights, 1)
		assert.Equal(t, fmt.Sprintf("s%d", i), spending.Insights[0].Title)
	}
	for _, s := range o.Status() {
		assert.Equal(t, StageComplete, s.Status, s.Name)
	}
	assert.Equal(t, PhaseComplete, o.Phase())
}
