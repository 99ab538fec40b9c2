// Package service defines the interfaces of the collaborators around the pipeline.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/model"
)

// ResultFilter narrows ListResults.
type ResultFilter struct {
	Since *time.Time
	Limit int
}

// ResultSummary is one stored run as shown in listings.
type ResultSummary struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	SessionID    string
	Phase        analysis.Phase
	QualityScore float64
	Transactions int
	Insights     int
	Degraded     bool
}

// ResultStore persists run results. The pipeline never calls it; callers
// decide whether to keep a result.
type ResultStore interface {
	SaveResult(ctx context.Context, result *analysis.Result) error
	GetResult(ctx context.Context, sessionID string) (*analysis.Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]ResultSummary, error)
	DeleteResult(ctx context.Context, sessionID string) error
	Migrate(ctx context.Context) error
	Close() error
}

// ReportWriter exports a run result somewhere outside the process.
type ReportWriter interface {
	WriteResult(ctx context.Context, result *analysis.Result) error
}

// TransactionSource produces the input batch for one run.
type TransactionSource interface {
	Load(ctx context.Context) ([]model.Transaction, error)
}
