package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/service"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveResult stores a run, replacing any earlier run with the same session id.
func (s *SQLiteStorage) SaveResult(ctx context.Context, result *analysis.Result) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateResult(result); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.deleteResultTx(ctx, tx, result.SessionID); err != nil {
		return err
	}
	if err = saveRunTx(ctx, tx, result); err != nil {
		return err
	}
	if err = saveStagesTx(ctx, tx, result); err != nil {
		return err
	}
	if err = saveCategorizedTx(ctx, tx, result); err != nil {
		return err
	}
	if err = savePatternsTx(ctx, tx, result); err != nil {
		return err
	}
	if err = saveAnomaliesTx(ctx, tx, result); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}

	slog.Debug("Saved analysis result",
		"session_id", result.SessionID,
		"phase", result.Phase,
		"stages", len(result.Stages),
		"transactions", len(result.Categorized))
	return nil
}

func saveRunTx(ctx context.Context, tx queryable, result *analysis.Result) error {
	clusters, err := json.Marshal(result.Clusters)
	if err != nil {
		return fmt.Errorf("failed to marshal clusters: %w", err)
	}

	var errorStr sql.NullString
	if result.Error != "" {
		errorStr = sql.NullString{String: result.Error, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			session_id, phase, started_at, completed_at, narrative, error,
			quality_score, completeness, categorization_rate, transaction_count, clusters
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.SessionID,
		string(result.Phase),
		result.StartedAt.UTC(),
		result.CompletedAt.UTC(),
		result.Narrative,
		errorStr,
		result.Quality.Score,
		result.Quality.Completeness,
		result.Quality.CategorizationRate,
		result.Quality.Total,
		string(clusters),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func saveStagesTx(ctx context.Context, tx queryable, result *analysis.Result) error {
	for i, stage := range result.Stages {
		insights, err := json.Marshal(stage.Insights)
		if err != nil {
			return fmt.Errorf("failed to marshal %s insights: %w", stage.Name, err)
		}

		var metadata sql.NullString
		if len(stage.Metadata) > 0 {
			data, marshalErr := json.Marshal(stage.Metadata)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal %s metadata: %w", stage.Name, marshalErr)
			}
			metadata = sql.NullString{String: string(data), Valid: true}
		}

		var errorStr sql.NullString
		if stage.Error != "" {
			errorStr = sql.NullString{String: stage.Error, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stage_results (session_id, position, name, status, error, duration_ns, metadata, insights)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			result.SessionID, i, stage.Name, string(stage.Status), errorStr,
			stage.Duration.Nanoseconds(), metadata, string(insights))
		if err != nil {
			return fmt.Errorf("failed to insert stage %s: %w", stage.Name, err)
		}
	}
	return nil
}

func saveCategorizedTx(ctx context.Context, tx *sql.Tx, result *analysis.Result) error {
	if len(result.Categorized) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO categorized_transactions (
			session_id, position, id, date, description, amount,
			category, merchant_key, confidence, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, txn := range result.Categorized {
		if _, err := stmt.ExecContext(ctx,
			result.SessionID, i, txn.ID, txn.Date.UTC(), txn.Description, txn.Amount,
			string(txn.Category), txn.MerchantKey, txn.Confidence, string(txn.Source),
		); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

func savePatternsTx(ctx context.Context, tx queryable, result *analysis.Result) error {
	for i, p := range result.Patterns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recurring_patterns (
				session_id, position, merchant, frequency, description,
				confidence, mean_amount, transaction_count, is_recurring
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.SessionID, i, p.Merchant, string(p.Frequency), p.Description,
			p.Confidence, p.MeanAmount, p.TransactionCount, p.IsRecurring)
		if err != nil {
			return fmt.Errorf("failed to insert pattern for %s: %w", p.Merchant, err)
		}
	}
	return nil
}

func saveAnomaliesTx(ctx context.Context, tx queryable, result *analysis.Result) error {
	for i, a := range result.Anomalies {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anomaly_flags (
				session_id, position, transaction_id, merchant, reason, amount, z_score, confidence
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			result.SessionID, i, a.TransactionID, a.Merchant, a.Reason, a.Amount, a.ZScore, a.Confidence)
		if err != nil {
			return fmt.Errorf("failed to insert anomaly for %s: %w", a.TransactionID, err)
		}
	}
	return nil
}

// GetResult loads a stored run. Unknown sessions return common.ErrNotFound.
func (s *SQLiteStorage) GetResult(ctx context.Context, sessionID string) (*analysis.Result, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	result, err := getRun(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if result.Stages, err = getStages(ctx, s.db, sessionID); err != nil {
		return nil, err
	}
	if result.Categorized, err = getCategorized(ctx, s.db, sessionID); err != nil {
		return nil, err
	}
	if result.Patterns, err = getPatterns(ctx, s.db, sessionID); err != nil {
		return nil, err
	}
	if result.Anomalies, err = getAnomalies(ctx, s.db, sessionID); err != nil {
		return nil, err
	}
	if result.Error != "" {
		result.Err = errors.New(result.Error)
	}
	return result, nil
}

func getRun(ctx context.Context, q queryable, sessionID string) (*analysis.Result, error) {
	var (
		phase              string
		errorStr, clusters sql.NullString
		result             = &analysis.Result{SessionID: sessionID}
	)

	err := q.QueryRowContext(ctx, `
		SELECT phase, started_at, completed_at, narrative, error,
			quality_score, completeness, categorization_rate, transaction_count, clusters
		FROM runs
		WHERE session_id = ?`, sessionID).Scan(
		&phase,
		&result.StartedAt,
		&result.CompletedAt,
		&result.Narrative,
		&errorStr,
		&result.Quality.Score,
		&result.Quality.Completeness,
		&result.Quality.CategorizationRate,
		&result.Quality.Total,
		&clusters,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	result.Phase = analysis.Phase(phase)
	result.Error = errorStr.String
	if clusters.Valid && clusters.String != "" {
		if err := json.Unmarshal([]byte(clusters.String), &result.Clusters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal clusters: %w", err)
		}
	}
	return result, nil
}

func getStages(ctx context.Context, q queryable, sessionID string) ([]analysis.StageResult, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, status, error, duration_ns, metadata, insights
		FROM stage_results
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []analysis.StageResult
	for rows.Next() {
		var (
			stage              analysis.StageResult
			status, insights   string
			errorStr, metadata sql.NullString
			durationNS         int64
		)
		if err := rows.Scan(&stage.Name, &status, &errorStr, &durationNS, &metadata, &insights); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stage.Status = analysis.StageStatus(status)
		stage.Error = errorStr.String
		stage.Duration = time.Duration(durationNS)
		if err := json.Unmarshal([]byte(insights), &stage.Insights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s insights: %w", stage.Name, err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &stage.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s metadata: %w", stage.Name, err)
			}
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

func getCategorized(ctx context.Context, q queryable, sessionID string) ([]model.CategorizedTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, date, description, amount, category, merchant_key, confidence, source
		FROM categorized_transactions
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.CategorizedTransaction
	for rows.Next() {
		var (
			txn              model.CategorizedTransaction
			category, source string
		)
		if err := rows.Scan(&txn.ID, &txn.Date, &txn.Description, &txn.Amount,
			&category, &txn.MerchantKey, &txn.Confidence, &source); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Category = model.Category(category)
		txn.Source = model.AssignmentSource(source)
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func getPatterns(ctx context.Context, q queryable, sessionID string) ([]model.RecurringPattern, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT merchant, frequency, description, confidence, mean_amount, transaction_count, is_recurring
		FROM recurring_patterns
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.RecurringPattern
	for rows.Next() {
		var (
			p         model.RecurringPattern
			frequency string
		)
		if err := rows.Scan(&p.Merchant, &frequency, &p.Description, &p.Confidence,
			&p.MeanAmount, &p.TransactionCount, &p.IsRecurring); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		p.Frequency = model.Frequency(frequency)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func getAnomalies(ctx context.Context, q queryable, sessionID string) ([]model.AnomalyFlag, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT transaction_id, merchant, reason, amount, z_score, confidence
		FROM anomaly_flags
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var flags []model.AnomalyFlag
	for rows.Next() {
		var a model.AnomalyFlag
		if err := rows.Scan(&a.TransactionID, &a.Merchant, &a.Reason, &a.Amount, &a.ZScore, &a.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		flags = append(flags, a)
	}
	return flags, rows.Err()
}

// ListResults returns stored runs, newest first.
func (s *SQLiteStorage) ListResults(ctx context.Context, filter service.ResultFilter) ([]service.ResultSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT r.session_id, r.phase, r.started_at, r.completed_at, r.quality_score, r.transaction_count,
			(SELECT COUNT(*) FROM stage_results s WHERE s.session_id = r.session_id AND s.status = ?) AS failed
		FROM runs r`
	args := []any{string(analysis.StageErrored)}
	if filter.Since != nil {
		query += ` WHERE r.started_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY r.started_at DESC, r.session_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []service.ResultSummary
	for rows.Next() {
		var (
			summary service.ResultSummary
			phase   string
			failed  int
		)
		if err := rows.Scan(&summary.SessionID, &phase, &summary.StartedAt, &summary.CompletedAt,
			&summary.QualityScore, &summary.Transactions, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		summary.Phase = analysis.Phase(phase)
		summary.Degraded = failed > 0
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}

	for i := range summaries {
		count, err := s.countInsights(ctx, summaries[i].SessionID)
		if err != nil {
			return nil, err
		}
		summaries[i].Insights = count
	}
	return summaries, nil
}

// countInsights decodes each stage's insight list; the count is not stored separately.
func (s *SQLiteStorage) countInsights(ctx context.Context, sessionID string) (int, error) {
	stages, err := getStages(ctx, s.db, sessionID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, stage := range stages {
		total += len(stage.Insights)
	}
	return total, nil
}

// DeleteResult removes a stored run. Unknown sessions return common.ErrNotFound.
func (s *SQLiteStorage) DeleteResult(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}
	return nil
}

// deleteResultTx removes any stored copy of a session. Child rows go with it
// through ON DELETE CASCADE.
func (s *SQLiteStorage) deleteResultTx(ctx context.Context, tx queryable, sessionID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to replace result: %w", err)
	}
	return nil
}
