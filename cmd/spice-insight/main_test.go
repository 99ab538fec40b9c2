package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/sheets"
)

// executeCommand runs the root command with args against a fresh viper and a
// private results database.
func executeCommand(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T) string {
	t.Helper()

	var records []map[string]any
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		records = append(records, map[string]any{
			"id":          fmt.Sprintf("netflix-%d", i),
			"date":        start.AddDate(0, 0, 30*i).Format(time.DateOnly),
			"description": "NETFLIX.COM",
			"amount":      "-15.99",
		})
	}
	for i, amount := range []float64{-20, -22, -19, -21, -500} {
		records = append(records, map[string]any{
			"id":          fmt.Sprintf("grocery-%d", i),
			"date":        start.AddDate(0, 0, 7*i+2).Format(time.DateOnly),
			"description": "WHOLE FOODS MARKET #123",
			"amount":      amount,
		})
	}
	records = append(records, map[string]any{
		"id": "pay-1", "date": "2024-01-15", "description": "PAYROLL ACME CORP", "amount": 3000,
	})

	data, err := json.Marshal(records)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, filepath.Join(t.TempDir(), "db.sqlite"), "version")
	require.NoError(t, err)
	assert.Equal(t, "spice-insight dev\n", out)
}

func TestCategoriesCmd(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		contains    []string
		notContains []string
	}{
		{
			name:        "names only",
			args:        []string{"categories"},
			contains:    []string{string(model.CategoryGroceries), string(model.CategoryOther)},
			notContains: []string{"whole foods"},
		},
		{
			name:     "with keywords",
			args:     []string{"categories", "--keywords"},
			contains: []string{"whole foods", "any inflow not matched as a transfer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, filepath.Join(t.TempDir(), "db.sqlite"), tt.args...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestAnalyzeCmd_JSONAndStore(t *testing.T) {
	input := writeInput(t)
	dbPath := filepath.Join(t.TempDir(), "insight.db")
	metricsPath := filepath.Join(t.TempDir(), "insight.prom")

	out, err := executeCommand(t, dbPath,
		"analyze", "--input", input, "--output", "json", "--store",
		"--session-id", "run-1", "--metrics-file", metricsPath, "--no-progress")
	require.NoError(t, err)

	var result analysis.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "run-1", result.SessionID)
	assert.Equal(t, analysis.PhaseComplete, result.Phase)
	assert.Len(t, result.Categorized, 10)
	assert.NotEmpty(t, result.Narrative)
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "grocery-4", result.Anomalies[0].TransactionID)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "spice_insight_runs_total")

	t.Run("results list", func(t *testing.T) {
		out, err := executeCommand(t, dbPath, "results", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "run-1")
		assert.Contains(t, out, "complete")
	})

	t.Run("results show yaml", func(t *testing.T) {
		out, err := executeCommand(t, dbPath, "results", "show", "run-1", "--output", "yaml")
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "run-1", decoded["session_id"])
	})

	t.Run("results delete", func(t *testing.T) {
		_, err := executeCommand(t, dbPath, "results", "delete", "run-1")
		require.NoError(t, err)

		_, err = executeCommand(t, dbPath, "results", "show", "run-1")
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	input := writeInput(t)

	tests := []struct {
		wantErr error
		name    string
		args    []string
	}{
		{
			name:    "bad output format",
			args:    []string{"analyze", "--input", input, "--output", "xml"},
			wantErr: common.ErrInvalidInput,
		},
		{
			name:    "unsupported input",
			args:    []string{"analyze", "--input", "statement.csv", "--no-progress"},
			wantErr: common.ErrInvalidInput,
		},
		{
			name:    "missing input file",
			args:    []string{"analyze", "--input", filepath.Join(t.TempDir(), "gone.json"), "--no-progress"},
			wantErr: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, filepath.Join(t.TempDir(), "db.sqlite"), tt.args...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("input flag required", func(t *testing.T) {
		_, err := executeCommand(t, filepath.Join(t.TempDir(), "db.sqlite"), "analyze")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "input")
	})
}

func TestWriteResult(t *testing.T) {
	result := &analysis.Result{
		SessionID: "s-1",
		Phase:     analysis.PhaseComplete,
		Narrative: "All good.",
		Quality:   model.DataQualityScore{Score: 0.9, Total: 1},
	}

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: outputJSON,
			check: func(t *testing.T, out string) {
				t.Helper()
				assert.True(t, json.Valid([]byte(out)))
				assert.Contains(t, out, `"session_id": "s-1"`)
			},
		},
		{
			format: outputYAML,
			check: func(t *testing.T, out string) {
				t.Helper()
				assert.Contains(t, out, "session_id: s-1")
			},
		},
		{
			format: outputSummary,
			check: func(t *testing.T, out string) {
				t.Helper()
				assert.Contains(t, out, "All good.")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeResult(&buf, tt.format, result))
			tt.check(t, buf.String())
		})
	}

	err := writeResult(&bytes.Buffer{}, "xml", result)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))
	assert.True(t, strings.Contains(userErr.UserMessage, "xml"))
}

func TestExportResult(t *testing.T) {
	writer := sheets.NewMockWriter()
	result := &analysis.Result{SessionID: "s-1"}

	require.NoError(t, exportResult(context.Background(), writer, result))
	assert.Same(t, result, writer.LastResult)

	writer.SetWriteError(errors.New("quota exceeded"))
	err := exportResult(context.Background(), writer, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to export result")
}
