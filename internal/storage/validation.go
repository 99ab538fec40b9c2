// Package storage persists analysis results in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-insight/internal/analysis"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid run result")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateResult checks the fields the schema requires.
func validateResult(result *analysis.Result) error {
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if err := validateString(result.SessionID, "session id"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	if result.Phase == "" {
		return fmt.Errorf("%w: phase is required", ErrInvalidRun)
	}
	if result.StartedAt.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidRun)
	}
	if result.CompletedAt.Before(result.StartedAt) {
		return fmt.Errorf("%w: completed before it started", ErrInvalidRun)
	}
	seen := make(map[string]bool, len(result.Stages))
	for _, stage := range result.Stages {
		if err := validateString(stage.Name, "stage name"); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRun, err)
		}
		if seen[stage.Name] {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidRun, stage.Name)
		}
		seen[stage.Name] = true
	}
	return nil
}
