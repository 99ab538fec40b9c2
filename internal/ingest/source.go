// Package ingest turns input files into transactions for the pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/service"
)

// Format names an input file format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatOFX  Format = "ofx"
)

var _ service.TransactionSource = (*FileSource)(nil)

// FileSource loads transactions from a file on disk.
type FileSource struct {
	logger *slog.Logger
	Path   string
	Format Format
}

// NewFileSource picks the format from the file extension.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{
		Path:   path,
		Format: format,
		logger: common.LoggerOrDefault(logger),
	}, nil
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".ofx", ".qfx":
		return FormatOFX, nil
	default:
		return "", common.NewUserError(
			fmt.Sprintf("unsupported input file %q; use a .json, .ofx or .qfx file", filepath.Base(path)),
			common.ErrInvalidInput,
		)
	}
}

// Load implements service.TransactionSource.
func (s *FileSource) Load(ctx context.Context) ([]model.Transaction, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	var txns []model.Transaction
	switch s.Format {
	case FormatJSON:
		txns, err = ParseJSON(ctx, f)
	case FormatOFX:
		txns, err = NewOFXParser(s.logger).Parse(ctx, f)
	default:
		err = fmt.Errorf("%w: unknown format %q", common.ErrInvalidInput, s.Format)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Loaded transactions", "path", s.Path, "format", s.Format, "count", len(txns))
	return txns, nil
}
