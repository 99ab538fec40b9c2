package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/cli"
	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/config"
	"github.com/Veraticus/spice-insight/internal/ingest"
	"github.com/Veraticus/spice-insight/internal/metrics"
	"github.com/Veraticus/spice-insight/internal/service"
	"github.com/Veraticus/spice-insight/internal/sheets"
)

// Output formats shared by analyze and results show.
const (
	outputSummary = "summary"
	outputJSON    = "json"
	outputYAML    = "yaml"
)

type analyzeOptions struct {
	input       string
	sessionID   string
	output      string
	metricsFile string
	store       bool
	sheets      bool
	noProgress  bool
}

func analyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a batch of transactions",
		Long: `Categorize a batch of transactions and report what stands out.

The input is a JSON array of {id, date, description, amount} records or an
OFX/QFX statement. Amounts are signed: negative values are money spent.

Examples:
  # Analyze a bank export
  spice-insight analyze --input checking.qfx

  # Machine-readable output, stored for later
  spice-insight analyze --input march.json --output json --store

  # Export to Google Sheets and write Prometheus metrics
  spice-insight analyze --input march.json --sheets --metrics-file /var/lib/node_exporter/insight.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "transactions file (.json, .ofx, .qfx)")
	cmd.Flags().StringVar(&opts.sessionID, "session-id", "", "session id for this run (default: random UUID)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputSummary, "output format (summary, json, yaml)")
	cmd.Flags().BoolVar(&opts.store, "store", false, "save the result to the results database")
	cmd.Flags().BoolVar(&opts.sheets, "sheets", false, "export the result to Google Sheets")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "hide the progress bar")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts analyzeOptions) error {
	if err := validateOutput(opts.output); err != nil {
		return err
	}

	interruptHandler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx, stop := interruptHandler.HandleInterrupts(cmd.Context(), opts.store)
	defer stop()

	source, err := ingest.NewFileSource(config.ExpandPath(opts.input), slog.Default())
	if err != nil {
		return err
	}
	txns, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	pipelineCfg, err := config.Load(viper.GetViper())
	if err != nil {
		return common.NewUserError("invalid pipeline configuration", err)
	}

	recorder := metrics.NewRecorder()
	adapter, err := newAdapter(pipelineCfg, recorder)
	if err != nil {
		return err
	}
	defer func() { _ = adapter.Close() }()

	orch, err := analysis.NewPipeline(analysis.Deps{
		Adapter: adapter,
		Metrics: recorder,
		Logger:  slog.Default(),
		Config:  pipelineCfg,
	})
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	slog.Info("Starting transaction analysis",
		"input", opts.input,
		"transactions", len(txns),
		"classifier", pipelineCfg.Classifier.Provider)

	var display *cli.ProgressDisplay
	if !opts.noProgress && opts.output == outputSummary {
		display = cli.NewProgressDisplay(cmd.ErrOrStderr(), len(orch.Status()), stageProgress(orch))
		display.Start(ctx)
	}

	result := orch.Run(ctx, opts.sessionID, txns)

	if display != nil {
		display.Stop()
	}

	if err := writeResult(cmd.OutOrStdout(), opts.output, result); err != nil {
		return err
	}

	if err := persistResult(cmd.Context(), opts, result); err != nil {
		return err
	}

	if opts.metricsFile != "" {
		if err := recorder.WriteTextfile(config.ExpandPath(opts.metricsFile)); err != nil {
			return err
		}
	}

	if interruptHandler.WasInterrupted() {
		return context.Canceled
	}
	return result.Err
}

// persistResult stores and exports a finished run as requested by the flags.
// It uses the command context so an interrupted run is still saved.
func persistResult(ctx context.Context, opts analyzeOptions, result *analysis.Result) error {
	if opts.store {
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := saveResult(ctx, store, result); err != nil {
			return err
		}
	}

	if opts.sheets {
		sheetsCfg, err := sheets.LoadConfig(viper.GetViper())
		if err != nil {
			return common.NewUserError("Google Sheets export is not configured", err)
		}
		writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
		if err != nil {
			return err
		}
		if err := exportResult(ctx, writer, result); err != nil {
			return err
		}
	}

	return nil
}

func saveResult(ctx context.Context, store service.ResultStore, result *analysis.Result) error {
	if err := store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	slog.Info("Stored analysis result", "session_id", result.SessionID)
	return nil
}

func exportResult(ctx context.Context, writer service.ReportWriter, result *analysis.Result) error {
	if err := writer.WriteResult(ctx, result); err != nil {
		return fmt.Errorf("failed to export result: %w", err)
	}
	return nil
}

func validateOutput(format string) error {
	switch format {
	case outputSummary, outputJSON, outputYAML:
		return nil
	default:
		return common.NewUserError(
			fmt.Sprintf("invalid output format %q (valid options: summary, json, yaml)", format),
			common.ErrInvalidInput,
		)
	}
}

// writeResult renders a result in the requested format.
func writeResult(w io.Writer, format string, result *analysis.Result) error {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result as JSON: %w", err)
		}
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result as YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to encode result as YAML: %w", err)
		}
	case outputSummary:
		if _, err := fmt.Fprintln(w, analysis.NewCLIFormatter().FormatSummary(result)); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	default:
		return validateOutput(format)
	}
	return nil
}
