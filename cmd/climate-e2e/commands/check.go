package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/ahccd"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/checks"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/config"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/metrics"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/tracing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	configPath    string
	scenarioNames []string
	metricsFile   string
	apiURL        string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the AHCCD scenarios against the OGC API",
	Long: `Run the AHCCD download scenarios directly against the OGC API - Features
backend. Count queries are polled until they satisfy their thresholds or the poll
timeout is reached. Exits non-zero when any hard check fails; soft checks only warn.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional)")
	checkCmd.Flags().StringSliceVar(&scenarioNames, "scenario", nil,
		"Scenario to run, repeatable (default: all; see 'climate-e2e scenarios')")
	checkCmd.Flags().StringVar(&metricsFile, "metrics-file", "",
		"Write prometheus metrics in textfile format to this path after the run")
	checkCmd.Flags().StringVar(&apiURL, "api-url", "", "Override the OGC API root (default from config)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		if err := setupLog([]string{cfg.LogLevel}); err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	logger := logging.GetLogger("climate-e2e").WithField("run_id", runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		TLSCAPath:   cfg.Tracing.TLSCAPath,
		TLSInsecure: cfg.Tracing.TLSInsecure,
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	scenarios, err := ahccd.Select(scenarioNames, cfg.Scenarios)
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return errors.New("no scenarios selected")
	}

	client, err := oapif.NewClient(cfg.APIURL, oapif.WithUserAgent("climate-e2e/"+Version))
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	recorder := checks.NewRecorder(logger.WithName("checks"), m.ObserveCheck)
	runner := ahccd.NewRunner(client, recorder, cfg.PollConfig,
		ahccd.WithMetrics(m),
		ahccd.WithLogger(logging.GetLogger("ahccd").WithField("run_id", runID)),
	)

	ctx, span := tp.Tracer("climate-e2e").Start(ctx, "check", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("api_url", cfg.APIURL),
		attribute.Int("scenarios", len(scenarios)),
	))
	logger.WithContext(ctx).Info("Checking %d scenario(s) against %s", len(scenarios), cfg.APIURL)

	runErr := runner.RunAll(ctx, scenarios)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "hard checks failed")
	}
	span.End()

	passed, hardFailed, softFailed := recorder.Summary()
	logger.InfoWithFields("Run complete",
		logging.Field("passed", passed),
		logging.Field("failed", hardFailed),
		logging.Field("warnings", softFailed),
	)

	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			logger.Error("Failed to write metrics to %s: %v", metricsFile, err)
			if runErr == nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
	}

	return runErr
}
