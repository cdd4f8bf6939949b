package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdaburst/internal/awsclient"
	"github.com/oriys/lambdaburst/internal/config"
	"github.com/oriys/lambdaburst/internal/domain"
	"github.com/oriys/lambdaburst/internal/invoker"
	"github.com/oriys/lambdaburst/internal/logging"
	"github.com/oriys/lambdaburst/internal/metrics"
	"github.com/oriys/lambdaburst/internal/observability"
	"github.com/oriys/lambdaburst/internal/runner"
)

func runCmd() *cobra.Command {
	var (
		functionName   string
		qualifier      string
		count          int
		payload        string
		concurrency    int
		invokeTimeout  time.Duration
		invocationType string
		profilingGroup string
		noProfiler     bool
		profileOutput  string
		metricsAddr    string
		otlpEndpoint   string
		tailLogs       bool
		quiet          bool
		strict         bool
		summary        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Invoke the target function in a batch and report every result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("function") {
				cfg.Batch.FunctionName = functionName
			}
			if flags.Changed("qualifier") {
				cfg.Batch.Qualifier = qualifier
			}
			if flags.Changed("count") {
				cfg.Batch.Count = count
			}
			if flags.Changed("payload") {
				cfg.Batch.Payload = payload
			}
			if flags.Changed("concurrency") {
				cfg.Batch.Concurrency = concurrency
			}
			if flags.Changed("invoke-timeout") {
				cfg.Batch.InvokeTimeout = invokeTimeout
			}
			if flags.Changed("invocation-type") {
				cfg.Batch.InvocationType = domainInvocationType(invocationType)
			}
			if flags.Changed("tail-logs") {
				cfg.Batch.TailLogs = tailLogs
			}
			if quiet {
				cfg.Batch.Progress = false
			}
			if flags.Changed("profiling-group") {
				cfg.Profiler.ProfilingGroup = profilingGroup
			}
			if noProfiler {
				cfg.Profiler.Enabled = false
			}
			if flags.Changed("profile-output") {
				cfg.Profiler.Output = profileOutput
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if flags.Changed("otlp-endpoint") {
				cfg.Tracing.Enabled = otlpEndpoint != ""
				cfg.Tracing.Endpoint = otlpEndpoint
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			initLogging(cfg)

			report, err := runBatch(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if summary {
				if err := newPrinter(cmd).PrintReport(report); err != nil {
					return err
				}
			}
			if strict && report.Failed() {
				return fmt.Errorf("batch finished with failures: %s", report)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&functionName, "function", "f", config.DefaultFunctionName, "Lambda function name or ARN")
	cmd.Flags().StringVarP(&qualifier, "qualifier", "q", "", "Function version or alias")
	cmd.Flags().IntVarP(&count, "count", "n", config.DefaultCount, "Number of invocations")
	cmd.Flags().StringVarP(&payload, "payload", "p", config.DefaultPayload, "JSON payload sent with every invocation")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", config.DefaultConcurrency, "Maximum invocations in flight")
	cmd.Flags().DurationVar(&invokeTimeout, "invoke-timeout", 0, "Per-invocation timeout (0 = wait indefinitely)")
	cmd.Flags().StringVar(&invocationType, "invocation-type", "RequestResponse", "Invocation type (RequestResponse, Event, DryRun)")
	cmd.Flags().BoolVar(&tailLogs, "tail-logs", false, "Request the last 4 KB of each execution log")
	cmd.Flags().StringVar(&profilingGroup, "profiling-group", config.DefaultProfilingGroup, "CodeGuru profiling group")
	cmd.Flags().BoolVar(&noProfiler, "no-profiler", false, "Skip the profiling session")
	cmd.Flags().StringVar(&profileOutput, "profile-output", "", "Write the CPU profile to this file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address during the run (e.g. :9090)")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "Export traces to this OTLP/HTTP endpoint")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Do not print progress dots (non-OK status lines are still printed)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero if any invocation was non-OK or failed")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print a run summary in the --output format when the batch finishes")

	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config) (*domain.Report, error) {
	log := logging.Op()

	if err := observability.Init(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := observability.Shutdown(context.Background()); err != nil {
			log.Warn("tracing shutdown", "error", err)
		}
	}()

	metrics.InitPrometheus(cfg.Metrics.Namespace, nil)
	if cfg.Metrics.Addr != "" {
		shutdown := metrics.Serve(cfg.Metrics.Addr)
		log.Info("metrics endpoint started", "addr", cfg.Metrics.Addr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(ctx)
		}()
	}

	awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	deps := runner.Deps{
		Invoker: invoker.NewLambdaInvoker(
			awsclient.NewLambda(awsCfg, cfg.AWS.Endpoint),
			invoker.WithTimeout(cfg.Batch.InvokeTimeout),
		),
		Progress: os.Stdout,
	}
	if cfg.Profiler.Enabled {
		deps.Profiler = awsclient.NewProfiler(awsCfg, cfg.AWS.Endpoint)
	}

	return runner.Run(ctx, cfg, deps)
}
