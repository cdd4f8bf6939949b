package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdaburst/internal/config"
	"github.com/oriys/lambdaburst/internal/logging"
	"github.com/oriys/lambdaburst/internal/output"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	region     string
	endpoint   string
	outputFmt  string
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	run := runCmd()

	rootCmd := &cobra.Command{
		Use:   "lambdaburst",
		Short: "lambdaburst - fan out a batch of Lambda invocations under a profiling session",
		Long: "Invokes a Lambda function many times over a bounded worker pool, waits for every call, " +
			"and reports the status of each one. The run is bracketed by a CodeGuru profiling session.",
		SilenceUsage: true,
		// bare "lambdaburst" behaves like "lambdaburst run"
		RunE: run.RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "AWS region")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "AWS endpoint override (e.g. a local emulator)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format for results (table, wide, json, yaml)")
	rootCmd.Flags().AddFlagSet(run.Flags())

	rootCmd.AddCommand(
		run,
		invokeCmd(),
		profilerCmd(),
		configCmd(),
	)
	return rootCmd
}

// loadConfig builds the effective config: defaults, file, env, then flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	config.LoadFromEnv(cfg)

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if region != "" {
		cfg.AWS.Region = region
	}
	if endpoint != "" {
		cfg.AWS.Endpoint = endpoint
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)
}

func newPrinter(cmd *cobra.Command) *output.Printer {
	p := output.NewPrinter(output.ParseFormat(outputFmt))
	p.SetWriter(cmd.OutOrStdout())
	return p
}
