package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/lambdaburst/internal/awsclient"
	"github.com/oriys/lambdaburst/internal/output"
	"github.com/oriys/lambdaburst/internal/profiler"
)

func profilerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiler",
		Short: "Inspect the CodeGuru profiling group",
	}
	cmd.AddCommand(profilerDescribeCmd())
	return cmd
}

func profilerDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [group]",
		Short: "Describe the profiling group used by runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			initLogging(cfg)

			group := cfg.Profiler.ProfilingGroup
			if len(args) == 1 {
				group = args[0]
			}

			awsCfg, err := awsclient.LoadConfig(cmd.Context(), cfg.AWS)
			if err != nil {
				return err
			}
			info, err := profiler.Describe(cmd.Context(), awsclient.NewProfiler(awsCfg, cfg.AWS.Endpoint), group)
			if err != nil {
				return err
			}

			detail := output.GroupDetail{
				Name:             info.Name,
				ARN:              info.ARN,
				ComputePlatform:  info.ComputePlatform,
				ProfilingEnabled: info.ProfilingEnabled,
			}
			if !info.CreatedAt.IsZero() {
				detail.Created = info.CreatedAt.Format(time.RFC3339)
			}
			return newPrinter(cmd).PrintGroupDetail(detail)
		},
	}
}
