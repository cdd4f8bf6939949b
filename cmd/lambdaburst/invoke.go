package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oriys/lambdaburst/internal/awsclient"
	"github.com/oriys/lambdaburst/internal/config"
	"github.com/oriys/lambdaburst/internal/domain"
	"github.com/oriys/lambdaburst/internal/invoker"
	"github.com/oriys/lambdaburst/internal/output"
)

func invokeCmd() *cobra.Command {
	var (
		payload        string
		qualifier      string
		invocationType string
		tailLogs       bool
	)

	cmd := &cobra.Command{
		Use:   "invoke [function]",
		Short: "Invoke the function once and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			initLogging(cfg)

			name := cfg.Batch.FunctionName
			if len(args) == 1 {
				name = args[0]
			}
			if cmd.Flags().Changed("payload") {
				cfg.Batch.Payload = payload
			}
			if !json.Valid([]byte(cfg.Batch.Payload)) {
				return fmt.Errorf("payload is not valid JSON: %q", cfg.Batch.Payload)
			}
			typ := domainInvocationType(invocationType)
			if !typ.IsValid() {
				return fmt.Errorf("invalid invocation type: %s", invocationType)
			}

			awsCfg, err := awsclient.LoadConfig(cmd.Context(), cfg.AWS)
			if err != nil {
				return err
			}
			inv := invoker.NewLambdaInvoker(awsclient.NewLambda(awsCfg, cfg.AWS.Endpoint))

			res, err := inv.Invoke(cmd.Context(), &domain.InvokeRequest{
				RequestID:      uuid.NewString(),
				FunctionName:   name,
				Qualifier:      qualifier,
				Payload:        json.RawMessage(cfg.Batch.Payload),
				InvocationType: typ,
				TailLogs:       tailLogs,
			})
			if err != nil {
				return err
			}

			return newPrinter(cmd).PrintInvokeResult(output.InvokeResult{
				Function:        name,
				RequestID:       res.RequestID,
				StatusCode:      res.StatusCode,
				ExecutedVersion: res.ExecutedVersion,
				FunctionError:   res.FunctionError,
				Output:          res.Payload,
				DurationMs:      res.Duration.Milliseconds(),
				LogTail:         res.LogTail,
			})
		},
	}

	cmd.Flags().StringVarP(&payload, "payload", "p", config.DefaultPayload, "JSON payload")
	cmd.Flags().StringVarP(&qualifier, "qualifier", "q", "", "Function version or alias")
	cmd.Flags().StringVar(&invocationType, "invocation-type", "RequestResponse", "Invocation type (RequestResponse, Event, DryRun)")
	cmd.Flags().BoolVar(&tailLogs, "tail-logs", false, "Print the last 4 KB of the execution log")
	return cmd
}

func domainInvocationType(s string) domain.InvocationType {
	return domain.InvocationType(s)
}
