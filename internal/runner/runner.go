// Package runner drives one complete batch run: open the profiling session,
// dispatch every invocation, collect and classify the results, then close
// the session. The session is released on every exit path.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/lambdaburst/internal/batch"
	"github.com/oriys/lambdaburst/internal/config"
	"github.com/oriys/lambdaburst/internal/domain"
	"github.com/oriys/lambdaburst/internal/invoker"
	"github.com/oriys/lambdaburst/internal/logging"
	"github.com/oriys/lambdaburst/internal/metrics"
	"github.com/oriys/lambdaburst/internal/observability"
	"github.com/oriys/lambdaburst/internal/profiler"
)

// Phase is a step of the run lifecycle.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseProfilerRunning
	PhaseDispatching
	PhaseWaiting
	PhaseProfilerStopped
	PhaseExited
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseProfilerRunning:
		return "profiler_running"
	case PhaseDispatching:
		return "dispatching"
	case PhaseWaiting:
		return "waiting"
	case PhaseProfilerStopped:
		return "profiler_stopped"
	case PhaseExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Deps are the remote clients and sinks a run uses.
type Deps struct {
	Invoker  invoker.Invoker
	Profiler profiler.API // required when the profiler is enabled
	Progress io.Writer    // dots and non-OK lines, usually stdout
	// OnPhase, if set, is called on every lifecycle transition.
	OnPhase func(Phase)
}

// Run executes one batch as configured. Setup and submission faults are
// returned as errors; per-call failures only show up in the report.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (report *domain.Report, err error) {
	runID := uuid.NewString()
	log := logging.Op().With("run_id", runID)
	phase := func(p Phase) {
		log.Debug("phase", "phase", p.String())
		if deps.OnPhase != nil {
			deps.OnPhase(p)
		}
	}
	phase(PhaseNotStarted)
	defer phase(PhaseExited)

	ctx, span := observability.StartSpan(ctx, "batch.run",
		observability.AttrRunID.String(runID),
		observability.AttrFunction.String(cfg.Batch.FunctionName),
		observability.AttrCount.Int(cfg.Batch.Count),
	)
	defer func() {
		if err != nil {
			observability.SetSpanError(span, err)
		} else {
			observability.SetSpanOK(span)
		}
		span.End()
	}()

	if cfg.Profiler.Enabled {
		if deps.Profiler == nil {
			return nil, fmt.Errorf("profiler enabled without a profiler client")
		}
		sess, err := profiler.Start(ctx, deps.Profiler, profiler.Options{
			ProfilingGroup: cfg.Profiler.ProfilingGroup,
			Output:         cfg.Profiler.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("start profiler: %w", err)
		}
		metrics.SetProfilerActive(true)
		defer func() {
			if stopErr := sess.Stop(); stopErr != nil {
				log.Error("stop profiler", "error", stopErr)
			}
			metrics.SetProfilerActive(false)
			phase(PhaseProfilerStopped)
		}()
		phase(PhaseProfilerRunning)
		group := sess.Group()
		log.Info("Profiling group ready", "profiling_group", group.Name, "arn", group.ARN, "sampling", sess.Profiling())
	}
	log.Info("Started", "function", cfg.Batch.FunctionName, "count", cfg.Batch.Count)

	d := batch.New(deps.Invoker, batch.Options{
		RunID:          runID,
		FunctionName:   cfg.Batch.FunctionName,
		Qualifier:      cfg.Batch.Qualifier,
		Count:          cfg.Batch.Count,
		Payload:        json.RawMessage(cfg.Batch.Payload),
		InvocationType: cfg.Batch.InvocationType,
		Concurrency:    cfg.Batch.Concurrency,
		TailLogs:       cfg.Batch.TailLogs,
		Quiet:          !cfg.Batch.Progress,
	}, deps.Progress)
	defer d.Close()

	report = domain.NewReport(runID, cfg.Batch.FunctionName, cfg.Batch.Count)

	phase(PhaseDispatching)
	handles, err := d.Dispatch(ctx)
	report.Submitted = len(handles)
	if err != nil {
		report.FinishedAt = time.Now()
		return report, fmt.Errorf("dispatch: %w", err)
	}

	phase(PhaseWaiting)
	d.Collect(ctx, handles, report)
	report.FinishedAt = time.Now()

	metrics.RecordBatchDuration(cfg.Batch.FunctionName, report.Elapsed())
	log.Info("Finished",
		"submitted", report.Submitted,
		"ok", report.OK,
		"non_ok", report.NonOK,
		"faults", report.Faults,
		"elapsed", report.Elapsed(),
	)
	return report, nil
}
