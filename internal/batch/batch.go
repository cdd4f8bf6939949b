// Package batch fans a fixed number of invocations out over a bounded
// worker pool and collects every result in submission order.
//
// Dispatch submits all calls without waiting on remote work and returns one
// ordered slice of handles. Collect then blocks on each handle in turn,
// prints a progress dot per resolved handle and classifies the result on the
// spot. A failed call is recorded and logged; it never stops the batch.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/oriys/lambdaburst/internal/domain"
	"github.com/oriys/lambdaburst/internal/invoker"
	"github.com/oriys/lambdaburst/internal/logging"
	"github.com/oriys/lambdaburst/internal/metrics"
	"github.com/oriys/lambdaburst/internal/observability"
)

// ErrPoolStopped is returned when dispatching on a closed Dispatcher.
var ErrPoolStopped = errors.New("dispatch pool stopped")

// Options describes one batch.
type Options struct {
	RunID          string
	FunctionName   string
	Qualifier      string
	Count          int
	Payload        json.RawMessage
	InvocationType domain.InvocationType
	Concurrency    int
	TailLogs       bool
	// Quiet suppresses the progress dots. Non-OK status lines are always
	// written.
	Quiet bool
}

// attempt is the resolved value of a handle.
type attempt struct {
	res     *domain.InvokeResult
	err     error
	elapsed time.Duration
}

// Handle is one outstanding invocation.
type Handle struct {
	Request *domain.InvokeRequest
	result  pond.Result[attempt]
}

// Done is closed once the invocation has resolved.
func (h Handle) Done() <-chan struct{} {
	return h.result.Done()
}

// Dispatcher submits invocations to a bounded pool.
type Dispatcher struct {
	inv      invoker.Invoker
	opts     Options
	progress io.Writer
	pool     pond.ResultPool[attempt]

	mu     sync.Mutex
	closed bool
	col    int // progress dots on the current line
}

// New creates a Dispatcher. progress receives the dot line and non-OK
// status lines.
func New(inv invoker.Invoker, opts Options, progress io.Writer) *Dispatcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.InvocationType == "" {
		opts.InvocationType = domain.InvocationRequestResponse
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Dispatcher{
		inv:      inv,
		opts:     opts,
		progress: progress,
		pool:     pond.NewResultPool[attempt](opts.Concurrency),
	}
}

// Close stops the pool and waits for running invocations to return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.pool.StopAndWait()
}

// Dispatch submits Count invocations and returns their handles in
// submission order. A submission fault aborts the batch; the handles
// submitted so far are returned with the error.
func (d *Dispatcher) Dispatch(ctx context.Context) ([]Handle, error) {
	log := logging.Op().With("run_id", d.opts.RunID, "function", d.opts.FunctionName)
	handles := make([]Handle, 0, d.opts.Count)

	log.Info("Starting lambdas", "count", d.opts.Count, "concurrency", d.opts.Concurrency)
	for i := 0; i < d.opts.Count; i++ {
		if err := d.submittable(ctx); err != nil {
			return handles, fmt.Errorf("dispatch #%d: %w", i, err)
		}

		req := &domain.InvokeRequest{
			Index:          i,
			RequestID:      uuid.NewString(),
			FunctionName:   d.opts.FunctionName,
			Qualifier:      d.opts.Qualifier,
			Payload:        d.opts.Payload,
			InvocationType: d.opts.InvocationType,
			TailLogs:       d.opts.TailLogs,
		}
		log.Info("Invoking Lambda", "index", i, "request_id", req.RequestID)

		handles = append(handles, Handle{
			Request: req,
			result:  d.pool.Submit(d.task(ctx, req)),
		})
		metrics.RecordDispatch(d.opts.FunctionName)
	}
	log.Info("Finished starting lambdas", "submitted", len(handles))
	return handles, nil
}

func (d *Dispatcher) submittable(ctx context.Context) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrPoolStopped
	}
	return ctx.Err()
}

// task builds the pool closure for one request.
func (d *Dispatcher) task(ctx context.Context, req *domain.InvokeRequest) func() attempt {
	return func() attempt {
		if err := ctx.Err(); err != nil {
			return attempt{err: fmt.Errorf("invoke %s #%d: %w", req.FunctionName, req.Index, err)}
		}

		metrics.IncInflight()
		defer metrics.DecInflight()

		ctx, span := observability.StartClientSpan(ctx, "lambda.invoke",
			observability.AttrRunID.String(d.opts.RunID),
			observability.AttrFunction.String(req.FunctionName),
			observability.AttrIndex.Int(req.Index),
			observability.AttrRequestID.String(req.RequestID),
		)
		defer span.End()

		start := time.Now()
		res, err := d.inv.Invoke(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			observability.SetSpanError(span, err)
			return attempt{err: err, elapsed: elapsed}
		}
		span.SetAttributes(observability.AttrStatusCode.Int(res.StatusCode))
		observability.SetSpanOK(span)
		return attempt{res: res, elapsed: elapsed}
	}
}

// Collect waits on every handle in order and records each outcome in
// report. It always drains all handles.
func (d *Dispatcher) Collect(ctx context.Context, handles []Handle, report *domain.Report) {
	log := logging.Op().With("run_id", d.opts.RunID, "function", d.opts.FunctionName)

	_, span := observability.StartSpan(ctx, "batch.collect", observability.AttrCount.Int(len(handles)))
	defer span.End()

	log.Info("Waiting for lambdas", "pending", len(handles))
	for _, h := range handles {
		a, err := h.result.Wait()
		if err != nil {
			// the worker panicked or the pool rejected the task
			a.err = fmt.Errorf("invoke %s #%d: %w", h.Request.FunctionName, h.Request.Index, err)
		}
		d.dot()

		call := d.classify(h.Request, a)
		report.Record(call)
		metrics.RecordInvocation(d.opts.FunctionName, call.Outcome.String(), call.StatusCode, call.Duration)
		metrics.SetPoolStats(d.pool.RunningWorkers(), d.pool.WaitingTasks())

		switch call.Outcome {
		case domain.OutcomeOK:
			log.Debug("Gathered result", "index", call.Index, "status", call.StatusCode, "payload_bytes", call.PayloadSize)
			if call.FunctionError != "" {
				log.Warn("Function returned an error", "index", call.Index, "function_error", call.FunctionError)
			}
		case domain.OutcomeNonOK:
			d.nonOK(call.StatusCode)
			log.Warn("Non-OK response", "index", call.Index, "status", call.StatusCode, "function_error", call.FunctionError)
		case domain.OutcomeFault:
			log.Error("Invocation failed", "index", call.Index, "request_id", call.RequestID, "error", call.Err)
		}
	}
	d.endLine()
	span.SetAttributes(
		attribute.Int("lambdaburst.ok", report.OK),
		attribute.Int("lambdaburst.non_ok", report.NonOK),
		attribute.Int("lambdaburst.faults", report.Faults),
	)
	log.Info("Lambdas completed", "waited", report.Waited)
}

func (d *Dispatcher) classify(req *domain.InvokeRequest, a attempt) domain.CallReport {
	call := domain.CallReport{
		Index:     req.Index,
		RequestID: req.RequestID,
		Outcome:   domain.Classify(a.res, a.err, d.opts.InvocationType),
		Err:       a.err,
		Duration:  a.elapsed,
	}
	if a.res != nil && a.err == nil {
		call.StatusCode = a.res.StatusCode
		call.FunctionError = a.res.FunctionError
		call.PayloadSize = len(a.res.Payload)
	}
	return call
}

// Run dispatches the whole batch and collects it into a new report.
func (d *Dispatcher) Run(ctx context.Context) (*domain.Report, error) {
	report := domain.NewReport(d.opts.RunID, d.opts.FunctionName, d.opts.Count)

	handles, err := d.Dispatch(ctx)
	report.Submitted = len(handles)
	if err != nil {
		report.FinishedAt = time.Now()
		return report, err
	}

	d.Collect(ctx, handles, report)
	report.FinishedAt = time.Now()
	return report, nil
}

func (d *Dispatcher) dot() {
	if d.opts.Quiet {
		return
	}
	fmt.Fprint(d.progress, ".")
	d.col++
}

func (d *Dispatcher) endLine() {
	if d.col > 0 {
		fmt.Fprintln(d.progress)
		d.col = 0
	}
}

func (d *Dispatcher) nonOK(code int) {
	d.endLine()
	fmt.Fprintf(d.progress, "Received a non-OK response from AWS: %d\n", code)
}
