package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// InvocationType selects how Lambda runs a request.
type InvocationType string

const (
	InvocationRequestResponse InvocationType = "RequestResponse"
	InvocationEvent           InvocationType = "Event"
	InvocationDryRun          InvocationType = "DryRun"
)

// IsValid returns true if the invocation type is recognized.
func (t InvocationType) IsValid() bool {
	switch t {
	case InvocationRequestResponse, InvocationEvent, InvocationDryRun:
		return true
	}
	return false
}

// SuccessStatus is the status code Lambda returns for a successful call of
// this invocation type.
func (t InvocationType) SuccessStatus() int {
	switch t {
	case InvocationEvent:
		return 202
	case InvocationDryRun:
		return 204
	default:
		return 200
	}
}

// InvokeRequest is one dispatch of the target function.
type InvokeRequest struct {
	Index          int             `json:"index"`
	RequestID      string          `json:"request_id"`
	FunctionName   string          `json:"function_name"`
	Qualifier      string          `json:"qualifier,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	InvocationType InvocationType  `json:"invocation_type"`
	TailLogs       bool            `json:"tail_logs,omitempty"`
}

// InvokeResult is the resolved value of one invocation.
type InvokeResult struct {
	Index           int           `json:"index"`
	RequestID       string        `json:"request_id"`
	StatusCode      int           `json:"status_code"`
	Payload         []byte        `json:"-"`
	FunctionError   string        `json:"function_error,omitempty"`
	ExecutedVersion string        `json:"executed_version,omitempty"`
	LogTail         string        `json:"-"`
	Duration        time.Duration `json:"duration"`
}

// Outcome classifies a single call.
type Outcome int

const (
	OutcomeOK    Outcome = iota // status matched the success code
	OutcomeNonOK                // resolved with any other status
	OutcomeFault                // the call itself failed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNonOK:
		return "non_ok"
	case OutcomeFault:
		return "fault"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the outcome as its string form.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// Classify maps a resolved result and its error onto an Outcome.
func Classify(res *InvokeResult, err error, t InvocationType) Outcome {
	if err != nil || res == nil {
		return OutcomeFault
	}
	if res.StatusCode == t.SuccessStatus() {
		return OutcomeOK
	}
	return OutcomeNonOK
}

// CallReport records what happened to one submitted call.
type CallReport struct {
	Index         int           `json:"index"`
	RequestID     string        `json:"request_id"`
	Outcome       Outcome       `json:"outcome"`
	StatusCode    int           `json:"status_code,omitempty"`
	PayloadSize   int           `json:"payload_size,omitempty"`
	FunctionError string        `json:"function_error,omitempty"`
	Err           error         `json:"-"`
	Duration      time.Duration `json:"duration"`
}

// Report accumulates call outcomes for one batch run.
type Report struct {
	RunID        string       `json:"run_id"`
	FunctionName string       `json:"function_name"`
	Submitted    int          `json:"submitted"`
	Waited       int          `json:"waited"`
	OK           int          `json:"ok"`
	NonOK        int          `json:"non_ok"`
	Faults       int          `json:"faults"`
	Calls        []CallReport `json:"calls,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// NewReport creates an empty report sized for n calls.
func NewReport(runID, functionName string, n int) *Report {
	return &Report{
		RunID:        runID,
		FunctionName: functionName,
		Calls:        make([]CallReport, 0, n),
		StartedAt:    time.Now(),
	}
}

// Record appends a call and updates the tallies. Calls must be recorded in
// submission order.
func (r *Report) Record(c CallReport) {
	r.Waited++
	switch c.Outcome {
	case OutcomeOK:
		r.OK++
	case OutcomeNonOK:
		r.NonOK++
	default:
		r.Faults++
	}
	r.Calls = append(r.Calls, c)
}

// Failed reports whether any call was non-OK or faulted.
func (r *Report) Failed() bool {
	return r.NonOK > 0 || r.Faults > 0
}

// Elapsed returns the wall time of the run.
func (r *Report) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) String() string {
	return fmt.Sprintf("submitted=%d waited=%d ok=%d non_ok=%d faults=%d",
		r.Submitted, r.Waited, r.OK, r.NonOK, r.Faults)
}
