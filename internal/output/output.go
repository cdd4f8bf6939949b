package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/lambdaburst/internal/domain"
)

// Format represents output format
type Format string

const (
	FormatNone  Format = "none"
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "", "none":
		return FormatNone
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "wide":
		return FormatWide
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Print outputs data in the configured format
func (p *Printer) Print(data interface{}) error {
	switch p.format {
	case FormatNone:
		return nil
	case FormatYAML:
		return p.printYAML(data)
	default:
		return p.printJSON(data)
	}
}

func (p *Printer) printJSON(data interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// Color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// ReportSummary is the printable form of a batch report
type ReportSummary struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Function  string    `json:"function" yaml:"function"`
	Submitted int       `json:"submitted" yaml:"submitted"`
	Waited    int       `json:"waited" yaml:"waited"`
	OK        int       `json:"ok" yaml:"ok"`
	NonOK     int       `json:"non_ok" yaml:"non_ok"`
	Faults    int       `json:"faults" yaml:"faults"`
	ElapsedMs int64     `json:"elapsed_ms" yaml:"elapsed_ms"`
	Failures  []CallRow `json:"failures,omitempty" yaml:"failures,omitempty"`
	Calls     []CallRow `json:"calls,omitempty" yaml:"calls,omitempty"`
}

// CallRow is one call in a report listing
type CallRow struct {
	Index         int    `json:"index" yaml:"index"`
	RequestID     string `json:"request_id" yaml:"request_id"`
	Outcome       string `json:"outcome" yaml:"outcome"`
	StatusCode    int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	FunctionError string `json:"function_error,omitempty" yaml:"function_error,omitempty"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs    int64  `json:"duration_ms" yaml:"duration_ms"`
}

// Summarize converts a report into its printable form. Wide summaries list
// every call; the others only list non-OK and faulted calls.
func Summarize(r *domain.Report, wide bool) ReportSummary {
	s := ReportSummary{
		RunID:     r.RunID,
		Function:  r.FunctionName,
		Submitted: r.Submitted,
		Waited:    r.Waited,
		OK:        r.OK,
		NonOK:     r.NonOK,
		Faults:    r.Faults,
		ElapsedMs: r.Elapsed().Milliseconds(),
	}
	for _, c := range r.Calls {
		row := CallRow{
			Index:         c.Index,
			RequestID:     c.RequestID,
			Outcome:       c.Outcome.String(),
			StatusCode:    c.StatusCode,
			FunctionError: c.FunctionError,
			DurationMs:    c.Duration.Milliseconds(),
		}
		if c.Err != nil {
			row.Error = c.Err.Error()
		}
		if wide {
			s.Calls = append(s.Calls, row)
		} else if c.Outcome != domain.OutcomeOK {
			s.Failures = append(s.Failures, row)
		}
	}
	return s
}

// PrintReport prints the outcome of a batch run
func (p *Printer) PrintReport(r *domain.Report) error {
	if p.format == FormatNone {
		return nil
	}
	s := Summarize(r, p.format == FormatWide)
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(s)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Run:"), s.RunID)
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Function:"), p.Colorize(Cyan, s.Function))
	fmt.Fprintf(p.writer, "  %s %d\n", p.Colorize(Gray, "Submitted:"), s.Submitted)
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "OK:"), p.Colorize(Green, fmt.Sprint(s.OK)))
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Non-OK:"), p.countColor(s.NonOK, Yellow))
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Faults:"), p.countColor(s.Faults, Red))
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Elapsed:"), time.Duration(s.ElapsedMs)*time.Millisecond)

	rows := s.Failures
	if p.format == FormatWide {
		rows = s.Calls
	}
	if len(rows) == 0 {
		return nil
	}

	fmt.Fprintln(p.writer)
	w := p.TableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "INDEX\tOUTCOME\tSTATUS\tDURATION\tDETAIL"))
	for _, row := range rows {
		detail := row.Error
		if detail == "" {
			detail = row.FunctionError
		}
		status := "-"
		if row.StatusCode > 0 {
			status = fmt.Sprint(row.StatusCode)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%dms\t%s\n", row.Index, row.Outcome, status, row.DurationMs, detail)
	}
	return w.Flush()
}

func (p *Printer) countColor(n int, color string) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return p.Colorize(color, fmt.Sprint(n))
}

// InvokeResult represents a single invocation result
type InvokeResult struct {
	Function        string          `json:"function" yaml:"function"`
	RequestID       string          `json:"request_id" yaml:"request_id"`
	StatusCode      int             `json:"status_code" yaml:"status_code"`
	ExecutedVersion string          `json:"executed_version,omitempty" yaml:"executed_version,omitempty"`
	FunctionError   string          `json:"function_error,omitempty" yaml:"function_error,omitempty"`
	Output          json.RawMessage `json:"output,omitempty" yaml:"-"`
	DurationMs      int64           `json:"duration_ms" yaml:"duration_ms"`
	LogTail         string          `json:"log_tail,omitempty" yaml:"log_tail,omitempty"`
}

// PrintInvokeResult prints invocation result
func (p *Printer) PrintInvokeResult(result InvokeResult) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(result)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Function:"), p.Colorize(Cyan, result.Function))
	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Request ID:"), result.RequestID)
	status := fmt.Sprint(result.StatusCode)
	if result.StatusCode >= 200 && result.StatusCode < 300 {
		status = p.Colorize(Green, status)
	} else {
		status = p.Colorize(Red, status)
	}
	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Status:"), status)
	fmt.Fprintf(p.writer, "%s %d ms\n", p.Colorize(Bold, "Duration:"), result.DurationMs)
	if result.ExecutedVersion != "" {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Version:"), result.ExecutedVersion)
	}

	if result.FunctionError != "" {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Error:"), p.Colorize(Red, result.FunctionError))
	}
	if len(result.Output) > 0 {
		fmt.Fprintf(p.writer, "%s\n", p.Colorize(Bold, "Output:"))
		// Pretty print JSON output
		var prettyOutput interface{}
		if err := json.Unmarshal(result.Output, &prettyOutput); err == nil {
			formatted, _ := json.MarshalIndent(prettyOutput, "", "  ")
			fmt.Fprintln(p.writer, string(formatted))
		} else {
			fmt.Fprintln(p.writer, string(result.Output))
		}
	}
	if result.LogTail != "" {
		fmt.Fprintf(p.writer, "%s\n%s\n", p.Colorize(Bold, "Log tail:"), result.LogTail)
	}

	return nil
}

// GroupDetail represents a profiling group description
type GroupDetail struct {
	Name             string `json:"name" yaml:"name"`
	ARN              string `json:"arn" yaml:"arn"`
	ComputePlatform  string `json:"compute_platform" yaml:"compute_platform"`
	ProfilingEnabled bool   `json:"profiling_enabled" yaml:"profiling_enabled"`
	Created          string `json:"created,omitempty" yaml:"created,omitempty"`
}

// PrintGroupDetail prints profiling group info
func (p *Printer) PrintGroupDetail(detail GroupDetail) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(detail)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Profiling group:"), p.Colorize(Cyan, detail.Name))
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "ARN:"), detail.ARN)
	fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Platform:"), detail.ComputePlatform)
	if detail.ProfilingEnabled {
		fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Profiling:"), p.Colorize(Green, "enabled"))
	} else {
		fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Profiling:"), p.Colorize(Yellow, "disabled"))
	}
	if detail.Created != "" {
		fmt.Fprintf(p.writer, "  %s %s\n", p.Colorize(Gray, "Created:"), detail.Created)
	}
	return nil
}
