package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oriys/lambdaburst/internal/domain"
)

func sampleReport() *domain.Report {
	r := domain.NewReport("run-1", "fn", 3)
	r.Submitted = 3
	r.Record(domain.CallReport{Index: 0, Outcome: domain.OutcomeOK, StatusCode: 200, Duration: 10 * time.Millisecond})
	r.Record(domain.CallReport{Index: 1, Outcome: domain.OutcomeNonOK, StatusCode: 500})
	r.Record(domain.CallReport{Index: 2, Outcome: domain.OutcomeFault, Err: errors.New("throttled")})
	r.FinishedAt = r.StartedAt.Add(2 * time.Second)
	return r
}

func newTestPrinter(f Format) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewPrinter(f)
	p.noColor = true
	p.SetWriter(&buf)
	return p, &buf
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatNone, "JSON": FormatJSON, "yml": FormatYAML, "wide": FormatWide, "other": FormatTable}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintReportTable(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	if err := p.PrintReport(sampleReport()); err != nil {
		t.Fatalf("PrintReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Run: run-1", "Non-OK: 1", "Faults: 1", "Elapsed: 2s", "non_ok", "throttled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\n0  ") {
		t.Fatalf("OK calls should not be listed in the table:\n%s", out)
	}
}

func TestPrintReportJSON(t *testing.T) {
	p, buf := newTestPrinter(FormatJSON)
	if err := p.PrintReport(sampleReport()); err != nil {
		t.Fatalf("PrintReport: %v", err)
	}
	var s ReportSummary
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if s.OK != 1 || s.NonOK != 1 || s.Faults != 1 || len(s.Failures) != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Failures[1].Error != "throttled" {
		t.Fatalf("fault error not carried: %+v", s.Failures[1])
	}
}

func TestPrintReportNone(t *testing.T) {
	p, buf := newTestPrinter(FormatNone)
	if err := p.PrintReport(sampleReport()); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestSummarizeWide(t *testing.T) {
	s := Summarize(sampleReport(), true)
	if len(s.Calls) != 3 || len(s.Failures) != 0 {
		t.Fatalf("wide summary should list every call: %+v", s)
	}
}

func TestPrintInvokeResult(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	err := p.PrintInvokeResult(InvokeResult{
		Function:   "fn",
		RequestID:  "r1",
		StatusCode: 200,
		Output:     json.RawMessage(`{"a":1}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Status: 200") || !strings.Contains(buf.String(), `"a": 1`) {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestPrintGroupDetailYAML(t *testing.T) {
	p, buf := newTestPrinter(FormatYAML)
	if err := p.PrintGroupDetail(GroupDetail{Name: "demoApplication", ProfilingEnabled: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "name: demoApplication") || !strings.Contains(buf.String(), "profiling_enabled: true") {
		t.Fatalf("unexpected yaml:\n%s", buf.String())
	}
}
