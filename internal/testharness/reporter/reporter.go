// Package reporter formats harness results as text, JSON or JUnit XML.
package reporter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
)

// Reporter formats and outputs test results.
type Reporter interface {
	// ReportSuite reports results for a test suite.
	ReportSuite(result *engine.SuiteResult)

	// ReportTest reports results for a single test as it completes.
	ReportTest(result *engine.TestResult)
}

// New returns the reporter for format: "json", "junit" or text for anything
// else.
func New(format string, w io.Writer, verbose bool) Reporter {
	switch format {
	case "json":
		return NewJSONReporter(w, true)
	case "junit":
		return NewJUnitReporter(w)
	default:
		return NewTextReporter(w, verbose)
	}
}

func status(result *engine.TestResult) string {
	switch {
	case result.Skipped:
		return "skipped"
	case result.Passed:
		return "passed"
	default:
		return "failed"
	}
}

func passRate(result *engine.SuiteResult) float64 {
	total := result.PassCount + result.FailCount
	if total == 0 {
		return 0
	}
	return float64(result.PassCount) / float64(total) * 100
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TextReporter outputs human-readable text reports.
type TextReporter struct {
	writer  io.Writer
	verbose bool
}

// NewTextReporter creates a new text reporter.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{
		writer:  w,
		verbose: verbose,
	}
}

// ReportSuite prints the summary. Per-test lines are printed by ReportTest
// as tests complete.
func (r *TextReporter) ReportSuite(result *engine.SuiteResult) {
	fmt.Fprintf(r.writer, "\n--- %s ---\n", result.SuiteName)
	fmt.Fprintf(r.writer, "Total:   %d\n", len(result.Results))
	fmt.Fprintf(r.writer, "Passed:  %d\n", result.PassCount)
	fmt.Fprintf(r.writer, "Failed:  %d\n", result.FailCount)
	fmt.Fprintf(r.writer, "Skipped: %d\n", result.SkipCount)
	if result.PassCount+result.FailCount > 0 {
		fmt.Fprintf(r.writer, "Pass Rate: %.1f%%\n", passRate(result))
	}
	fmt.Fprintf(r.writer, "Duration: %s\n", result.Duration.Round(time.Millisecond))

	if result.FailCount > 0 {
		fmt.Fprintf(r.writer, "\nFailed tests:\n")
		for _, tr := range result.Results {
			if !tr.Passed && !tr.Skipped {
				fmt.Fprintf(r.writer, "  %s: %v\n", tr.TestCase.ID, tr.Error)
			}
		}
	}
}

// ReportTest reports a single test result in text format.
func (r *TextReporter) ReportTest(result *engine.TestResult) {
	tc := result.TestCase

	fmt.Fprintf(r.writer, "[%s] %s - %s (%s)\n",
		strings.ToUpper(status(result))[:4], tc.ID, tc.Name, result.Duration.Round(time.Millisecond))

	if result.Skipped && result.SkipReason != "" {
		fmt.Fprintf(r.writer, "       Skip reason: %s\n", result.SkipReason)
	}
	if !result.Passed && result.Error != nil {
		fmt.Fprintf(r.writer, "       Error: %v\n", result.Error)
	}

	if !r.verbose {
		return
	}
	for _, sr := range result.StepResults {
		stepStatus := "PASS"
		if !sr.Passed {
			stepStatus = "FAIL"
		}
		fmt.Fprintf(r.writer, "    [%s] Step %d: %s (%s)\n",
			stepStatus, sr.StepIndex+1, sr.Step.Action, sr.Duration.Round(time.Millisecond))
		if sr.Step.Description != "" {
			fmt.Fprintf(r.writer, "           %s\n", sr.Step.Description)
		}
		if !sr.Passed && sr.Error != nil {
			fmt.Fprintf(r.writer, "           Error: %v\n", sr.Error)
		}
		for _, key := range sortedKeys(sr.ExpectResults) {
			er := sr.ExpectResults[key]
			expStatus := "OK"
			if !er.Passed {
				expStatus = "FAILED"
			}
			fmt.Fprintf(r.writer, "           [%s] %s: %s\n", expStatus, key, er.Message)
		}
	}
}

// JSONReporter outputs JSON-formatted reports.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// JSONSuiteResult is the JSON representation of suite results.
type JSONSuiteResult struct {
	SuiteName string           `json:"suite_name"`
	Duration  string           `json:"duration"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	PassRate  float64          `json:"pass_rate"`
	Tests     []JSONTestResult `json:"tests"`
}

// JSONTestResult is the JSON representation of a test result.
type JSONTestResult struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Status     string           `json:"status"`
	Duration   string           `json:"duration"`
	Requires   []string         `json:"requires,omitempty"`
	Error      string           `json:"error,omitempty"`
	SkipReason string           `json:"skip_reason,omitempty"`
	Steps      []JSONStepResult `json:"steps,omitempty"`
}

// JSONStepResult is the JSON representation of a step result.
type JSONStepResult struct {
	Index    int                   `json:"index"`
	Action   string                `json:"action"`
	Status   string                `json:"status"`
	Duration string                `json:"duration"`
	Error    string                `json:"error,omitempty"`
	Expects  map[string]JSONExpect `json:"expects,omitempty"`
	Outputs  map[string]any        `json:"outputs,omitempty"`
}

// JSONExpect is the JSON representation of an expectation result.
type JSONExpect struct {
	Passed   bool   `json:"passed"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Message  string `json:"message"`
}

// ReportSuite reports suite results in JSON format.
func (r *JSONReporter) ReportSuite(result *engine.SuiteResult) {
	jr := JSONSuiteResult{
		SuiteName: result.SuiteName,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Total:     len(result.Results),
		Passed:    result.PassCount,
		Failed:    result.FailCount,
		Skipped:   result.SkipCount,
		PassRate:  passRate(result),
		Tests:     make([]JSONTestResult, 0, len(result.Results)),
	}
	for _, tr := range result.Results {
		jr.Tests = append(jr.Tests, testToJSON(tr))
	}
	r.writeJSON(jr)
}

// ReportTest is a no-op: the JSON document is written once per suite so the
// output stays a single valid value.
func (r *JSONReporter) ReportTest(*engine.TestResult) {}

func testToJSON(result *engine.TestResult) JSONTestResult {
	tc := result.TestCase
	jr := JSONTestResult{
		ID:         tc.ID,
		Name:       tc.Name,
		Status:     status(result),
		Duration:   result.Duration.Round(time.Millisecond).String(),
		Requires:   tc.Requires,
		SkipReason: result.SkipReason,
	}
	if result.Error != nil {
		jr.Error = result.Error.Error()
	}

	for _, sr := range result.StepResults {
		stepStatus := "passed"
		if !sr.Passed {
			stepStatus = "failed"
		}
		jsr := JSONStepResult{
			Index:    sr.StepIndex,
			Action:   sr.Step.Action,
			Status:   stepStatus,
			Duration: sr.Duration.Round(time.Millisecond).String(),
			Outputs:  jsonSafe(sr.Output),
		}
		if sr.Error != nil {
			jsr.Error = sr.Error.Error()
		}
		if len(sr.ExpectResults) > 0 {
			jsr.Expects = make(map[string]JSONExpect, len(sr.ExpectResults))
		}
		for key, er := range sr.ExpectResults {
			jsr.Expects[key] = JSONExpect{
				Passed:   er.Passed,
				Expected: er.Expected,
				Actual:   er.Actual,
				Message:  er.Message,
			}
		}
		jr.Steps = append(jr.Steps, jsr)
	}
	return jr
}

// jsonSafe stringifies output values encoding/json cannot represent.
func jsonSafe(out map[string]any) map[string]any {
	if len(out) == 0 {
		return nil
	}
	safe := make(map[string]any, len(out))
	for k, v := range out {
		if _, err := json.Marshal(v); err != nil {
			safe[k] = fmt.Sprintf("%v", v)
			continue
		}
		safe[k] = v
	}
	return safe
}

func (r *JSONReporter) writeJSON(v any) {
	enc := json.NewEncoder(r.writer)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.writer, "{\"error\": %q}\n", "failed to marshal: "+err.Error())
	}
}

// JUnitReporter outputs JUnit XML format for CI integration.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

type junitSuite struct {
	XMLName  xml.Name    `xml:"testsuite"`
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     string      `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Skipped   *junitSkipped `xml:"skipped"`
	Failure   *junitFailure `xml:"failure"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Detail  string `xml:",cdata"`
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// ReportSuite reports suite results in JUnit XML format.
func (r *JUnitReporter) ReportSuite(result *engine.SuiteResult) {
	suite := junitSuite{
		Name:     result.SuiteName,
		Tests:    len(result.Results),
		Failures: result.FailCount,
		Skipped:  result.SkipCount,
		Time:     seconds(result.Duration),
	}

	for _, tr := range result.Results {
		tc := tr.TestCase
		name := tc.Name
		if name == "" {
			name = tc.ID
		}
		jc := junitCase{Name: name, ClassName: tc.ID, Time: seconds(tr.Duration)}

		switch {
		case tr.Skipped:
			jc.Skipped = &junitSkipped{Message: tr.SkipReason}
		case !tr.Passed:
			msg := "failed"
			if tr.Error != nil {
				msg = tr.Error.Error()
			}
			var detail strings.Builder
			for _, sr := range tr.StepResults {
				if !sr.Passed {
					fmt.Fprintf(&detail, "Step %d (%s): %v\n", sr.StepIndex+1, sr.Step.Action, sr.Error)
				}
			}
			jc.Failure = &junitFailure{Message: msg, Detail: detail.String()}
		}
		suite.Cases = append(suite.Cases, jc)
	}

	io.WriteString(r.writer, xml.Header)
	enc := xml.NewEncoder(r.writer)
	enc.Indent("", "  ")
	if err := enc.Encode(suite); err != nil {
		fmt.Fprintf(r.writer, "<!-- failed to encode: %s -->\n", err)
		return
	}
	io.WriteString(r.writer, "\n")
}

// ReportTest is a no-op; JUnit output is one document per suite.
func (r *JUnitReporter) ReportTest(*engine.TestResult) {}
