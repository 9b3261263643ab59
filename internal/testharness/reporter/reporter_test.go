package reporter_test

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
	"github.com/sensorkit/sensorkit-go/internal/testharness/loader"
	"github.com/sensorkit/sensorkit-go/internal/testharness/reporter"
)

func createTestResult(id, name string, passed, skipped bool, err error) *engine.TestResult {
	tr := &engine.TestResult{
		TestCase: &loader.TestCase{
			ID:       id,
			Name:     name,
			Requires: []string{"barometer"},
		},
		Passed:   passed,
		Skipped:  skipped,
		Error:    err,
		Duration: 100 * time.Millisecond,
	}
	if skipped {
		tr.SkipReason = "required sensors not supported: barometer"
		return tr
	}
	tr.StepResults = []*engine.StepResult{
		{
			Step:      &loader.Step{Action: "on", Description: "subscribe barometer"},
			StepIndex: 0,
			Passed:    passed,
			Error:     err,
			Duration:  50 * time.Millisecond,
			ExpectResults: map[string]*engine.ExpectResult{
				"error_code": {
					Key:      "error_code",
					Expected: 0,
					Actual:   int32(0),
					Passed:   passed,
					Message:  "error_code = 0",
				},
			},
			Output: map[string]any{"error_code": int32(0), "ch": make(chan int)},
		},
	}
	return tr
}

func createSuiteResult() *engine.SuiteResult {
	return &engine.SuiteResult{
		SuiteName: "Sensor Test Suite",
		Results: []*engine.TestResult{
			createTestResult("TC-001", "Barometer on", true, false, nil),
			createTestResult("TC-002", "Barometer <off>", false, false, errors.New(`expected "0" & got 401`)),
			createTestResult("TC-003", "Pedometer", false, true, nil),
		},
		PassCount: 1,
		FailCount: 1,
		SkipCount: 1,
		Duration:  500 * time.Millisecond,
	}
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, true)

	suite := createSuiteResult()
	for _, tr := range suite.Results {
		r.ReportTest(tr)
	}
	r.ReportSuite(suite)

	out := buf.String()
	for _, want := range []string{
		"[PASS] TC-001 - Barometer on (100ms)",
		"[FAIL] TC-002",
		"[SKIP] TC-003",
		"Skip reason: required sensors not supported: barometer",
		"[PASS] Step 1: on (50ms)",
		"subscribe barometer",
		"[OK] error_code: error_code = 0",
		"Passed:  1",
		"Pass Rate: 50.0%",
		"Failed tests:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextReporterQuiet(t *testing.T) {
	var buf bytes.Buffer
	reporter.NewTextReporter(&buf, false).ReportTest(createTestResult("TC-001", "x", true, false, nil))
	if strings.Contains(buf.String(), "Step 1") {
		t.Error("non-verbose output should not list steps")
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf, false)

	suite := createSuiteResult()
	r.ReportTest(suite.Results[0])
	r.ReportSuite(suite)

	var got reporter.JSONSuiteResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got.Total != 3 || got.Passed != 1 || got.Failed != 1 || got.Skipped != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if got.PassRate != 50 {
		t.Errorf("pass rate %v", got.PassRate)
	}
	if got.Tests[1].Status != "failed" || got.Tests[1].Error == "" {
		t.Errorf("failed test not reported: %+v", got.Tests[1])
	}
	if got.Tests[2].Status != "skipped" || got.Tests[2].SkipReason == "" {
		t.Errorf("skipped test not reported: %+v", got.Tests[2])
	}
	step := got.Tests[0].Steps[0]
	if step.Action != "on" || !step.Expects["error_code"].Passed {
		t.Errorf("unexpected step: %+v", step)
	}
	if _, ok := step.Outputs["ch"].(string); !ok {
		t.Error("unencodable output should be stringified")
	}
}

func TestJUnitReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJUnitReporter(&buf)
	r.ReportSuite(createSuiteResult())

	out := buf.String()
	if !strings.HasPrefix(out, "<?xml") {
		t.Errorf("missing XML header:\n%s", out)
	}

	var doc struct {
		Tests    int `xml:"tests,attr"`
		Failures int `xml:"failures,attr"`
		Cases    []struct {
			Name    string `xml:"name,attr"`
			Failure *struct {
				Message string `xml:"message,attr"`
				Detail  string `xml:",chardata"`
			} `xml:"failure"`
			Skipped *struct{} `xml:"skipped"`
		} `xml:"testcase"`
	}
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid XML: %v\n%s", err, out)
	}
	if doc.Tests != 3 || doc.Failures != 1 || len(doc.Cases) != 3 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Cases[1].Name != "Barometer <off>" {
		t.Errorf("name not escaped/unescaped correctly: %q", doc.Cases[1].Name)
	}
	if doc.Cases[1].Failure == nil || doc.Cases[1].Failure.Message != `expected "0" & got 401` {
		t.Errorf("unexpected failure: %+v", doc.Cases[1].Failure)
	}
	if !strings.Contains(doc.Cases[1].Failure.Detail, "Step 1 (on)") {
		t.Errorf("failure detail missing step: %q", doc.Cases[1].Failure.Detail)
	}
	if doc.Cases[2].Skipped == nil {
		t.Error("skipped case not marked")
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	if _, ok := reporter.New("json", &buf, false).(*reporter.JSONReporter); !ok {
		t.Error("json format")
	}
	if _, ok := reporter.New("junit", &buf, false).(*reporter.JUnitReporter); !ok {
		t.Error("junit format")
	}
	if _, ok := reporter.New("", &buf, false).(*reporter.TextReporter); !ok {
		t.Error("default format")
	}
}
