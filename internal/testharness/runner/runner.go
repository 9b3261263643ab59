// Package runner executes YAML sensor test cases. Every test case gets a
// fresh client over a simulated driver, so cases never share subscriptions
// or permissions.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sensorkit/sensorkit-go/internal/testharness/engine"
	"github.com/sensorkit/sensorkit-go/internal/testharness/loader"
	"github.com/sensorkit/sensorkit-go/internal/testharness/reporter"
	"github.com/sensorkit/sensorkit-go/pkg/contract"
	"github.com/sensorkit/sensorkit-go/pkg/driver/sim"
	"github.com/sensorkit/sensorkit-go/pkg/log"
	"github.com/sensorkit/sensorkit-go/pkg/sensor"
)

// Runner executes test cases against simulated devices.
type Runner struct {
	config       *Config
	engine       *engine.Engine
	engineConfig *engine.EngineConfig
	reporter     reporter.Reporter
	logger       *slog.Logger
	catalog      *sensor.Catalog
}

// Config configures the test runner.
type Config struct {
	// TestDir is searched recursively for YAML test cases.
	TestDir string

	// Pattern filters tests by ID or name.
	Pattern string

	// Tags keeps only tests carrying one of the tags.
	Tags []string

	// Timeout is the default per-test timeout.
	Timeout time.Duration

	// SuiteTimeout bounds the whole run. Zero derives it from the tests.
	SuiteTimeout time.Duration

	// StopOnFirstFailure stops after the first failing test.
	StopOnFirstFailure bool

	// Verbose prints step details.
	Verbose bool

	// Output receives the report. Defaults to io.Discard.
	Output io.Writer

	// OutputFormat is "text", "json" or "junit".
	OutputFormat string

	// ProfileFile is a device profile YAML. Empty simulates a device with
	// every known sensor.
	ProfileFile string

	// Profile is used instead of ProfileFile when set.
	Profile *sim.Profile

	// EventLog receives the captured events of every test client.
	EventLog log.Logger

	// Logger receives operational logs of the clients and the runner.
	Logger *slog.Logger
}

// New creates a runner.
func New(config *Config) *Runner {
	if config.Output == nil {
		config.Output = io.Discard
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engineConfig := engine.DefaultConfig()
	if config.Timeout > 0 {
		engineConfig.DefaultTimeout = config.Timeout
	}
	engineConfig.SuiteTimeout = config.SuiteTimeout
	engineConfig.StopOnFirstFailure = config.StopOnFirstFailure

	r := &Runner{
		config:       config,
		engine:       engine.NewWithConfig(engineConfig),
		engineConfig: engineConfig,
		reporter:     reporter.New(config.OutputFormat, config.Output, config.Verbose),
		logger:       logger,
		catalog:      sensor.DefaultCatalog(),
	}

	// The engine keeps the *EngineConfig pointer, so hooks bound here are
	// seen by Run.
	engineConfig.SetupTest = r.setupTest
	engineConfig.TeardownTest = r.teardownTest
	engineConfig.OnTestComplete = func(result *engine.TestResult) {
		r.reporter.ReportTest(result)
	}

	engine.RegisterEnhancedCheckers(r.engine)
	r.registerHandlers()
	r.registerCheckers()

	return r
}

// Engine exposes the underlying engine, e.g. to register extra actions.
func (r *Runner) Engine() *engine.Engine {
	return r.engine
}

// Run executes all matching test cases and returns the suite result.
func (r *Runner) Run(ctx context.Context) (*engine.SuiteResult, error) {
	if err := r.loadProfile(); err != nil {
		return nil, err
	}

	cases, err := loader.LoadDirectoryRecursive(r.config.TestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load tests: %w", err)
	}
	cases = loader.FilterByPattern(cases, r.config.Pattern)
	cases = loader.FilterByTags(cases, r.config.Tags)

	r.logger.Info("running sensor tests",
		"dir", r.config.TestDir,
		"cases", len(cases),
		"sensors", r.catalog.Len())

	return r.RunCases(ctx, cases), nil
}

// RunCases runs already loaded cases and reports the summary.
func (r *Runner) RunCases(ctx context.Context, cases []*loader.TestCase) *engine.SuiteResult {
	r.engineConfig.Catalog = r.catalog

	result := r.engine.RunSuite(ctx, cases)
	result.SuiteName = fmt.Sprintf("Sensor Tests (%d sensors)", r.catalog.Len())

	r.reporter.ReportSuite(result)
	return result
}

func (r *Runner) loadProfile() error {
	profile := r.config.Profile
	if profile == nil && r.config.ProfileFile != "" {
		var err error
		if profile, err = sim.LoadProfile(r.config.ProfileFile); err != nil {
			return err
		}
	}
	if profile == nil {
		return nil
	}
	catalog, err := profile.Catalog()
	if err != nil {
		return err
	}
	r.catalog = catalog
	r.logger.Info("device profile loaded", "profile", profile.Name, "sensors", catalog.Len())
	return nil
}

// setupTest creates the per-test session and grants the test's permissions.
func (r *Runner) setupTest(ctx context.Context, tc *loader.TestCase, state *engine.ExecutionState) error {
	env, err := contract.NewEnv(contract.EnvConfig{
		Catalog:  r.catalog,
		Logger:   r.logger.With("test", tc.ID),
		EventLog: r.config.EventLog,
	})
	if err != nil {
		return err
	}
	env.Grants.Grant(tc.Permissions...)

	state.Custom[customSession] = newSession(env)
	return nil
}

// teardownTest closes the per-test session.
func (r *Runner) teardownTest(ctx context.Context, tc *loader.TestCase, state *engine.ExecutionState) {
	sess, ok := state.Custom[customSession].(*session)
	if !ok {
		return
	}
	if err := sess.close(); err != nil {
		r.logger.Warn("test teardown failed", "test", tc.ID, "error", err)
	}
	delete(state.Custom, customSession)
}
