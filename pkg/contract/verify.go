package contract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// DefaultPropertyTimeout bounds a single property check.
const DefaultPropertyTimeout = 5 * time.Second

// Result is the outcome of one property.
type Result struct {
	Property Property
	Err      error
	Duration time.Duration
}

// Passed reports whether the property held.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Report is the outcome of a Verify run.
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Passed returns the number of properties that held.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed() {
			n++
		}
	}
	return n
}

// Failed returns the number of violated properties.
func (r Report) Failed() int {
	return len(r.Results) - r.Passed()
}

// OK reports whether every property held.
func (r Report) OK() bool {
	return r.Failed() == 0
}

// Err combines the violations into one error, or returns nil.
func (r Report) Err() error {
	var errs error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.Property.ID, res.Err))
		}
	}
	return errs
}

// Verify checks every property, each against a fresh Env from factory.
func Verify(ctx context.Context, factory Factory) Report {
	return VerifyProperties(ctx, factory, Properties())
}

// VerifyProperties checks props in order. A cancelled ctx fails the
// remaining properties without running them.
func VerifyProperties(ctx context.Context, factory Factory, props []Property) Report {
	start := time.Now()
	report := Report{Results: make([]Result, 0, len(props))}
	for _, p := range props {
		report.Results = append(report.Results, verifyOne(ctx, factory, p))
	}
	report.Duration = time.Since(start)
	return report
}

func verifyOne(ctx context.Context, factory Factory, p Property) (res Result) {
	res.Property = p
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	env, err := factory()
	if err != nil {
		res.Err = fmt.Errorf("create env: %w", err)
		return res
	}
	defer func() {
		res.Err = multierr.Append(res.Err, env.Close())
	}()

	ctx, cancel := context.WithTimeout(ctx, DefaultPropertyTimeout)
	defer cancel()
	res.Err = p.Check(ctx, env)
	return res
}
