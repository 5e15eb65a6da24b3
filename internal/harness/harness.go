package harness

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/facility"
	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
	"github.com/roach88/qms/internal/testutil"
	"github.com/roach88/qms/internal/workflow"
)

// runner holds the live system a scenario drives.
type runner struct {
	store *store.Store
	cache *cache.Cache
	svc   *workflow.Service
	clock *testutil.FakeClock
}

// Run executes a scenario on a fresh SQLite file seeded from its facility.
//
// An error is returned only when the scenario cannot run at all (bad
// facility, failing setup step, malformed args). Failed expectations and
// assertions are reported in Result.Errors.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	start, err := s.startTime()
	if err != nil {
		return nil, err
	}
	def, err := facility.Load(s.Facility)
	if err != nil {
		return nil, fmt.Errorf("load facility: %w", err)
	}
	if len(s.Parameters) > 0 {
		if def.Parameters == nil {
			def.Parameters = map[string]string{}
		}
		maps.Copy(def.Parameters, s.Parameters)
	}

	dir, err := os.MkdirTemp("", "qms-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "qms.db"))
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer st.Close()

	if _, err := facility.Seed(ctx, st, def); err != nil {
		return nil, fmt.Errorf("seed facility: %w", err)
	}

	clock := testutil.NewFakeClock(start)
	c := cache.New(st, clock)
	if err := c.Init(ctx); err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	defer c.Shutdown()

	r := &runner{
		store: st,
		cache: c,
		svc:   workflow.New(st, c, clock, testutil.NewSequentialIDs("ticket"), workflow.Options{}),
		clock: clock,
	}

	result := NewResult()
	for i, step := range s.Setup {
		out, err := r.step(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Invoke, err)
		}
		if out.err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Invoke, out.err)
		}
	}
	for i, step := range s.Flow {
		out, err := r.step(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
		if step.Expect != nil {
			for _, msg := range checkExpect(*step.Expect, out) {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
			}
		}
	}

	for _, msg := range evaluateAssertions(ctx, result, s.Assertions, r) {
		result.AddError(msg)
	}
	slog.Debug("scenario finished", "scenario", s.Name, "pass", result.Pass, "events", len(result.Trace))
	return result, nil
}

// step traces and executes one action.
func (r *runner) step(ctx context.Context, step Step, result *Result) (outcome, error) {
	fn, ok := actions[step.Invoke]
	if !ok {
		return outcome{}, fmt.Errorf("unknown action %q", step.Invoke)
	}
	args := normalizeMap(step.Args)
	result.addInvocation(step.Invoke, args)

	a := &argReader{args: args}
	out, err := fn(ctx, r, a)
	if a.err != nil {
		return outcome{}, a.err
	}
	if err != nil {
		out = outcome{Case: errorCase(err), err: err}
	}
	result.addCompletion(step.Invoke, out)
	return out, nil
}

// errorCase names a completion after the error's kind.
func errorCase(err error) string {
	if kind := model.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

func checkExpect(want Expect, got outcome) []string {
	if want.Case != got.Case {
		msg := fmt.Sprintf("expected case %q, got %q", want.Case, got.Case)
		if got.err != nil {
			msg += ": " + got.err.Error()
		}
		return []string{msg}
	}
	var errs []string
	for _, key := range sortedKeys(want.Result) {
		actual, ok := got.Result[key]
		if !ok {
			errs = append(errs, fmt.Sprintf("result field %q missing", key))
			continue
		}
		if !valuesEqual(actual, normalize(want.Result[key])) {
			errs = append(errs, fmt.Sprintf("result field %q = %v, expected %v", key, actual, want.Result[key]))
		}
	}
	return errs
}
