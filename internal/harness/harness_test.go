package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var facilityPath = filepath.Join("testdata", "scenarios", "hospital.cue")

func scenario(flow ...Step) *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline scenario",
		Facility:    facilityPath,
		Flow:        flow,
	}
}

func TestRun_CreateAndAssign(t *testing.T) {
	s := scenario(
		Step{Invoke: "create_ticket", Args: map[string]any{"queue_id": 1}},
		Step{
			Invoke: "assign_next",
			Args:   map[string]any{"queue_id": 1, "counter_id": 2},
			Expect: &Expect{Case: "assigned", Result: map[string]any{"display_text": "0001", "counter_id": 2}},
		},
		Step{
			Invoke: "assign_next",
			Args:   map[string]any{"queue_id": 1, "counter_id": 1},
			Expect: &Expect{Case: "none"},
		},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
	require.Len(t, result.Trace, 6)
	assert.Equal(t, EventInvocation, result.Trace[0].Type)
	assert.Equal(t, EventCompletion, result.Trace[1].Type)
	assert.Equal(t, "created", result.Trace[1].Case)
	assert.Nil(t, result.Trace[5].Result)
	for i, ev := range result.Trace {
		assert.Equal(t, i+1, ev.Seq)
	}
}

func TestRun_ExpectMismatchIsReported(t *testing.T) {
	s := scenario(Step{
		Invoke: "create_ticket",
		Args:   map[string]any{"queue_id": 1},
		Expect: &Expect{Case: "created", Result: map[string]any{"sequence": 7, "order": "0001"}},
	}, Step{
		Invoke: "create_ticket",
		Args:   map[string]any{"queue_id": 99},
		Expect: &Expect{Case: "created"},
	})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `result field "sequence" = 1, expected 7`)
	assert.Contains(t, result.Errors[1], `expected case "created", got "not_found"`)
}

func TestRun_ErrorCases(t *testing.T) {
	s := scenario(
		Step{Invoke: "create_ticket", Args: map[string]any{}, Expect: &Expect{Case: "invalid_argument"}},
		Step{Invoke: "update_state", Args: map[string]any{"queue_id": 1, "display_text": "0001", "state": "done"}, Expect: &Expect{Case: "not_found"}},
		Step{Invoke: "set_parameter", Args: map[string]any{"code": "DigitWidth", "value": "wide"}, Expect: &Expect{Case: "invalid_argument"}},
		Step{Invoke: "clear_cache", Args: map[string]any{"type": "bogus"}, Expect: &Expect{Case: "invalid_argument"}},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestRun_MalformedArgsAbort(t *testing.T) {
	s := scenario(Step{Invoke: "create_ticket", Args: map[string]any{"queue_id": "one"}})

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `arg "queue_id": expected integer`)
}

func TestRun_FailingSetupAborts(t *testing.T) {
	s := scenario(Step{Invoke: "reload_cache"})
	s.Setup = []Step{{Invoke: "clear_missed", Args: map[string]any{"queue_id": 42}}}

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0] clear_missed")
}

func TestRun_ParametersOverrideFacility(t *testing.T) {
	s := scenario(Step{
		Invoke: "create_ticket",
		Args:   map[string]any{"queue_id": 1},
		Expect: &Expect{Case: "created", Result: map[string]any{"display_text": "01"}},
	})
	s.Parameters = map[string]string{"DigitWidth": "2"}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestRun_ClockAndCacheActions(t *testing.T) {
	s := scenario(
		Step{Invoke: "create_ticket", Args: map[string]any{"queue_id": 2}},
		Step{Invoke: "advance_clock", Args: map[string]any{"by": "90m"}, Expect: &Expect{Case: "ok", Result: map[string]any{"now": "10:30"}}},
		Step{Invoke: "clear_cache", Args: map[string]any{"type": "tickets"}, Expect: &Expect{Case: "ok"}},
		// 1 screen + 2 queues + 3 counters + 2 parameters + 1 ticket
		Step{Invoke: "reload_cache", Expect: &Expect{Case: "ok", Result: map[string]any{"items": 9}}},
	)
	s.Assertions = []Assertion{
		{Type: AssertCacheOrder, QueueID: 2, DisplayTexts: []string{"0001"}},
		{Type: AssertCacheOrder, QueueID: 1},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "%v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "patient_flow.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_MissingFacility(t *testing.T) {
	s := scenario(Step{Invoke: "reload_cache"})
	s.Facility = filepath.Join(t.TempDir(), "missing.cue")

	_, err := Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load facility")
}
