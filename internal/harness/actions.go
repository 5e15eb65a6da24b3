package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/workflow"
)

// outcome is the completion of one action.
type outcome struct {
	Case   string
	Result map[string]any
	err    error
}

type actionFunc func(ctx context.Context, r *runner, a *argReader) (outcome, error)

var actions = map[string]actionFunc{
	"create_ticket":           createTicket,
	"create_reception_ticket": createReceptionTicket,
	"assign_next":             assignNext,
	"update_state":            updateState,
	"update_state_by_patient": updateStateByPatient,
	"clear_missed":            clearMissed,
	"move_ticket":             moveTicket,
	"set_parameter":           setParameter,
	"reload_cache":            reloadCache,
	"clear_cache":             clearCache,
	"advance_clock":           advanceClock,
}

func createTicket(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	req := workflow.CreateRequest{
		DepartmentID: a.int64("department_id"),
		QueueID:      a.int64("queue_id"),
		Priority:     a.int("priority"),
		PatientCode:  a.string("patient_code"),
		PatientName:  a.string("patient_name"),
		PatientYOB:   a.int("patient_yob"),
		MedOrder:     a.int("med_order"),
		Counter:      a.counter(),
		Remarks:      a.string("remarks"),
	}
	if a.has("state") {
		st := a.state("state")
		req.InitialState = &st
	}
	if day := a.string("day"); day != "" {
		d, err := model.ParseDay(day)
		if err != nil {
			return outcome{}, err
		}
		req.Day = d
	}
	if a.err != nil {
		return outcome{}, nil
	}
	res, err := r.svc.CreateTicket(ctx, req)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Case: res.Outcome.String(), Result: ticketResult(res.Ticket)}, nil
}

func createReceptionTicket(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	q, prio, code := a.int64("queue_id"), a.int("priority"), a.string("patient_code")
	if a.err != nil {
		return outcome{}, nil
	}
	res, err := r.svc.CreateReceptionTicket(ctx, q, prio, code)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Case: res.Outcome.String(), Result: ticketResult(res.Ticket)}, nil
}

func assignNext(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	q := a.int64("queue_id")
	counter := a.counter()
	if counter == nil {
		a.fail("assign_next requires counter_id")
	}
	if a.err != nil {
		return outcome{}, nil
	}
	t, found, err := r.svc.AssignNext(ctx, q, *counter)
	if err != nil {
		return outcome{}, err
	}
	if !found {
		return outcome{Case: "none"}, nil
	}
	return outcome{Case: "assigned", Result: ticketResult(t)}, nil
}

func updateState(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	req := workflow.UpdateStateRequest{
		QueueID:     a.int64("queue_id"),
		DisplayText: a.string("display_text"),
		State:       a.state("state"),
		Counter:     a.counter(),
	}
	if a.has("med_order") {
		mo := a.int("med_order")
		req.MedOrder = &mo
	}
	if a.err != nil {
		return outcome{}, nil
	}
	t, err := r.svc.UpdateState(ctx, req)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Case: "updated", Result: ticketResult(t)}, nil
}

func updateStateByPatient(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	q, code, st := a.int64("queue_id"), a.string("patient_code"), a.state("state")
	counter, recall := a.counter(), a.bool("recall")
	if a.err != nil {
		return outcome{}, nil
	}
	ts, err := r.svc.UpdateStateByPatient(ctx, q, code, st, counter, recall)
	if err != nil {
		return outcome{}, err
	}
	texts := make([]any, len(ts))
	for i, t := range ts {
		texts[i] = t.DisplayText
	}
	return outcome{Case: "updated", Result: map[string]any{
		"count":         int64(len(ts)),
		"display_texts": texts,
	}}, nil
}

func clearMissed(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	q := a.int64("queue_id")
	if a.err != nil {
		return outcome{}, nil
	}
	n, err := r.svc.ClearMissed(ctx, q)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Case: "cleared", Result: map[string]any{"count": int64(n)}}, nil
}

func moveTicket(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	req := workflow.MoveRequest{
		FromQueueID: a.int64("from_queue_id"),
		Order:       a.string("order"),
		ToQueueID:   a.int64("to_queue_id"),
		PatientCode: a.string("patient_code"),
	}
	if a.err != nil {
		return outcome{}, nil
	}
	res, err := r.svc.MoveTicket(ctx, req)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Case: res.Outcome.String(), Result: ticketResult(res.Ticket)}, nil
}

func setParameter(ctx context.Context, r *runner, a *argReader) (outcome, error) {
	code, value := a.string("code"), a.string("value")
	if a.err != nil {
		return outcome{}, nil
	}
	if err := r.svc.SetParameter(ctx, code, value); err != nil {
		return outcome{}, err
	}
	return outcome{Case: "ok"}, nil
}

func reloadCache(ctx context.Context, r *runner, _ *argReader) (outcome, error) {
	res, err := r.svc.ReloadCache(ctx)
	if err != nil {
		return outcome{}, err
	}
	return outcome{Case: "ok", Result: map[string]any{"items": int64(res.Items)}}, nil
}

func clearCache(_ context.Context, r *runner, a *argReader) (outcome, error) {
	raw := a.string("type")
	if a.err != nil {
		return outcome{}, nil
	}
	t, err := model.ParseCacheType(raw)
	if err != nil {
		return outcome{}, err
	}
	if err := r.svc.ClearCacheByType(t); err != nil {
		return outcome{}, err
	}
	return outcome{Case: "ok"}, nil
}

func advanceClock(_ context.Context, r *runner, a *argReader) (outcome, error) {
	d := a.duration("by")
	if a.err != nil {
		return outcome{}, nil
	}
	now := r.clock.Advance(d)
	return outcome{Case: "ok", Result: map[string]any{"now": now.Format("15:04")}}, nil
}

// ticketResult is the traced view of a ticket. Zero links are omitted.
func ticketResult(t model.Ticket) map[string]any {
	m := map[string]any{
		"id":            t.ID,
		"queue_id":      t.QueueID,
		"sequence":      int64(t.Sequence),
		"display_text":  t.DisplayText,
		"order":         t.Order,
		"priority":      int64(t.Priority),
		"state":         t.State.String(),
		"estimate_time": t.EstimateTime.Format("15:04"),
	}
	if t.Previous > 0 {
		m["previous"] = int64(t.Previous)
	}
	if t.PreviousQueueID > 0 {
		m["previous_queue_id"] = t.PreviousQueueID
	}
	if t.CounterID > 0 {
		m["counter_id"] = t.CounterID
	}
	return m
}

// argReader reads typed step arguments, keeping the first error.
type argReader struct {
	args map[string]any
	err  error
}

func (a *argReader) fail(format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf(format, v...)
	}
}

func (a *argReader) has(key string) bool {
	_, ok := a.args[key]
	return ok
}

func (a *argReader) int64(key string) int64 {
	v, ok := a.args[key]
	if !ok {
		return 0
	}
	n, ok := v.(int64)
	if !ok {
		a.fail("arg %q: expected integer, got %T", key, v)
	}
	return n
}

func (a *argReader) int(key string) int {
	return int(a.int64(key))
}

func (a *argReader) string(key string) string {
	v, ok := a.args[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case int64:
		return fmt.Sprint(s)
	case bool:
		return fmt.Sprint(s)
	}
	a.fail("arg %q: expected string, got %T", key, v)
	return ""
}

func (a *argReader) bool(key string) bool {
	v, ok := a.args[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		a.fail("arg %q: expected bool, got %T", key, v)
	}
	return b
}

func (a *argReader) state(key string) model.State {
	if !a.has(key) {
		a.fail("arg %q is required", key)
		return model.StateUnset
	}
	st, err := model.ParseState(a.string(key))
	if err != nil {
		a.fail("arg %q: %v", key, err)
	}
	return st
}

func (a *argReader) duration(key string) time.Duration {
	d, err := time.ParseDuration(a.string(key))
	if err != nil {
		a.fail("arg %q: %v", key, err)
	}
	return d
}

// counter reads counter_id and counter_name; nil when neither is given.
func (a *argReader) counter() *workflow.CounterRef {
	if !a.has("counter_id") && !a.has("counter_name") {
		return nil
	}
	return &workflow.CounterRef{ID: a.int64("counter_id"), Name: a.string("counter_name")}
}
