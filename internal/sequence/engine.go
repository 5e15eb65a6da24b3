package sequence

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/qms/internal/model"
)

// Allocation is the engine's answer for one new ticket.
type Allocation struct {
	Sequence    int
	DisplayText string
	Order       string
	// Previous is the occupied placement slot a priority ticket was pushed
	// past, 0 when the ticket sits in its own slot.
	Previous int
	// Slot is the raw placement result (0 for normal tickets).
	Slot int
}

// Engine allocates sequences for one set of settings.
type Engine struct {
	settings Settings
}

// New returns an engine using s.
func New(s Settings) *Engine {
	return &Engine{settings: s}
}

// Settings returns the engine's settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Allocate computes the allocation for a ticket of the given priority, given
// every ticket already issued for the same queue and day (cancelled included).
func (e *Engine) Allocate(existing []model.Ticket, priority int, variant Variant) (Allocation, error) {
	next := NextSequence(existing)
	if priority <= model.PriorityNormal {
		text := e.pad(next)
		return Allocation{Sequence: next, DisplayText: text, Order: text}, nil
	}

	var (
		slot int
		err  error
	)
	switch variant {
	case ExamVisit:
		slot, err = e.examVisitSlot(existing)
	default:
		slot = e.standardSlot(existing)
	}
	if err != nil {
		return Allocation{}, err
	}

	alloc := Allocation{Slot: slot}
	if slot > 0 && !sequenceUsed(existing, slot) {
		alloc.Sequence = slot
	} else {
		alloc.Sequence = next
		alloc.Previous = slot
	}
	alloc.DisplayText = e.DisplayText(alloc.Sequence, priority)
	alloc.Order = e.PriorityOrder(existing, alloc.Sequence)

	slog.Debug("priority placement",
		"variant", variant.String(),
		"slot", slot,
		"sequence", alloc.Sequence,
		"previous", alloc.Previous,
		"order", alloc.Order)
	return alloc, nil
}

// NextSequence returns max(sequence)+1 over existing, or 1 when empty.
func NextSequence(existing []model.Ticket) int {
	return summarize(existing).current + 1
}

// DisplayText formats sequence for display, adding the priority marker when
// priority > 0 and a prefix or suffix position is enabled.
func (e *Engine) DisplayText(sequence, priority int) string {
	text := e.pad(sequence)
	if priority <= model.PriorityNormal || e.settings.PriorityMarker == "" {
		return text
	}
	switch {
	case e.settings.PriorityPrefix:
		return e.settings.PriorityMarker + text
	case e.settings.PrioritySuffix:
		return text + e.settings.PriorityMarker
	}
	return text
}

func (e *Engine) pad(n int) string {
	s := strconv.Itoa(n)
	if w := e.settings.DigitWidth; len(s) < w {
		s = strings.Repeat("0", w-len(s)) + s
	}
	return s
}

// summary captures the reference sequences used by both placement variants.
type summary struct {
	calling      int // highest sequence in Serving
	lastPriority int // highest priority sequence
	current      int // highest sequence
	lastNormal   int // highest normal sequence
	lastDone     int // highest Done sequence
}

func summarize(existing []model.Ticket) summary {
	var s summary
	for _, t := range existing {
		seq := t.Sequence
		s.current = max(s.current, seq)
		if t.IsPriority() {
			s.lastPriority = max(s.lastPriority, seq)
		} else {
			s.lastNormal = max(s.lastNormal, seq)
		}
		switch t.State {
		case model.StateServing:
			s.calling = max(s.calling, seq)
		case model.StateDone:
			s.lastDone = max(s.lastDone, seq)
		}
	}
	return s
}

func sequenceUsed(existing []model.Ticket, seq int) bool {
	return slices.ContainsFunc(existing, func(t model.Ticket) bool { return t.Sequence == seq })
}

// standardSlot implements the bounded-displacement rule.
func (e *Engine) standardSlot(existing []model.Ticket) int {
	if len(existing) == 0 {
		return 1
	}
	k := e.settings.DisplacementLimit
	s := summarize(existing)

	if s.lastPriority == 0 {
		if s.lastNormal < k+1 {
			return s.lastNormal + 1
		}
		if s.calling == 0 {
			return k + 1
		}
		return clampWindow(s.calling+k+1, s.current)
	}

	window := s.lastPriority + k + 1
	if window >= s.current {
		return clampWindow(window, s.current)
	}
	// The last priority window already lies behind the tail: re-anchor on
	// the serving ticket if it has moved past the last priority ticket.
	if s.calling > s.lastPriority {
		if s.calling+k+1 >= s.current {
			return s.current + 1
		}
		return s.calling + k + 1
	}
	return window
}

// clampWindow compares a displacement window end against the current tail.
func clampWindow(window, current int) int {
	switch {
	case window == current:
		return current
	case window > current:
		return current + 1
	default:
		return window
	}
}

// examVisitSlot implements the K+1-spaced slot search. The search is bounded
// at current+2*(K+1); running past it means the ticket set is inconsistent.
func (e *Engine) examVisitSlot(existing []model.Ticket) (int, error) {
	s := summarize(existing)
	if len(existing) == 0 || s.current == 0 {
		return 1, nil
	}
	if s.lastPriority != 0 && s.lastNormal == 0 {
		return s.lastPriority + 1, nil
	}
	calling := s.calling
	if calling == 0 {
		calling = s.lastDone
	}

	k := e.settings.DisplacementLimit
	used := make(map[int]struct{}, len(existing))
	for _, t := range existing {
		used[t.Sequence] = struct{}{}
	}
	limit := s.current + 2*(k+1)
	for i := 1; ; i++ {
		pos := s.lastPriority + k*i + i
		if pos > limit {
			break
		}
		if _, taken := used[pos]; taken || pos <= calling {
			continue
		}
		if s.current > pos {
			return pos, nil
		}
		return s.current + 1, nil
	}
	return 0, model.Conflict("allocate sequence",
		fmt.Sprintf("no free exam-visit slot up to %d (current %d, calling %d)", limit, s.current, calling), nil)
}
