package sequence

import (
	"slices"
	"strings"

	"github.com/roach88/qms/internal/model"
)

// Order suffixes mark how a priority ticket was interleaved.
const (
	suffixFirst    = "a" // no waiting priority ticket yet
	suffixAnchored = "b" // after the last priority ticket's own sequence
	suffixPrevious = "c" // after the last priority ticket's previous slot
	suffixFallback = "d" // no normal ticket left past the previous slot
)

// PriorityOrder derives the order key of a new priority ticket from the
// waiting tickets (Wait or Unset) in existing. It looks at most InsertionStep
// normal tickets past the anchor and sorts the new ticket right after the
// last of them. With no waiting normal ticket, or nothing past the anchor,
// the padded sequence is used.
func (e *Engine) PriorityOrder(existing []model.Ticket, sequence int) string {
	var normals, priorities []model.Ticket
	for _, t := range existing {
		if t.State != model.StateWait && t.State != model.StateUnset {
			continue
		}
		if t.IsPriority() {
			priorities = append(priorities, t)
		} else {
			normals = append(normals, t)
		}
	}
	fallback := e.pad(sequence)
	if len(normals) == 0 {
		return fallback
	}
	slices.SortFunc(normals, func(a, b model.Ticket) int { return a.Sequence - b.Sequence })

	if len(priorities) == 0 {
		return e.afterNormals(normals, 0, suffixFirst, fallback)
	}

	latest := slices.MaxFunc(priorities, func(a, b model.Ticket) int {
		if c := strings.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return a.Sequence - b.Sequence
	})
	if latest.Previous > 0 {
		if order, ok := e.orderAfter(normals, latest.Previous, suffixPrevious); ok {
			return order
		}
		highest := slices.MaxFunc(priorities, func(a, b model.Ticket) int { return a.Sequence - b.Sequence })
		return e.pad(highest.Sequence) + suffixFallback
	}
	return e.afterNormals(normals, latest.Sequence, suffixAnchored, fallback)
}

func (e *Engine) afterNormals(normals []model.Ticket, anchor int, suffix, fallback string) string {
	if order, ok := e.orderAfter(normals, anchor, suffix); ok {
		return order
	}
	return fallback
}

// orderAfter takes up to InsertionStep normals (sorted by sequence) with a
// sequence above anchor and returns the last one's order plus suffix.
func (e *Engine) orderAfter(normals []model.Ticket, anchor int, suffix string) (string, bool) {
	step := max(e.settings.InsertionStep, 1)
	var last *model.Ticket
	taken := 0
	for i := range normals {
		if normals[i].Sequence <= anchor {
			continue
		}
		last = &normals[i]
		taken++
		if taken == step {
			break
		}
	}
	if last == nil {
		return "", false
	}
	return last.Order + suffix, true
}
