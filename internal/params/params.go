// Package params provides typed, defaulting access to named facility
// parameters.
//
// Parameters are plain strings keyed by code, stored in the ticket store and
// mirrored by the cache. Consumers read them through a Reader, which never
// fails for a missing or malformed value: it logs and applies the documented
// default instead. LookupInt is the strict variant for administrative paths
// that must reject bad input.
package params

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/qms/internal/model"
)

// Parameter codes understood by the core.
const (
	// DisplacementLimit (K) is the number of normal tickets a priority ticket
	// may be placed ahead of.
	DisplacementLimit = "DisplacementLimit"
	// DigitWidth is the zero-pad width of display text.
	DigitWidth = "DigitWidth"
	// InsertionStep is how many waiting normal tickets the order tie-break
	// looks past when interleaving a priority ticket.
	InsertionStep = "InsertionStep"
	// PriorityMarker is the glyph added to priority display text.
	PriorityMarker = "PriorityMarker"
	// PriorityPrefix puts the marker before the number.
	PriorityPrefix = "PriorityPrefix"
	// PrioritySuffix puts the marker after the number (ignored when PriorityPrefix is set).
	PrioritySuffix = "PrioritySuffix"
	// PreviousLinkFlag switches every creation to the exam-visit placement.
	PreviousLinkFlag = "PreviousLinkFlag"
	// DayStartTime ("H:MM") is the earliest estimated service time of a day.
	DayStartTime = "DayStartTime"
	// DefaultProcessMinutes is the service duration used when no active
	// counter of the queue declares one.
	DefaultProcessMinutes = "DefaultProcessMinutes"
	// ProcessFluctuationMinutes is added to the service duration in the
	// simple estimate.
	ProcessFluctuationMinutes = "ProcessFluctuationMinutes"
	// EstimateByWaitingCount selects waitingCount*duration estimates.
	EstimateByWaitingCount = "EstimateByWaitingCount"
	// RecallShowDisplay lets a recall by patient code reopen Done tickets.
	RecallShowDisplay = "RecallShowDisplay"
)

// Defaults applied when a parameter is absent or malformed.
const (
	DefaultDisplacementLimit  = 5
	DefaultDigitWidth         = 4
	DefaultInsertionStep      = 3
	DefaultPriorityMarker     = "UT"
	DefaultDayStartTime       = "7:30"
	DefaultProcessMinutesVal  = 5
	DefaultFluctuationMinutes = 0
)

// LookupFunc resolves a parameter code. found=false means the code is not
// defined; err is reserved for store failures.
type LookupFunc func(code string) (value string, found bool, err error)

// Chain returns a LookupFunc trying each lookup in order. The first lookup
// that finds a non-empty value wins; errors are returned immediately.
func Chain(lookups ...LookupFunc) LookupFunc {
	return func(code string) (string, bool, error) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			v, ok, err := lookup(code)
			if err != nil {
				return "", false, err
			}
			if ok && v != "" {
				return v, true, nil
			}
		}
		return "", false, nil
	}
}

// MapLookup serves parameters from a fixed map.
func MapLookup(m map[string]string) LookupFunc {
	return func(code string) (string, bool, error) {
		v, ok := m[code]
		return v, ok, nil
	}
}

// Reader provides typed accessors over a LookupFunc.
type Reader struct {
	lookup LookupFunc
}

// NewReader wraps lookup. A nil lookup behaves as an empty parameter set.
func NewReader(lookup LookupFunc) *Reader {
	return &Reader{lookup: lookup}
}

// FromMap is shorthand for NewReader(MapLookup(m)).
func FromMap(m map[string]string) *Reader {
	return NewReader(MapLookup(m))
}

func (r *Reader) raw(code string) (string, bool) {
	if r == nil || r.lookup == nil {
		return "", false
	}
	v, ok, err := r.lookup(code)
	if err != nil {
		slog.Warn("parameter lookup failed, using default", "code", code, "error", err)
		return "", false
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		slog.Debug("parameter not set, using default", "code", code)
		return "", false
	}
	return v, true
}

// String returns the value of code, or def when it is missing.
func (r *Reader) String(code, def string) string {
	if v, ok := r.raw(code); ok {
		return v
	}
	return def
}

// Int returns the value of code as an int, or def when missing or malformed.
func (r *Reader) Int(code string, def int) int {
	v, ok := r.raw(code)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("malformed int parameter, using default", "code", code, "value", v, "default", def)
		return def
	}
	return n
}

// Bool returns the value of code as a bool ("true", "True", "1", …),
// or def when missing or malformed.
func (r *Reader) Bool(code string, def bool) bool {
	v, ok := r.raw(code)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("malformed bool parameter, using default", "code", code, "value", v, "default", def)
		return def
	}
	return b
}

// TimeOfDay returns an "H:MM" parameter as hour and minute, falling back to
// def (also "H:MM") when missing or malformed.
func (r *Reader) TimeOfDay(code, def string) (hour, minute int) {
	if v, ok := r.raw(code); ok {
		if h, m, err := ParseTimeOfDay(v); err == nil {
			return h, m
		}
		slog.Warn("malformed time parameter, using default", "code", code, "value", v, "default", def)
	}
	h, m, err := ParseTimeOfDay(def)
	if err != nil {
		return 0, 0
	}
	return h, m
}

// LookupInt is the strict accessor: it reports whether code is set and
// returns an InvalidArgument error for a value that is not an integer.
func (r *Reader) LookupInt(code string) (int, bool, error) {
	v, ok := r.raw(code)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, model.InvalidArgument("read parameter", fmt.Sprintf("%s=%q is not an integer", code, v))
	}
	return n, true, nil
}

// ParseTimeOfDay parses "H:MM" or "HH:MM".
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, model.InvalidArgument("parse time of day", fmt.Sprintf("%q is not H:MM", s))
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, model.InvalidArgument("parse time of day", fmt.Sprintf("bad hour in %q", s))
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, model.InvalidArgument("parse time of day", fmt.Sprintf("bad minute in %q", s))
	}
	return hour, minute, nil
}
