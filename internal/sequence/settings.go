package sequence

import "github.com/roach88/qms/internal/params"

// Variant selects the priority placement rule.
type Variant int

const (
	// Standard bounds displacement relative to the serving or last priority ticket.
	Standard Variant = iota
	// ExamVisit searches K+1-spaced slots around already served visits.
	ExamVisit
)

func (v Variant) String() string {
	switch v {
	case Standard:
		return "standard"
	case ExamVisit:
		return "exam-visit"
	default:
		return "unknown"
	}
}

// Settings are the parameters the engine reads.
type Settings struct {
	DisplacementLimit int
	DigitWidth        int
	InsertionStep     int
	PriorityMarker    string
	PriorityPrefix    bool
	PrioritySuffix    bool
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		DisplacementLimit: params.DefaultDisplacementLimit,
		DigitWidth:        params.DefaultDigitWidth,
		InsertionStep:     params.DefaultInsertionStep,
		PriorityMarker:    params.DefaultPriorityMarker,
	}
}

// SettingsFrom reads Settings through r, applying defaults for anything
// missing or malformed. Negative limits are clamped to zero and a width
// below one falls back to the default.
func SettingsFrom(r *params.Reader) Settings {
	s := Settings{
		DisplacementLimit: r.Int(params.DisplacementLimit, params.DefaultDisplacementLimit),
		DigitWidth:        r.Int(params.DigitWidth, params.DefaultDigitWidth),
		InsertionStep:     r.Int(params.InsertionStep, params.DefaultInsertionStep),
		PriorityMarker:    r.String(params.PriorityMarker, params.DefaultPriorityMarker),
		PriorityPrefix:    r.Bool(params.PriorityPrefix, false),
		PrioritySuffix:    r.Bool(params.PrioritySuffix, false),
	}
	if s.DisplacementLimit < 0 {
		s.DisplacementLimit = 0
	}
	if s.DigitWidth < 1 {
		s.DigitWidth = params.DefaultDigitWidth
	}
	if s.InsertionStep < 1 {
		s.InsertionStep = 1
	}
	return s
}
