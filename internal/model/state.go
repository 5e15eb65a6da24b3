package model

import (
	"fmt"
	"strconv"
	"strings"
)

// State is the lifecycle state of a ticket. The integer values are the
// persisted representation and must not change.
type State int

const (
	StateCancelled State = -1
	StateServing   State = 0
	StateWait      State = 1
	StateDone      State = 2
	StateMissed    State = 3
	StateRemoved   State = 4
	StateUnset     State = 100
)

var stateNames = map[State]string{
	StateCancelled: "cancelled",
	StateServing:   "serving",
	StateWait:      "wait",
	StateDone:      "done",
	StateMissed:    "missed",
	StateRemoved:   "removed",
	StateUnset:     "unset",
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition has any effect.
// Only Done is terminal; Missed is recoverable through ClearMissed.
func (s State) Terminal() bool {
	return s == StateDone
}

// Open reports whether a ticket in this state still holds the patient's
// place in the queue. A patient with an open ticket is not issued another.
func (s State) Open() bool {
	switch s {
	case StateWait, StateServing, StateMissed, StateUnset:
		return true
	}
	return false
}

// OpenStates lists the states for which State.Open is true.
var OpenStates = []State{StateWait, StateServing, StateMissed, StateUnset}

// ParseState accepts either a state name ("wait", "Serving") or its
// persisted integer value ("1", "-1").
func ParseState(s string) (State, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		st := State(n)
		if !st.Valid() {
			return 0, InvalidArgument("parse state", fmt.Sprintf("unknown state %d", n))
		}
		return st, nil
	}
	lower := strings.ToLower(s)
	for st, name := range stateNames {
		if name == lower {
			return st, nil
		}
	}
	return 0, InvalidArgument("parse state", fmt.Sprintf("unknown state %q", s))
}
