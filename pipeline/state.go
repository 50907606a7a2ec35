package pipeline

import (
	"github.com/teranos/protoreg/errors"
)

// State is the lifecycle position of one stage.
type State int

const (
	NotStarted State = iota
	LocatingDescriptor
	Invoking
	Completed
	Failed
	// Skipped marks a stage that never started because an earlier stage failed
	Skipped
	// UpToDate marks a stage whose inputs and output match its last stamp
	UpToDate
)

var stateNames = map[State]string{
	NotStarted:         "not_started",
	LocatingDescriptor: "locating_descriptor",
	Invoking:           "invoking",
	Completed:          "completed",
	Failed:             "failed",
	Skipped:            "skipped",
	UpToDate:           "up_to_date",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state name in json and yaml reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	switch s {
	case Completed, Failed, Skipped, UpToDate:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the state satisfies dependents.
func (s State) IsSuccessful() bool {
	return s == Completed || s == UpToDate
}

// allowed lists the legal transitions out of each state.
var allowed = map[State][]State{
	NotStarted:         {LocatingDescriptor, Skipped},
	LocatingDescriptor: {Invoking, UpToDate, Failed},
	Invoking:           {Completed, Failed},
}

// transition moves *cur to next, refusing anything the lifecycle forbids.
func transition(stage string, cur *State, next State) error {
	for _, s := range allowed[*cur] {
		if s == next {
			*cur = next
			return nil
		}
	}
	return errors.AssertionFailedf("illegal transition for stage %q: %s -> %s", stage, *cur, next)
}
