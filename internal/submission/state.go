package submission

import "fmt"

// State is a step of the submission form.
type State int

const (
	EnteringCode State = iota
	EnteringDemo
	ResolvingImports
	ResolvingInternalDeps
	EnteringDetails
	Submitting
	Succeeded
	Failed
)

var stateNames = [...]string{
	EnteringCode:          "entering_code",
	EnteringDemo:          "entering_demo",
	ResolvingImports:      "resolving_imports",
	ResolvingInternalDeps: "resolving_internal_deps",
	EnteringDetails:       "entering_details",
	Submitting:            "submitting",
	Succeeded:             "succeeded",
	Failed:                "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("submission: unknown state %q", text)
}

// PreviewReady reports whether the state is at or past the point where a
// preview can be assembled.
func (s State) PreviewReady() bool {
	return s >= EnteringDetails
}

// phase is the part of the state that derivation cannot compute from the
// inputs: whether a submit is running or how the last one ended.
type phase int

const (
	phaseEditing phase = iota
	phaseSubmitting
	phaseSucceeded
	phaseFailed
)
