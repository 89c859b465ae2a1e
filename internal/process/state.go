package process

import "time"

// Kind discriminates the two top-level variants of State. Every switch over
// Kind in this package is written to panic on an unhandled value instead of
// falling through a default branch, so a future third variant fails loudly
// at the first untouched call site rather than silently behaving like one
// of the existing two.
type Kind int

const (
	KindStopped Kind = iota
	KindRunning
)

// Reason discriminates the terminal/waiting variants of a Stopped state.
type Reason int

const (
	// ReasonNever is the state of a Process that has not yet had spawn()
	// called on it. A Job never keeps one of these around after start(),
	// since start() spawns immediately, but it is the zero value.
	ReasonNever Reason = iota
	ReasonExited
	ReasonUnexpected
	ReasonFatal
	ReasonBackoff
	ReasonStopped
)

func (r Reason) label() string {
	switch r {
	case ReasonNever, ReasonStopped:
		return "STOPPED"
	case ReasonExited:
		return "EXITED"
	case ReasonUnexpected:
		return "UNEXPECTED"
	case ReasonFatal:
		return "FATAL"
	case ReasonBackoff:
		return "BACKOFF"
	default:
		panic("process: unhandled Reason in label()")
	}
}

// Phase discriminates the sub-states of a Running Process.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseUp
	PhaseStopping
)

// State is a flattened tagged union. Kind selects which of the remaining
// fields are meaningful:
//
//	KindStopped, Reason == ReasonBackoff: Tries, Since are meaningful.
//	KindStopped, any other Reason:        no other field is meaningful.
//	KindRunning:                          PID, Phase, PhaseSince are always
//	                                      meaningful; Tries is meaningful
//	                                      only while Phase == PhaseStarting;
//	                                      RestartAfter only while Phase ==
//	                                      PhaseStopping.
type State struct {
	Kind Kind

	Reason Reason
	Tries  int
	Since  time.Time

	PID          int
	Phase        Phase
	PhaseSince   time.Time
	RestartAfter bool
}

// Label renders the status word a client sees in a `status` reply.
func (s State) Label() string {
	switch s.Kind {
	case KindStopped:
		return s.Reason.label()
	case KindRunning:
		switch s.Phase {
		case PhaseStarting:
			return "STARTING"
		case PhaseUp:
			return "RUNNING"
		case PhaseStopping:
			return "STOPPING"
		default:
			panic("process: unhandled Phase in Label()")
		}
	default:
		panic("process: unhandled Kind in Label()")
	}
}

// IsRunning reports whether the Process currently has a live child, in any
// of the Running sub-phases.
func (s State) IsRunning() bool {
	return s.Kind == KindRunning
}
