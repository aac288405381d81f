package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateCutting   State = "cutting"
	StateDraining  State = "draining"
	StateError     State = "error"
)

const (
	EventBegin   Event = "begin"
	EventCut     Event = "cut"
	EventResume  Event = "resume"
	EventEnd     Event = "end"
	EventDrained Event = "drained"
	EventFail    Event = "fail"
	EventReset   Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventBegin:
			return StateCapturing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCapturing:
		switch event {
		case EventCut:
			return StateCutting, nil
		case EventEnd:
			return StateDraining, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCutting:
		switch event {
		case EventResume:
			return StateCapturing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDraining:
		switch event {
		case EventDrained:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a capture session currently owns a track.
func Active(state State) bool {
	return state == StateCapturing || state == StateCutting || state == StateDraining
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
