package poll

import "github.com/abelbrown/eventfeed/internal/event"

// Status is the discriminant of State.
type Status int

const (
	StatusLoading Status = iota
	StatusEmpty
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusEmpty:
		return "empty"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// State is the view state the presentation layer renders.
// Events is set only for StatusSuccess, Message only for StatusError.
type State struct {
	Status  Status
	Events  []event.Event // newest first; shared, do not modify
	Message string
}

// Loading is the state before the first cycle completes.
func Loading() State { return State{Status: StatusLoading} }

// Empty means a cycle succeeded and nothing has been seen yet.
func Empty() State { return State{Status: StatusEmpty} }

// Success carries the ordered accumulated events.
func Success(events []event.Event) State {
	return State{Status: StatusSuccess, Events: events}
}

// Failed carries a user-facing error message.
func Failed(msg string) State {
	return State{Status: StatusError, Message: msg}
}

// Snapshot is everything the engine publishes at one instant.
type Snapshot struct {
	State        State
	Refreshing   bool   // a cycle is in flight
	Countdown    int    // seconds until the next scheduled cycle
	NextPoll     int    // length of the current countdown, seconds
	ErrorMessage string // last failure message, "" once cleared or after a success
	Total        int    // size of the accumulated set
}
