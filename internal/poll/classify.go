package poll

import (
	"errors"

	"github.com/abelbrown/eventfeed/internal/fetch"
)

// Message turns a failed cycle's error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, fetch.ErrTransport):
		return "Network error: " + err.Error()
	case errors.Is(err, fetch.ErrProtocol):
		return "API error: " + err.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}
