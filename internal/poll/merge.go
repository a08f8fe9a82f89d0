package poll

import "github.com/abelbrown/eventfeed/internal/event"

// Merge returns a new set holding current overwritten by batch. Events are
// keyed by ID; a later occurrence in batch wins over an earlier one.
// current is not modified.
func Merge(current map[string]event.Event, batch []event.Event) map[string]event.Event {
	out := make(map[string]event.Event, len(current)+len(batch))
	for id, e := range current {
		out[id] = e
	}
	for _, e := range batch {
		out[e.ID] = e
	}
	return out
}

// Ordered returns the set as a slice, newest first.
func Ordered(set map[string]event.Event) []event.Event {
	out := make([]event.Event, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	event.SortNewestFirst(out)
	return out
}
