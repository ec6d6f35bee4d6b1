// Package sync orchestrates one mailbox synchronization run: fetch,
// deduplicate, classify, persist, in batches, reporting progress over a
// blocking event stream.
package sync

// EventKind identifies a phase of a sync run.
type EventKind string

const (
	// EventConnecting is emitted once, before dialing the mailbox.
	EventConnecting EventKind = "connecting"

	// EventFetching is emitted once, after the unseen message set is
	// known; Total carries the number of messages that will be synced.
	EventFetching EventKind = "fetching"

	// EventProgress is emitted after each persisted message; Count
	// carries the running total.
	EventProgress EventKind = "progress"

	// EventCompleted is the terminal event of a successful run.
	EventCompleted EventKind = "completed"

	// EventFailed is the terminal event of a failed run; Err carries
	// the cause.
	EventFailed EventKind = "failed"
)

// Event is one progress notification. Sends block until the consumer
// receives, so a slow consumer paces the run rather than losing events.
// Every run emits exactly one terminal event (completed or failed) and
// then the channel closes.
type Event struct {
	Kind    EventKind
	Message string

	// Total is the number of messages the run will sync. Set from
	// the fetching event onward.
	Total int

	// Count is the number of messages persisted so far.
	Count int

	// Subject is the subject of the message just persisted, set on
	// progress events.
	Subject string

	// Err is the terminal failure cause, set only on failed events.
	Err error
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventFailed
}
