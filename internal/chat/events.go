package chat

// EventKind names what part of the projection a mutation invalidated.
type EventKind string

const (
	// EventList means chat list rows (ordering, previews, badges) changed.
	EventList EventKind = "list"
	// EventThread means the message thread of Event.ChatID changed.
	EventThread EventKind = "thread"
	// EventIncoming fires once per appended incoming message, carrying it.
	EventIncoming EventKind = "incoming"
	// EventTheme means the theme toggled.
	EventTheme EventKind = "theme"
	// EventOpen means the open-chat state machine transitioned.
	EventOpen EventKind = "open"
)

// Event is the change notification fired synchronously by every store
// mutation. Listeners must not call back into mutating store operations.
type Event struct {
	Kind    EventKind
	ChatID  string
	Message *Message // set for EventIncoming
}

// Listener consumes change notifications.
type Listener func(Event)
