package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	// Key scopes retention: retained events replace the previous event
	// with the same Kind and Key. Usually an account id.
	Key     string
	Retain  bool
	Payload any
}

// New event with the current time.
func NewEvent(kind, key string, payload any) Event {
	return Event{Kind: kind, Key: key, Timestamp: time.Now(), Payload: payload}
}

// Retained returns the event marked for replay to late subscribers.
func (e Event) Retained() Event {
	e.Retain = true
	return e
}
