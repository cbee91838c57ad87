package dispatch

import (
	"sync"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// State is where a request is in its lifecycle.
type State int

const (
	StateUnknown State = iota
	StateSubmitted
	StateRunning
	StateCompleted
	StateFailed
	StateSuperseded
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateSuperseded
}

// Outcome is what a sink receives: a result or a typed error, never both.
type Outcome struct {
	RequestID RequestID
	Source    string
	Result    recognition.Result
	Err       error
}

// OK reports whether the outcome carries a result.
func (o Outcome) OK() bool { return o.Err == nil }

// Sink receives outcomes. Deliver is called with the coordinator's lock held
// and must not block or call back into the coordinator.
type Sink interface {
	Deliver(Outcome)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Outcome)

func (f SinkFunc) Deliver(o Outcome) { f(o) }

// Mailbox is a Sink the interactive side drains by polling.
type Mailbox struct {
	mu     sync.Mutex
	queue  []Outcome
	latest Outcome
	has    bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

func (m *Mailbox) Deliver(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, o)
	m.latest = o
	m.has = true
}

// Poll removes and returns the oldest undelivered outcome without blocking.
func (m *Mailbox) Poll() (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Outcome{}, false
	}
	o := m.queue[0]
	m.queue[0] = Outcome{}
	m.queue = m.queue[1:]
	return o, true
}

// Latest returns the most recent outcome ever delivered, polled or not.
func (m *Mailbox) Latest() (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.has
}

// Len is the number of outcomes waiting to be polled.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
