package dispatch

import (
	"testing"
)

func TestMailbox(t *testing.T) {
	m := NewMailbox()
	if _, ok := m.Poll(); ok {
		t.Fatal("Poll on empty mailbox returned an outcome")
	}
	if _, ok := m.Latest(); ok {
		t.Fatal("Latest on empty mailbox returned an outcome")
	}

	m.Deliver(Outcome{RequestID: 1})
	m.Deliver(Outcome{RequestID: 2})
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}

	o, ok := m.Poll()
	if !ok || o.RequestID != 1 {
		t.Errorf("Poll = %+v, %v; want request 1", o, ok)
	}
	latest, ok := m.Latest()
	if !ok || latest.RequestID != 2 {
		t.Errorf("Latest = %+v, %v; want request 2", latest, ok)
	}
	if o, _ := m.Poll(); o.RequestID != 2 {
		t.Errorf("second Poll = %d", o.RequestID)
	}
	if _, ok := m.Poll(); ok {
		t.Error("mailbox should be drained")
	}
	if latest, ok := m.Latest(); !ok || latest.RequestID != 2 {
		t.Error("Latest should survive draining")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateUnknown:    "unknown",
		StateSubmitted:  "submitted",
		StateRunning:    "running",
		StateCompleted:  "completed",
		StateFailed:     "failed",
		StateSuperseded: "superseded",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
	if StateRunning.Terminal() || !StateFailed.Terminal() {
		t.Error("Terminal() wrong")
	}
}

func TestSinkFunc(t *testing.T) {
	var got RequestID
	var s Sink = SinkFunc(func(o Outcome) { got = o.RequestID })
	s.Deliver(Outcome{RequestID: 7})
	if got != 7 {
		t.Errorf("got %d", got)
	}
}
