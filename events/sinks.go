package events

import (
	"log/slog"
	"sync"

	"github.com/ruteri/peer-name-service/interfaces"
)

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []interfaces.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends ev.
func (r *Recorder) Emit(ev interfaces.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []interfaces.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interfaces.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink logging at info level. A nil logger means slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{log: logger}
}

func (s *LogSink) Emit(ev interfaces.Event) {
	s.log.Info("Registry event",
		slog.String("kind", string(ev.Kind())),
		slog.String("node", ev.Node().String()),
		slog.Any("event", ev))
}

// MultiSink forwards each event to every sink in order.
type MultiSink []interfaces.EventSink

func (m MultiSink) Emit(ev interfaces.Event) {
	for _, sink := range m {
		sink.Emit(ev)
	}
}

// Combine returns a sink forwarding to every non-nil sink.
func Combine(sinks ...interfaces.EventSink) interfaces.EventSink {
	var out MultiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
