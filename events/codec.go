// Package events provides sinks, serialization and fan-out for registry events.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ruteri/peer-name-service/interfaces"
)

// ErrUnknownKind is returned when decoding an envelope with an unrecognized kind.
var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the persisted and streamed representation of an event.
type Envelope struct {
	Seq  int64                `json:"seq,omitempty"`
	Kind interfaces.EventKind `json:"kind"`
	Data json.RawMessage      `json:"data"`
}

// Wrap encodes ev into an envelope carrying seq.
func Wrap(seq int64, ev interfaces.Event) (*Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", ev.Kind(), err)
	}
	return &Envelope{Seq: seq, Kind: ev.Kind(), Data: data}, nil
}

// Event decodes the payload into its concrete event type.
func (e *Envelope) Event() (interfaces.Event, error) {
	return Decode(e.Kind, e.Data)
}

// Decode parses data as an event of the given kind.
func Decode(kind interfaces.EventKind, data []byte) (interfaces.Event, error) {
	switch kind {
	case interfaces.KindRegistered:
		return decodeAs[interfaces.Registered](data)
	case interfaces.KindResolverChanged:
		return decodeAs[interfaces.ResolverChanged](data)
	case interfaces.KindTransferred:
		return decodeAs[interfaces.Transferred](data)
	case interfaces.KindManagerChanged:
		return decodeAs[interfaces.ManagerChanged](data)
	case interfaces.KindRenounced:
		return decodeAs[interfaces.Renounced](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodeAs[T interfaces.Event](data []byte) (interfaces.Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", ev.Kind(), err)
	}
	return ev, nil
}
