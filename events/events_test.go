package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ruteri/peer-name-service/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNode  = interfaces.Node{0x01, 0x02}
	testAlice = interfaces.Identity{0xaa}
	testBob   = interfaces.Identity{0xbb}
)

func TestEnvelope_RoundTripAllKinds(t *testing.T) {
	evs := []interfaces.Event{
		interfaces.Registered{NodeID: testNode, Owner: testAlice},
		interfaces.ResolverChanged{NodeID: testNode, Resolver: testBob},
		interfaces.Transferred{NodeID: testNode, NewOwner: testBob},
		interfaces.ManagerChanged{OldManager: testAlice, NewManager: testBob},
		interfaces.Renounced{NodeID: testNode, By: testAlice, ResolverCleared: true},
	}

	for i, ev := range evs {
		t.Run(string(ev.Kind()), func(t *testing.T) {
			env, err := Wrap(int64(i+1), ev)
			require.NoError(t, err)

			raw, err := json.Marshal(env)
			require.NoError(t, err)

			var decoded Envelope
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, int64(i+1), decoded.Seq)

			got, err := decoded.Event()
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode("bogus", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode(interfaces.KindTransferred, []byte(`{"node":"not-hex"}`))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Emit(interfaces.Transferred{NodeID: testNode, NewOwner: testAlice})
	r.Emit(interfaces.Registered{NodeID: testNode, Owner: testAlice})

	got := r.Events()
	require.Len(t, got, 2)
	assert.Equal(t, interfaces.KindTransferred, got[0].Kind())
	assert.Equal(t, interfaces.KindRegistered, got[1].Kind())

	r.Reset()
	assert.Empty(t, r.Events())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Emit(interfaces.Renounced{NodeID: testNode, By: testAlice})

	assert.Contains(t, buf.String(), "kind=renounced")
	assert.Contains(t, buf.String(), testNode.String())
}

func TestCombine(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := Combine(a, nil, b)

	sink.Emit(interfaces.ResolverChanged{NodeID: testNode, Resolver: testBob})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)

	single := Combine(nil, a)
	assert.Same(t, a, single)
}

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Emit(interfaces.Transferred{NodeID: testNode, NewOwner: testAlice})
	broker.Emit(interfaces.Registered{NodeID: testNode, Owner: testAlice})

	for _, want := range []int64{1, 2} {
		select {
		case msg := <-ch:
			require.Equal(t, want, msg.Seq)
			require.False(t, msg.Timestamp.IsZero())
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event")
		}
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_DropsWhenFull(t *testing.T) {
	broker := NewBrokerWithBuffer(1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	broker.Emit(interfaces.Transferred{NodeID: testNode, NewOwner: testAlice})
	broker.Emit(interfaces.Transferred{NodeID: testNode, NewOwner: testBob})

	msg := <-ch
	assert.Equal(t, int64(1), msg.Seq)

	select {
	case <-ch:
		require.Fail(t, "second event should have been dropped")
	default:
	}

	broker.Emit(interfaces.Transferred{NodeID: testNode, NewOwner: testAlice})
	msg = <-ch
	assert.Equal(t, int64(3), msg.Seq, "gap in sequence exposes the drop")
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late := broker.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)

	broker.Emit(interfaces.Transferred{})
}

