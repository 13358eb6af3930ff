package howlhouse

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/howlhouse/howlhouse-go/internal/wire"
)

// sentFrame is one outbound frame captured by the test recorder.
type sentFrame struct {
	Op      string
	D       any
	FetchID string
}

// sendRecorder stands in for the transport session so dispatch logic
// can be exercised without a socket.
type sendRecorder struct {
	mu     sync.Mutex
	frames []sentFrame
}

func (r *sendRecorder) send(op string, d any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, sentFrame{Op: op, D: d})
	return nil
}

func (r *sendRecorder) sendFetch(op string, d any, fetchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, sentFrame{Op: op, D: d, FetchID: fetchID})
	return nil
}

func (r *sendRecorder) sent() []sentFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentFrame(nil), r.frames...)
}

// lastFetchID returns the correlation ID of the most recent fetch for
// the given opcode.
func (r *sendRecorder) lastFetchID(t *testing.T, op string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i].Op == op && r.frames[i].FetchID != "" {
			return r.frames[i].FetchID
		}
	}
	t.Fatalf("no fetch sent for op %q", op)
	return ""
}

func newTestClient(t *testing.T) (*Client, *sendRecorder) {
	t.Helper()
	rec := &sendRecorder{}
	c := New("token", "refresh-token")
	c.sendFn = rec.send
	c.sendFetchFn = rec.sendFetch
	return c, rec
}

// makeFrame builds an inbound frame with a marshaled payload.
func makeFrame(t *testing.T, op string, payload any) wire.Frame {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload for %s: %v", op, err)
	}
	return wire.Frame{Op: op, D: raw}
}

func makeFetchFrame(t *testing.T, fetchID string, payload any) wire.Frame {
	t.Helper()
	f := makeFrame(t, wire.OpFetchDone, payload)
	f.FetchID = fetchID
	return f
}

// collect subscribes a handler that forwards events into a channel.
func collect(c *Client, name string) <-chan *Event {
	ch := make(chan *Event, 16)
	c.RegisterEvent(name, func(ctx context.Context, ev *Event) error {
		ch <- ev
		return nil
	})
	return ch
}

func mustEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// joinTestRoom drives the client into a room with the given members
// via real frames.
func joinTestRoom(t *testing.T, c *Client, members ...User) {
	t.Helper()
	ctx := context.Background()
	c.handleFrame(ctx, makeFrame(t, wire.OpAuthGood, map[string]any{
		"user": map[string]any{"id": "self", "username": "howlbot", "displayName": "Howl Bot"},
	}))
	c.handleFrame(ctx, makeFrame(t, wire.OpJoinRoomDone, map[string]any{
		"room": map[string]any{"id": "room-1", "creatorId": "creator", "name": "den"},
	}))
	if len(members) > 0 {
		c.handleFrame(ctx, makeFrame(t, wire.OpCurrentRoomUsersDone, map[string]any{
			"users": members,
		}))
	}
}
