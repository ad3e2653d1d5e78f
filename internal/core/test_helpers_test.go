package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gridspace/gridspace-server/internal/store"
)

// fakeDirectory is an in-memory stand-in for the sqlite store.
type fakeDirectory struct {
	mu       sync.Mutex
	spaces   map[string]*store.Space
	messages []*store.Message
	nextID   int64
}

func newFakeDirectory(spaces ...*store.Space) *fakeDirectory {
	d := &fakeDirectory{spaces: make(map[string]*store.Space)}
	for _, sp := range spaces {
		d.spaces[sp.ID] = sp
	}
	return d
}

func (d *fakeDirectory) GetSpaceByID(_ context.Context, id string) (*store.Space, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sp, ok := d.spaces[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sp, nil
}

func (d *fakeDirectory) SaveMessage(_ context.Context, msg *store.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	msg.ID = d.nextID
	msg.CreatedAt = time.Now()
	stored := *msg
	d.messages = append(d.messages, &stored)
	return nil
}

func (d *fakeDirectory) ListRecentMessages(_ context.Context, spaceID string, limit int) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var matched []*store.Message
	for _, msg := range d.messages {
		if msg.SpaceID == spaceID {
			matched = append(matched, msg)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// startTestHub runs a hub over one 10x10 space with scripted spawn points.
func startTestHub(t *testing.T) (*Hub, chan [2]int, *fakeDirectory) {
	t.Helper()

	dir := newFakeDirectory(&store.Space{ID: "s1", Name: "office", Width: 10, Height: 10})
	spawns := make(chan [2]int, 16)

	hub := NewHub(dir, nil, Options{
		Spawn: func(*store.Space) (int, int) {
			at := <-spawns
			return at[0], at[1]
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub, spawns, dir
}

// joinSpace registers a participant and waits for its space-joined event.
func joinSpace(t *testing.T, hub *Hub, spawns chan [2]int, id string, x, y int) (*Participant, *Event) {
	t.Helper()

	p := NewParticipant(id, id)
	hub.RegisterParticipant(p)
	spawns <- [2]int{x, y}
	p.Commands <- &Command{Kind: CommandJoinSpace, Space: "s1"}

	joined := mustEvent(t, p.Events, EventSpaceJoined)
	return p, joined
}

// mustEvent polls a participant's event stream until an event of the wanted
// kind arrives, discarding others.
func mustEvent(t testing.TB, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// refIDs extracts the ids from a roster for set assertions.
func refIDs(refs []Ref) map[string]bool {
	out := make(map[string]bool, len(refs))
	for _, ref := range refs {
		out[ref.ID] = true
	}
	return out
}
