package session

import (
	"context"
	"sync"
)

// Room holds the in-memory state for one live room: the cached document and
// the set of connected peers. The peer set and document cache share mu;
// gate serializes the update+persist sequence of concurrent edits so a
// broadcast for an older edit can never overtake a newer one. Joins and
// leaves deliberately do not take the gate.
//
// ready latches once the initial seeding attempt completes. A join that
// finds the room already resident waits on it, so no peer can observe the
// window between registry insertion and the store load.
type Room struct {
	ID string

	mu       sync.RWMutex
	peers    map[*Client]struct{}
	document string

	gate sync.Mutex

	ready     chan struct{}
	seedErr   error
	readyOnce sync.Once
}

func NewRoom(id string) *Room {
	return &Room{
		ID:    id,
		peers: make(map[*Client]struct{}),
		ready: make(chan struct{}),
	}
}

// MarkReady publishes the outcome of the initial seeding attempt and releases
// every waiter. A non-nil err fails their joins too. Subsequent calls are
// no-ops.
func (r *Room) MarkReady(err error) {
	r.readyOnce.Do(func() {
		r.seedErr = err
		close(r.ready)
	})
}

// WaitReady blocks until the room's seeding attempt has completed and returns
// its outcome.
func (r *Room) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return r.seedErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) AddPeer(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[c] = struct{}{}
}

// RemovePeer detaches c and reports how many peers remain and whether c was
// actually present. Removing a peer that was never added is a no-op.
func (r *Room) RemovePeer(c *Client) (remaining int, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[c]; ok {
		delete(r.peers, c)
		removed = true
	}
	return len(r.peers), removed
}

func (r *Room) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Peers returns a point-in-time snapshot of the peer set. Broadcasts iterate
// the snapshot so peers joining or leaving mid-broadcast never affect it.
func (r *Room) Peers() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.peers))
	for c := range r.peers {
		out = append(out, c)
	}
	return out
}

func (r *Room) Document() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.document
}

// Seed sets the cached document when a cold room is loaded from the store.
func (r *Room) Seed(document string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.document = document
}

// UpdateDocument runs the commit sequence for one edit under the room's
// gate: cache the new text, persist it, then hand the current peer snapshot
// to deliver. Holding the gate through delivery keeps broadcasts in commit
// order; different rooms proceed fully in parallel. The cache keeps the new
// text even when persist fails — only delivery is skipped.
func (r *Room) UpdateDocument(document string, persist func(string) error, deliver func(peers []*Client)) error {
	r.gate.Lock()
	defer r.gate.Unlock()

	r.mu.Lock()
	r.document = document
	r.mu.Unlock()

	if err := persist(document); err != nil {
		return err
	}
	deliver(r.Peers())
	return nil
}
