package comms

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
)

// Group is an in-process rank group: each member runs on its own goroutine
// and the members coordinate through Broadcast the way a process group would.
//
// The payload crosses rank boundaries through a gob encode/decode round trip,
// so every rank ends up with an independent deep copy -- the same value
// semantics as a real inter-process broadcast, and the same requirement that
// payloads be gob-encodable.
type Group struct {
	rank    int
	inboxes []chan []byte
}

var _ Communicator = (*Group)(nil)

// NewGroup creates a group of size members and returns one Communicator per
// rank. Each member must be used from its own goroutine.
func NewGroup(size int) []*Group {
	if size < 1 {
		size = 1
	}
	inboxes := make([]chan []byte, size)
	for i := range inboxes {
		inboxes[i] = make(chan []byte)
	}
	members := make([]*Group, size)
	for rank := range members {
		members[rank] = &Group{rank: rank, inboxes: inboxes}
	}
	return members
}

// Rank implements Communicator.
func (g *Group) Rank() int { return g.rank }

// Size implements Communicator.
func (g *Group) Size() int { return len(g.inboxes) }

// Broadcast implements Communicator. The root encodes v and blocks until
// every other rank has received its copy; other ranks block until their copy
// arrives and decode it into v.
func (g *Group) Broadcast(root int, v any) error {
	if root < 0 || root >= len(g.inboxes) {
		return errors.Errorf("invalid broadcast root %d for a group of %d", root, len(g.inboxes))
	}
	if g.rank != root {
		payload := <-g.inboxes[g.rank]
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
			return errors.Wrapf(err, "rank %d failed to decode broadcast from root %d", g.rank, root)
		}
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return errors.Wrapf(err, "root %d failed to encode broadcast payload %T", root, v)
	}
	payload := buf.Bytes()
	// Inbox channels are unbuffered: each send completes only when the peer
	// rank receives, so returning from here is the barrier.
	for rank := range g.inboxes {
		if rank == root {
			continue
		}
		g.inboxes[rank] <- payload
	}
	return nil
}
