// Package comms provides the minimal collective-communication surface the
// emulator engines need: a process-group abstraction with a rank, a size and
// a broadcast.
//
// One designated coordinator rank performs the expensive fit; the broadcast
// is the single synchronization point through which every other rank receives
// the finished, immutable state. Nothing here is best-effort: a broadcast
// either delivers the identical value to every rank or fails.
package comms

import (
	"github.com/pkg/errors"
)

// Communicator is the rank/broadcast contract. Rank 0 is conventionally the
// coordinator.
//
// Broadcast must be called by every rank of the group with the same root.
// v must be a pointer: on the root it is the value sent, on every other rank
// it is overwritten with the root's value. Broadcast returns only after every
// rank holds its copy (barrier semantics).
type Communicator interface {
	Rank() int
	Size() int
	Broadcast(root int, v any) error
}

// Serial is the single-process Communicator: rank 0 of a group of one, with a
// no-op broadcast. It is the default for engines created without an explicit
// group.
type Serial struct{}

var _ Communicator = Serial{}

// Rank implements Communicator.
func (Serial) Rank() int { return 0 }

// Size implements Communicator.
func (Serial) Size() int { return 1 }

// Broadcast implements Communicator. The only member is the root, so the
// value is already in place.
func (Serial) Broadcast(root int, v any) error {
	if root != 0 {
		return errors.Errorf("invalid broadcast root %d for a serial communicator", root)
	}
	return nil
}
