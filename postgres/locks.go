package postgres

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// LockKey folds a uuid into the int32 slot of the two-argument
// pg_advisory_xact_lock. The first argument is the auction.LockDomain, so
// keys only ever collide within one domain, where a collision merely
// over-serializes and never deadlocks: every operation holds at most one
// advisory lock.
func LockKey(id uuid.UUID) int32 {
	h := fnv.New32a()
	h.Write(id[:])
	return int32(h.Sum32())
}
