package auction

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// outbidThrottle bounds auction:outbid volume per (user, lot) during rapid
// bid wars. State is process-local and best-effort; it is not a correctness
// property.
type outbidThrottle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[throttleKey]time.Time
}

type throttleKey struct {
	userID uuid.UUID
	lotID  uuid.UUID
}

func newOutbidThrottle(window time.Duration) *outbidThrottle {
	return &outbidThrottle{
		window: window,
		last:   make(map[throttleKey]time.Time),
	}
}

// Allow reports whether an outbid notice for (user, lot) may be sent at now,
// recording the send when it is. Stale entries are pruned opportunistically.
func (t *outbidThrottle) Allow(userID, lotID uuid.UUID, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := throttleKey{userID: userID, lotID: lotID}
	if last, ok := t.last[k]; ok && now.Sub(last) < t.window {
		return false
	}
	t.last[k] = now

	if len(t.last) > 4096 {
		for key, ts := range t.last {
			if now.Sub(ts) >= t.window {
				delete(t.last, key)
			}
		}
	}
	return true
}
