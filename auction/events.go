package auction

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event published after a transaction commits. The
// transport layer fans events out to clients; delivery here is in-process and
// at-most-once. Ordering relative to commit is the only guarantee; outbid
// notices in particular may reorder relative to the auction:bid they
// reference.
type Event interface {
	EventName() string
}

// LotStarted fires when a lot is created by nominate or auto-nominate.
type LotStarted struct {
	DraftID          uuid.UUID
	Lot              Lot
	ServerTime       time.Time
	IsAutoNomination bool
}

// EventName implements Event.
func (LotStarted) EventName() string { return "auction:lot_started" }

// BidPlaced fires after a max-bid call commits, whether or not the displayed
// price moved.
type BidPlaced struct {
	DraftID    uuid.UUID
	Lot        Lot
	ServerTime time.Time
}

// EventName implements Event.
func (BidPlaced) EventName() string { return "auction:bid" }

// Outbid targets the single user whose leading bid was displaced.
type Outbid struct {
	UserID   uuid.UUID
	LotID    uuid.UUID
	PlayerID uuid.UUID
	NewBid   int64
}

// EventName implements Event.
func (Outbid) EventName() string { return "auction:outbid" }

// NominatorChanged fires when the rotation hands the clock to a new
// nominator. TimeoutSkippedRosterID is set when the change came from an
// auto_skip_nominator timeout.
type NominatorChanged struct {
	DraftID                uuid.UUID
	NominatorRosterID      uuid.UUID
	NominationNumber       int
	NominationDeadline     time.Time
	TimeoutSkippedRosterID *uuid.UUID
}

// EventName implements Event.
func (NominatorChanged) EventName() string { return "auction:nominator_changed" }

// LotSettled fires when a lot reaches a terminal state.
type LotSettled struct {
	DraftID    uuid.UUID
	Lot        Lot
	ServerTime time.Time
}

// EventName implements Event.
func (LotSettled) EventName() string { return "auction:lot_settled" }

// DraftCompletedEvent fires when no roster can nominate any longer.
type DraftCompletedEvent struct {
	DraftID  uuid.UUID
	LeagueID uuid.UUID
}

// EventName implements Event.
func (DraftCompletedEvent) EventName() string { return "draft:completed" }

// DraftPausedEvent fires when an admin pauses the draft.
type DraftPausedEvent struct {
	DraftID uuid.UUID
}

// EventName implements Event.
func (DraftPausedEvent) EventName() string { return "draft:paused" }

// DraftResumedEvent fires when a paused draft resumes.
type DraftResumedEvent struct {
	DraftID uuid.UUID
}

// EventName implements Event.
func (DraftResumedEvent) EventName() string { return "draft:resumed" }

// EventSink receives post-commit events. Subscribers that need durability
// must queue externally.
type EventSink interface {
	Publish(Event)
}

// Bus is a minimal in-process EventSink with channel fan-out. Publish never
// blocks; a subscriber whose channel is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs []chan<- Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a channel to receive every subsequent event. Buffered
// channels are strongly recommended.
func (b *Bus) Subscribe(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
}

// Publish delivers ev to all subscribers without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
