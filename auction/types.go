// Package auction implements the fast auction draft engine: a real-time,
// budget-constrained, second-price proxy auction that drafts players onto
// fantasy rosters one lot at a time.
//
// Lock contract: every mutating operation runs inside a transaction bracketed
// by exactly one named advisory lock. Bids take AUCTION(lotID); nominations,
// rotation and completion take DRAFT(draftID). No operation holds two locks of
// different domains at once; if a future operation ever needs both it must
// acquire in priority order, AUCTION before DRAFT before ROSTER. Settlement
// takes AUCTION(lotID) in one transaction, commits, then takes DRAFT(draftID)
// in a second transaction to advance the nominator. Events publish strictly
// after commit.
package auction

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus is the lifecycle state of a draft.
type DraftStatus string

// Draft statuses.
const (
	DraftNotStarted DraftStatus = "not_started"
	DraftInProgress DraftStatus = "in_progress"
	DraftPaused     DraftStatus = "paused"
	DraftCompleted  DraftStatus = "completed"
)

// DraftTypeAuction is the only draft type this engine operates on. The snake
// draft engine is a sibling outside this package.
const DraftTypeAuction = "auction"

// Draft is one league season's draft. While Status is DraftInProgress,
// CurrentRosterID references a roster in the draft order and PickDeadline is
// non-nil; PickDeadline is nil iff the draft is paused. Once completed the
// row is immutable.
type Draft struct {
	ID              uuid.UUID
	LeagueID        uuid.UUID
	Status          DraftStatus
	Type            string
	CurrentPick     int       // monotonic nomination counter, 0 before the first pick
	CurrentRosterID uuid.UUID // the current nominator; uuid.Nil before the rotation begins
	PickDeadline    *time.Time
	// PausedRemainingSec preserves the nominator clock across a pause so
	// resume restores the window that was outstanding.
	PausedRemainingSec *int64
	Settings           DraftSettings
	CreatedAt          time.Time
}

// IsFastAuction reports whether the draft is an auction draft in fast mode.
func (d *Draft) IsFastAuction() bool {
	return d.Type == DraftTypeAuction && d.Settings.AuctionMode == AuctionModeFast
}

// DraftOrderEntry is one position in a draft's nomination order. Positions
// are 1-based and immutable once the draft begins. Pick p belongs to the
// roster at position ((p-1) mod len(order)) + 1.
type DraftOrderEntry struct {
	DraftID  uuid.UUID
	RosterID uuid.UUID
	Position int
}

// Roster is a league membership unit. Only identity and league membership are
// consulted by the engine.
type Roster struct {
	ID       uuid.UUID
	LeagueID uuid.UUID
	UserID   uuid.UUID
}

// LotStatus is the lifecycle state of an auction lot.
type LotStatus string

// Lot statuses. Terminal states (won, passed) are immutable except for
// post-settlement roster materialization.
const (
	LotActive LotStatus = "active"
	LotWon    LotStatus = "won"
	LotPassed LotStatus = "passed"
)

// Lot is the unit of contention: one player on the block. At most one active
// lot exists per draft, (draft, player) is unique across active/won lots, and
// CurrentBid is monotonically non-decreasing while active.
type Lot struct {
	ID                uuid.UUID
	DraftID           uuid.UUID
	PlayerID          uuid.UUID
	NominatorRosterID uuid.UUID
	CurrentBid        int64      // publicly displayed price
	CurrentBidderID   *uuid.UUID // current leader's roster; nil if no leader
	BidCount          int        // increments only when CurrentBid changes
	BidDeadline       *time.Time // nil while the draft is paused
	Status            LotStatus
	WinningRosterID   *uuid.UUID
	WinningBid        *int64
	// PausedRemainingSec preserves the lot clock across a pause.
	PausedRemainingSec *int64
	CreatedAt          time.Time
	IdempotencyKey     *string // at-most-one lot per nomination request
}

// ProxyBid is a bidder's maximum willingness-to-pay on a lot, keyed uniquely
// by (LotID, RosterID). The engine spends only up to the second-highest max
// plus the minimum increment, bounded by the bidder's own max.
type ProxyBid struct {
	LotID     uuid.UUID
	RosterID  uuid.UUID
	MaxBid    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BidHistoryEntry is an append-only record of a bid event, used for audit and
// idempotent retries. (LotID, RosterID, IdempotencyKey) is unique when the
// key is present.
type BidHistoryEntry struct {
	ID             uuid.UUID
	LotID          uuid.UUID
	RosterID       uuid.UUID
	Amount         int64
	IsProxy        bool // true for proxy ceilings, false for opening bids
	IdempotencyKey *string
	CreatedAt      time.Time
}

// BudgetSnapshot is the derived budget position of a roster within a draft:
// Spent over won lots, WonCount of won lots, and LeadingCommitment over
// active lots the roster currently leads.
type BudgetSnapshot struct {
	Spent             int64
	WonCount          int
	LeadingCommitment int64
}

// Nominator identifies the roster (and its user) whose turn it is to
// introduce the next lot.
type Nominator struct {
	RosterID uuid.UUID
	UserID   uuid.UUID
}

// RosterBudget is a roster's budget line in the draft state, extending the
// snapshot with the precomputed affordability ceiling.
type RosterBudget struct {
	RosterID          uuid.UUID
	Spent             int64
	WonCount          int
	LeadingCommitment int64
	MaxAffordableBid  int64
}

// DraftState is the read model returned by GetState.
type DraftState struct {
	DraftID            uuid.UUID
	Status             DraftStatus
	ActiveLot          *Lot
	CurrentNominatorID uuid.UUID
	NominationNumber   int
	NominationDeadline *time.Time
	Budgets            []RosterBudget
}
