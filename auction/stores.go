package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LockDomain names an advisory lock domain. Domains form a total order
// (lowest acquired first) so no two operations can deadlock: AUCTION before
// DRAFT before ROSTER. No operation in this engine ever holds two domains at
// once; the order is the published contract for any future operation that
// must.
type LockDomain int32

// Lock domains in acquisition priority order.
const (
	LockAuction LockDomain = iota + 1 // bids on a single lot
	LockDraft                         // draft-wide transitions
	LockRoster                        // per-roster invariants
)

// String returns the domain name.
func (d LockDomain) String() string {
	switch d {
	case LockAuction:
		return "AUCTION"
	case LockDraft:
		return "DRAFT"
	case LockRoster:
		return "ROSTER"
	default:
		return "UNKNOWN"
	}
}

// Clock abstracts time so tests can fast-forward deadlines. All instants are
// UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// DraftStore reads and mutates drafts and their nomination order.
type DraftStore interface {
	// Get loads a draft, or a KindNotFound error.
	Get(ctx context.Context, id uuid.UUID) (*Draft, error)
	// GetForUpdate loads a draft holding its row lock for the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Draft, error)
	// Order returns the draft order sorted by position ascending.
	Order(ctx context.Context, draftID uuid.UUID) ([]DraftOrderEntry, error)
	// SetNominator atomically updates current_pick, current_roster_id and
	// pick_deadline.
	SetNominator(ctx context.Context, draftID uuid.UUID, pick int, rosterID uuid.UUID, deadline *time.Time) error
	// SetPickDeadline updates only the nominator clock; nil pauses it.
	SetPickDeadline(ctx context.Context, draftID uuid.UUID, deadline *time.Time) error
	// SetStatus transitions the draft lifecycle status.
	SetStatus(ctx context.Context, draftID uuid.UUID, status DraftStatus) error
	// SetPausedRemaining records the outstanding nominator window at pause
	// time; nil clears it on resume.
	SetPausedRemaining(ctx context.Context, draftID uuid.UUID, seconds *int64) error
	// MarkCompleted sets status=completed and completed_at.
	MarkCompleted(ctx context.Context, draftID uuid.UUID, at time.Time) error
	// ExpiredNominations lists in-progress fast auction drafts whose
	// pick_deadline has passed and which have no active lot.
	ExpiredNominations(ctx context.Context, now time.Time) ([]*Draft, error)
}

// LotStore reads and mutates lots, proxy bids and bid history. All writes run
// inside the caller's locked transaction.
type LotStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Lot, error)
	// GetForUpdate loads a lot holding its row lock for the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error)
	// ActiveLot returns the draft's single active lot, or nil when none.
	ActiveLot(ctx context.Context, draftID uuid.UUID) (*Lot, error)
	// ByIdempotencyKey returns the lot created under the key, or nil.
	ByIdempotencyKey(ctx context.Context, draftID uuid.UUID, key string) (*Lot, error)
	// PlayerHasLot reports whether the player already has an active or won
	// lot in the draft.
	PlayerHasLot(ctx context.Context, draftID, playerID uuid.UUID) (bool, error)
	Insert(ctx context.Context, lot *Lot) error
	// UpdateBidCAS applies the price/leader update only when the previously
	// observed bid, leader and active status still hold. Returns false when
	// zero rows matched.
	UpdateBidCAS(ctx context.Context, lotID uuid.UUID, prevBid int64, prevLeader *uuid.UUID, newBid int64, newLeader uuid.UUID, newBidCount int) (bool, error)
	// SetDeadline updates the lot clock; nil pauses it.
	SetDeadline(ctx context.Context, lotID uuid.UUID, deadline *time.Time) error
	// SetPausedRemaining records the outstanding lot window at pause time.
	SetPausedRemaining(ctx context.Context, lotID uuid.UUID, seconds *int64) error
	// Settle writes the terminal status and winner columns.
	Settle(ctx context.Context, lotID uuid.UUID, status LotStatus, winner *uuid.UUID, winningBid *int64) error
	// Expired lists active lots across drafts whose bid_deadline has passed.
	Expired(ctx context.Context, now time.Time) ([]*Lot, error)
	// WonLots returns the draft's won lots for roster materialization.
	WonLots(ctx context.Context, draftID uuid.UUID) ([]*Lot, error)

	// ProxyBids returns the lot's proxy bids ordered by max_bid descending,
	// earliest insertion first on ties.
	ProxyBids(ctx context.Context, lotID uuid.UUID) ([]RankedProxyBid, error)
	GetProxyBid(ctx context.Context, lotID, rosterID uuid.UUID) (*ProxyBid, error)
	// UpsertProxyBid inserts or raises/overwrites the (lot, roster) maximum.
	UpsertProxyBid(ctx context.Context, lotID, rosterID uuid.UUID, maxBid int64, now time.Time) error

	// AppendHistory inserts a history row. Rows carrying an idempotency key
	// that already exists are silently dropped.
	AppendHistory(ctx context.Context, e *BidHistoryEntry) error
	// HistoryByIdempotencyKey returns the prior row for a replayed request,
	// or nil.
	HistoryByIdempotencyKey(ctx context.Context, lotID, rosterID uuid.UUID, key string) (*BidHistoryEntry, error)
	History(ctx context.Context, lotID uuid.UUID) ([]BidHistoryEntry, error)

	// BudgetSnapshot derives (spent, wonCount, leadingCommitment) for one
	// roster from committed lot state.
	BudgetSnapshot(ctx context.Context, draftID, rosterID uuid.UUID) (BudgetSnapshot, error)
	// BudgetSnapshots batch-derives snapshots for every roster with activity
	// in the draft. Rosters without lots map to the zero snapshot.
	BudgetSnapshots(ctx context.Context, draftID uuid.UUID) (map[uuid.UUID]BudgetSnapshot, error)
}

// RosterStore resolves roster identity and league membership.
type RosterStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Roster, error)
	// ByUser returns the user's roster in the league, or a KindForbidden
	// error when the user is not a member.
	ByUser(ctx context.Context, leagueID, userID uuid.UUID) (*Roster, error)
}

// PlayerCatalog is the external player collaborator. BestAvailable applies
// the auto-nomination priority: the nominator's queue first, then current
// season ADP, then any undrafted player.
type PlayerCatalog interface {
	Exists(ctx context.Context, playerID uuid.UUID) (bool, error)
	BestAvailable(ctx context.Context, draftID, rosterID uuid.UUID) (uuid.UUID, bool, error)
	// AnyAvailable reports whether any player remains nominatable in the
	// draft.
	AnyAvailable(ctx context.Context, draftID uuid.UUID) (bool, error)
}

// Stores bundles the transaction-scoped repositories handed to a closure by
// the Runner.
type Stores interface {
	Drafts() DraftStore
	Lots() LotStore
	Rosters() RosterStore
	Players() PlayerCatalog
}

// Runner brackets work in the persistence engine. InLockedTx acquires the
// named advisory lock, opens a transaction, runs fn and commits, rolling back
// on error. Read runs fn against committed state without a lock, for
// precondition fast paths and read models.
type Runner interface {
	InLockedTx(ctx context.Context, domain LockDomain, key uuid.UUID, fn func(ctx context.Context, s Stores) error) error
	Read(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Finalizer is the draft completion hook. It runs inside the same DRAFT-locked
// transaction that marks the draft completed and materializes won lots onto
// rosters.
type Finalizer interface {
	FinalizeDraft(ctx context.Context, s Stores, draftID, leagueID uuid.UUID) error
}

// NopFinalizer is a Finalizer that does nothing, for hosts that materialize
// rosters elsewhere.
type NopFinalizer struct{}

// FinalizeDraft implements Finalizer.
func (NopFinalizer) FinalizeDraft(ctx context.Context, s Stores, draftID, leagueID uuid.UUID) error {
	return nil
}
