// Pure algorithm kernel for the fast auction engine: second-price
// resolution, budget math, timer extension, nominator eligibility and
// timeout-action dispatch. Everything in this file is side-effect-free and
// operates on primitives and value objects so both the fast and slow auction
// engines can share it.
package auction

import (
	"time"

	"github.com/google/uuid"
)

// RankedProxyBid is a proxy bid as seen by the resolver. Callers must supply
// slices sorted by MaxBid descending, ties broken by earliest insertion; the
// earlier bidder leads on equal maxima.
type RankedProxyBid struct {
	RosterID uuid.UUID
	MaxBid   int64
}

// OutbidNotice describes a leader displaced by a resolution, addressed to
// the previous leader.
type OutbidNotice struct {
	PreviousLeader uuid.UUID
	LotID          uuid.UUID
	PreviousBid    int64
	NewLeadingBid  int64
}

// Resolution is the outcome of applying second-price rules to a lot's proxy
// bids.
type Resolution struct {
	NewLeader     uuid.UUID
	NewPrice      int64
	LeaderChanged bool
	PriceChanged  bool
	NewBidCount   int
	Outbid        *OutbidNotice // non-nil iff a previous leader was displaced
}

// ResolveSecondPrice applies proxy second-price rules to a lot. With a single
// proxy bid the price floors at max(currentBid, minBid) so it never regresses
// below an opening bid. With two or more, the leader pays
// min(highest.max, second.max + minIncrement). The monotonic guard then keeps
// the price from ever going down. Returns nil when there are no proxy bids.
func ResolveSecondPrice(lotID uuid.UUID, currentBid int64, currentLeader *uuid.UUID, bids []RankedProxyBid, minBid, minIncrement int64, currentBidCount int) *Resolution {
	if len(bids) == 0 {
		return nil
	}

	var newLeader uuid.UUID
	var newPrice int64
	if len(bids) == 1 {
		newLeader = bids[0].RosterID
		newPrice = currentBid
		if minBid > newPrice {
			newPrice = minBid
		}
	} else {
		h, s := bids[0], bids[1]
		newLeader = h.RosterID
		newPrice = s.MaxBid + minIncrement
		if h.MaxBid < newPrice {
			newPrice = h.MaxBid
		}
	}

	// Monotonic guard: the displayed price never goes down.
	if newPrice < currentBid {
		newPrice = currentBid
	}

	r := &Resolution{
		NewLeader:     newLeader,
		NewPrice:      newPrice,
		LeaderChanged: currentLeader == nil || *currentLeader != newLeader,
		PriceChanged:  newPrice != currentBid,
		NewBidCount:   currentBidCount,
	}
	if r.PriceChanged {
		r.NewBidCount++
	}
	if r.LeaderChanged && currentLeader != nil {
		r.Outbid = &OutbidNotice{
			PreviousLeader: *currentLeader,
			LotID:          lotID,
			PreviousBid:    currentBid,
			NewLeadingBid:  newPrice,
		}
	}
	return r
}

// MaxAffordableBid computes the largest bid a roster may place on a lot. The
// roster must hold back one minBid per unfilled slot beyond this lot and
// cannot double-spend commitments it already leads elsewhere. When the roster
// leads this lot, the lot's own commitment is already inside
// LeadingCommitment and is reusable for a raise, so it is added back. The
// result may be negative; callers treat that as zero afford.
func MaxAffordableBid(totalBudget int64, rosterSlots int, snap BudgetSnapshot, currentLotBid int64, isLeadingThisLot bool, minBid int64) int64 {
	remainingSlots := rosterSlots - snap.WonCount - 1
	var reserve int64
	if remainingSlots > 0 {
		reserve = int64(remainingSlots) * minBid
	}
	base := totalBudget - snap.Spent - reserve - snap.LeadingCommitment
	if isLeadingThisLot {
		base += currentLotBid
	}
	return base
}

// CanAffordMinBid reports whether the roster could open a fresh lot at
// minBid.
func CanAffordMinBid(totalBudget int64, rosterSlots int, snap BudgetSnapshot, minBid int64) bool {
	return minBid <= MaxAffordableBid(totalBudget, rosterSlots, snap, 0, false, minBid)
}

// DeadlineExtension is the outcome of computing a timer extension.
type DeadlineExtension struct {
	ShouldExtend bool
	NewDeadline  time.Time
}

// ExtendedDeadline computes the lot deadline after a qualifying bid. The
// candidate is now + resetOnBid, capped at lotCreatedAt + maxLotDuration when
// a cap is set. Timers only extend, never shorten.
func ExtendedDeadline(now, currentDeadline, lotCreatedAt time.Time, resetOnBid time.Duration, maxLotDuration *time.Duration) DeadlineExtension {
	candidate := now.Add(resetOnBid)
	if maxLotDuration != nil {
		limit := lotCreatedAt.Add(*maxLotDuration)
		if candidate.After(limit) {
			candidate = limit
		}
	}
	return DeadlineExtension{
		ShouldExtend: candidate.After(currentDeadline),
		NewDeadline:  candidate,
	}
}

// EligibilityReason explains why a roster can or cannot nominate.
type EligibilityReason string

// Eligibility reasons.
const (
	ReasonEligible           EligibilityReason = "eligible"
	ReasonRosterFull         EligibilityReason = "roster_full"
	ReasonInsufficientBudget EligibilityReason = "insufficient_budget"
)

// Eligibility is the verdict on a candidate nominator.
type Eligibility struct {
	Eligible bool
	Reason   EligibilityReason
}

// AssessNominatorEligibility decides whether a roster may nominate: the
// roster must have an open slot and be able to afford a fresh minBid lot.
func AssessNominatorEligibility(snap BudgetSnapshot, totalBudget int64, rosterSlots int, minBid int64) Eligibility {
	if snap.WonCount >= rosterSlots {
		return Eligibility{Reason: ReasonRosterFull}
	}
	if !CanAffordMinBid(totalBudget, rosterSlots, snap, minBid) {
		return Eligibility{Reason: ReasonInsufficientBudget}
	}
	return Eligibility{Eligible: true, Reason: ReasonEligible}
}

// TimeoutDecision is the dispatch result for an expired nominator clock.
type TimeoutDecision string

// Timeout decisions.
const (
	TimeoutCreateLotWithOpenBid TimeoutDecision = "create_lot_with_open_bid"
	TimeoutCreateLotNoOpenBid   TimeoutDecision = "create_lot_no_open_bid"
	TimeoutSkip                 TimeoutDecision = "skip"
)

// ResolveTimeoutAction maps the configured timeout policy onto a concrete
// decision. Any auto-nominate policy degrades to a skip when no eligible
// player exists or the nominator itself is ineligible.
func ResolveTimeoutAction(action TimeoutAction, hasEligiblePlayer bool, eligibility Eligibility) TimeoutDecision {
	if action == AutoSkipNominator {
		return TimeoutSkip
	}
	if !hasEligiblePlayer || !eligibility.Eligible {
		return TimeoutSkip
	}
	if action == AutoNominateNoOpenBid {
		return TimeoutCreateLotNoOpenBid
	}
	return TimeoutCreateLotWithOpenBid
}
