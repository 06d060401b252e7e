package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// AutoNominate is the timeout entry point for an expired nominator clock. It
// dispatches on the draft's fastAuctionTimeoutAction: either a lot is created
// on the nominator's behalf (optionally with an opening bid and a smart
// fallback proxy), or the nominator is skipped and the rotation advances.
// Returns the created lot, or nil when the timeout resolved to a skip or the
// work item was stale.
func (s *Service) AutoNominate(ctx context.Context, draftID uuid.UUID) (*Lot, error) {
	defer s.observe("auto_nominate", time.Now())

	// Pre-flight outside the lock; cheap rejection of stale work items.
	skip := false
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().Get(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != DraftInProgress || !d.IsFastAuction() || d.CurrentRosterID == uuid.Nil {
			skip = true
			return nil
		}
		active, err := st.Lots().ActiveLot(ctx, draftID)
		if err != nil {
			return err
		}
		if active != nil {
			skip = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if skip {
		return nil, nil
	}

	var (
		created     *Lot
		skippedFrom *uuid.UUID
		events      []Event
	)
	err = s.runner.InLockedTx(ctx, LockDraft, draftID, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().GetForUpdate(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != DraftInProgress || !d.IsFastAuction() || d.CurrentRosterID == uuid.Nil {
			return nil
		}
		now := s.clock.Now()
		// A paused clock or one that a user nomination just refreshed makes
		// this work item stale; the locked re-read no-ops.
		if d.PickDeadline == nil || d.PickDeadline.After(now) {
			return nil
		}
		active, err := st.Lots().ActiveLot(ctx, draftID)
		if err != nil {
			return err
		}
		if active != nil {
			return nil
		}

		nominatorID := d.CurrentRosterID
		playerID, hasPlayer, err := st.Players().BestAvailable(ctx, draftID, nominatorID)
		if err != nil {
			return err
		}
		snap, err := st.Lots().BudgetSnapshot(ctx, draftID, nominatorID)
		if err != nil {
			return err
		}
		elig := AssessNominatorEligibility(snap, d.Settings.AuctionBudget, d.Settings.RosterSlots, d.Settings.MinBid)

		decision := ResolveTimeoutAction(d.Settings.TimeoutAction, hasPlayer, elig)
		if decision == TimeoutSkip {
			skippedFrom = &nominatorID
			return nil
		}

		lot, err := createLot(ctx, st, d, playerID, nominatorID, nil, now)
		if err != nil {
			return err
		}
		if decision == TimeoutCreateLotWithOpenBid {
			openMax := smartFallbackMax(d.Settings, snap)
			if err := setOpeningBidder(ctx, st, lot, nominatorID, openMax, now); err != nil {
				return err
			}
		}

		created = lot
		events = append(events, LotStarted{DraftID: d.ID, Lot: *lot, ServerTime: now, IsAutoNomination: true})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created != nil {
		metrics.NominationsTotal.WithLabelValues("auto").Inc()
		s.logger.Info("lot_started",
			"draft_id", draftID,
			"lot_id", created.ID,
			"player_id", created.PlayerID,
			"nominator_roster_id", created.NominatorRosterID,
			"auto_nomination", true,
		)
	}
	s.publish(events)

	// Skips advance the rotation in a fresh DRAFT transaction; the two lock
	// acquisitions are never nested.
	if skippedFrom != nil {
		if _, err := s.AdvanceNominator(ctx, draftID, skippedFrom); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// smartFallbackMax picks the conservative proxy ceiling for an AFK
// nominator: the smaller of the configured ceiling and the roster's max
// affordable bid, floored at minBid. A zero ceiling disables the fallback
// and the opening proxy stays at minBid.
func smartFallbackMax(settings DraftSettings, snap BudgetSnapshot) int64 {
	if settings.AutoNominateMaxBidCeiling <= 0 {
		return settings.MinBid
	}
	max := MaxAffordableBid(settings.AuctionBudget, settings.RosterSlots, snap, 0, false, settings.MinBid)
	if settings.AutoNominateMaxBidCeiling < max {
		max = settings.AutoNominateMaxBidCeiling
	}
	if max < settings.MinBid {
		max = settings.MinBid
	}
	return max
}
