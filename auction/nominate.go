package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// NominateRequest asks to put a player on the block for the current
// nominator.
type NominateRequest struct {
	DraftID        uuid.UUID
	UserID         uuid.UUID
	PlayerID       uuid.UUID
	IdempotencyKey *string
}

// NominateResult is the created (or replayed) lot with a human message.
type NominateResult struct {
	Lot     *Lot
	Message string
}

// Nominate creates the draft's next lot. Preconditions are checked outside
// the lock for friendly fast-path errors, then re-validated inside the
// DRAFT(draftID) lock because the fast path may be stale.
func (s *Service) Nominate(ctx context.Context, req NominateRequest) (*NominateResult, error) {
	defer s.observe("nominate", time.Now())

	// Fast path: friendly errors without contending for the draft lock.
	var rosterID uuid.UUID
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		d, err := loadFastAuctionDraft(ctx, st, req.DraftID)
		if err != nil {
			return err
		}
		roster, err := st.Rosters().ByUser(ctx, d.LeagueID, req.UserID)
		if err != nil {
			return err
		}
		rosterID = roster.ID
		if d.CurrentRosterID != rosterID {
			return Forbiddenf("it is not your turn to nominate")
		}
		ok, err := st.Players().Exists(ctx, req.PlayerID)
		if err != nil {
			return err
		}
		if !ok {
			return NotFoundf("player %s does not exist", req.PlayerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		result *NominateResult
		events []Event
	)
	err = s.runner.InLockedTx(ctx, LockDraft, req.DraftID, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().GetForUpdate(ctx, req.DraftID)
		if err != nil {
			return err
		}
		// Re-validate under the lock; the fast-path checks may be stale.
		if err := checkFastAuction(d); err != nil {
			return err
		}
		roster, err := st.Rosters().ByUser(ctx, d.LeagueID, req.UserID)
		if err != nil {
			return err
		}
		if d.CurrentRosterID != roster.ID {
			return Forbiddenf("it is not your turn to nominate")
		}

		if req.IdempotencyKey != nil {
			prior, err := st.Lots().ByIdempotencyKey(ctx, req.DraftID, *req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				result = &NominateResult{Lot: prior, Message: "nomination already processed"}
				return nil
			}
		}

		active, err := st.Lots().ActiveLot(ctx, req.DraftID)
		if err != nil {
			return err
		}
		if active != nil {
			return Validationf("a lot is already active in this draft")
		}

		taken, err := st.Lots().PlayerHasLot(ctx, req.DraftID, req.PlayerID)
		if err != nil {
			return err
		}
		if taken {
			return Validationf("player is already drafted or nominated")
		}

		snap, err := st.Lots().BudgetSnapshot(ctx, req.DraftID, roster.ID)
		if err != nil {
			return err
		}
		if err := checkNominatorEligibility(snap, d.Settings); err != nil {
			return err
		}

		now := s.clock.Now()
		lot, err := createLot(ctx, st, d, req.PlayerID, roster.ID, req.IdempotencyKey, now)
		if err != nil {
			return err
		}
		if err := setOpeningBidder(ctx, st, lot, roster.ID, d.Settings.MinBid, now); err != nil {
			return err
		}

		result = &NominateResult{Lot: lot, Message: "player nominated"}
		events = append(events, LotStarted{DraftID: d.ID, Lot: *lot, ServerTime: now})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(events) > 0 {
		metrics.NominationsTotal.WithLabelValues("user").Inc()
		s.logger.Info("lot_started",
			"draft_id", req.DraftID,
			"lot_id", result.Lot.ID,
			"player_id", req.PlayerID,
			"nominator_roster_id", rosterID,
			"opening_bid", result.Lot.CurrentBid,
		)
	}
	s.publish(events)
	return result, nil
}

// checkNominatorEligibility rejects a nomination the roster cannot sustain.
func checkNominatorEligibility(snap BudgetSnapshot, settings DraftSettings) error {
	elig := AssessNominatorEligibility(snap, settings.AuctionBudget, settings.RosterSlots, settings.MinBid)
	if elig.Eligible {
		return nil
	}
	switch elig.Reason {
	case ReasonRosterFull:
		return Validationf("roster is full")
	default:
		return Validationf("insufficient budget to nominate")
	}
}

// createLot inserts a fresh active lot opened at minBid with no leader.
func createLot(ctx context.Context, st Stores, d *Draft, playerID, nominatorID uuid.UUID, idemKey *string, now time.Time) (*Lot, error) {
	deadline := lotDeadline(now, d.Settings)
	lot := &Lot{
		ID:                uuid.New(),
		DraftID:           d.ID,
		PlayerID:          playerID,
		NominatorRosterID: nominatorID,
		CurrentBid:        d.Settings.MinBid,
		BidDeadline:       &deadline,
		Status:            LotActive,
		CreatedAt:         now,
		IdempotencyKey:    idemKey,
	}
	if err := st.Lots().Insert(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// setOpeningBidder makes the nominator the lot's leader at the displayed
// price with a proxy ceiling of openMax, and records the opening in history.
// The displayed price and bid count do not move.
func setOpeningBidder(ctx context.Context, st Stores, lot *Lot, nominatorID uuid.UUID, openMax int64, now time.Time) error {
	ok, err := st.Lots().UpdateBidCAS(ctx, lot.ID, lot.CurrentBid, lot.CurrentBidderID, lot.CurrentBid, nominatorID, lot.BidCount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSimultaneousBid
	}
	lot.CurrentBidderID = &nominatorID

	if err := st.Lots().UpsertProxyBid(ctx, lot.ID, nominatorID, openMax, now); err != nil {
		return err
	}
	return st.Lots().AppendHistory(ctx, &BidHistoryEntry{
		ID:        uuid.New(),
		LotID:     lot.ID,
		RosterID:  nominatorID,
		Amount:    lot.CurrentBid,
		IsProxy:   false,
		CreatedAt: now,
	})
}
