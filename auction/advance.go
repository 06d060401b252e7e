package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// AdvanceNominator rotates the nomination clock to the next eligible roster,
// skipping full or broke rosters, inside the DRAFT(draftID) lock. When a full
// cycle finds no eligible candidate, or no player remains nominatable, the
// draft completes. Returns the change event, or nil when the draft was not an
// in-progress fast auction or just completed.
//
// timeoutSkipped carries the old nominator when the rotation was triggered by
// an auto_skip_nominator timeout; it is echoed on the published event.
func (s *Service) AdvanceNominator(ctx context.Context, draftID uuid.UUID, timeoutSkipped *uuid.UUID) (*NominatorChanged, error) {
	defer s.observe("advance_nominator", time.Now())

	var (
		change *NominatorChanged
		events []Event
	)
	err := s.runner.InLockedTx(ctx, LockDraft, draftID, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().GetForUpdate(ctx, draftID)
		if err != nil {
			return err
		}
		// Paused and finished drafts short-circuit without error.
		if d.Status != DraftInProgress || !d.IsFastAuction() {
			return nil
		}

		anyPlayers, err := st.Players().AnyAvailable(ctx, draftID)
		if err != nil {
			return err
		}
		if !anyPlayers {
			return s.completeDraft(ctx, st, d, &events)
		}

		order, err := st.Drafts().Order(ctx, draftID)
		if err != nil {
			return err
		}
		if len(order) == 0 {
			return Validationf("draft has no draft order")
		}
		snaps, err := st.Lots().BudgetSnapshots(ctx, draftID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		for i := 1; i <= len(order); i++ {
			pick := d.CurrentPick + i
			candidate := order[(pick-1)%len(order)]
			elig := AssessNominatorEligibility(snaps[candidate.RosterID], d.Settings.AuctionBudget, d.Settings.RosterSlots, d.Settings.MinBid)
			if !elig.Eligible {
				continue
			}
			// A concurrent settlement may have just filled or drained this
			// roster; re-check against a fresh snapshot before committing.
			fresh, err := st.Lots().BudgetSnapshot(ctx, draftID, candidate.RosterID)
			if err != nil {
				return err
			}
			elig = AssessNominatorEligibility(fresh, d.Settings.AuctionBudget, d.Settings.RosterSlots, d.Settings.MinBid)
			if !elig.Eligible {
				continue
			}

			deadline := now.Add(d.Settings.NominationWindow())
			if err := st.Drafts().SetNominator(ctx, draftID, pick, candidate.RosterID, &deadline); err != nil {
				return err
			}
			change = &NominatorChanged{
				DraftID:                draftID,
				NominatorRosterID:      candidate.RosterID,
				NominationNumber:       pick,
				NominationDeadline:     deadline,
				TimeoutSkippedRosterID: timeoutSkipped,
			}
			events = append(events, *change)
			return nil
		}

		// Full cycle with no eligible nominator: the auction is complete.
		return s.completeDraft(ctx, st, d, &events)
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		s.logger.Info("nominator_changed",
			"draft_id", draftID,
			"nominator_roster_id", change.NominatorRosterID,
			"nomination_number", change.NominationNumber,
		)
	}
	s.publish(events)
	return change, nil
}

// ForceAdvanceNominator is the admin fallback: the same rotation body,
// invocable without an antecedent settlement.
func (s *Service) ForceAdvanceNominator(ctx context.Context, draftID uuid.UUID) (*NominatorChanged, error) {
	return s.AdvanceNominator(ctx, draftID, nil)
}

// completeDraft marks the draft completed and runs the completion finalizer
// inside the caller's DRAFT-locked transaction. The finalizer materializes
// won lots onto rosters using the same connection.
func (s *Service) completeDraft(ctx context.Context, st Stores, d *Draft, events *[]Event) error {
	if err := st.Drafts().MarkCompleted(ctx, d.ID, s.clock.Now()); err != nil {
		return err
	}
	if err := s.finalizer.FinalizeDraft(ctx, st, d.ID, d.LeagueID); err != nil {
		return err
	}
	*events = append(*events, DraftCompletedEvent{DraftID: d.ID, LeagueID: d.LeagueID})
	metrics.DraftsCompletedTotal.Inc()
	s.logger.Info("draft_completed", "draft_id", d.ID, "league_id", d.LeagueID)
	return nil
}
