package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PauseDraft suspends the draft: the nominator clock and any active lot clock
// are nulled, with the outstanding windows preserved for resume. Bids and
// timeouts no-op while paused. The draft and lot clocks are updated in
// separate transactions under their own lock domains.
func (s *Service) PauseDraft(ctx context.Context, draftID uuid.UUID) error {
	defer s.observe("pause", time.Now())

	var activeLotID *uuid.UUID
	err := s.runner.InLockedTx(ctx, LockDraft, draftID, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().GetForUpdate(ctx, draftID)
		if err != nil {
			return err
		}
		if !d.IsFastAuction() {
			return Validationf("draft is not a fast auction")
		}
		if d.Status != DraftInProgress {
			return Validationf("only an in-progress draft can be paused")
		}

		now := s.clock.Now()
		if d.PickDeadline != nil {
			rem := remainingSeconds(now, *d.PickDeadline)
			if err := st.Drafts().SetPausedRemaining(ctx, draftID, &rem); err != nil {
				return err
			}
			if err := st.Drafts().SetPickDeadline(ctx, draftID, nil); err != nil {
				return err
			}
		}
		if err := st.Drafts().SetStatus(ctx, draftID, DraftPaused); err != nil {
			return err
		}

		active, err := st.Lots().ActiveLot(ctx, draftID)
		if err != nil {
			return err
		}
		if active != nil {
			activeLotID = &active.ID
		}
		return nil
	})
	if err != nil {
		return err
	}

	if activeLotID != nil {
		err = s.runner.InLockedTx(ctx, LockAuction, *activeLotID, func(ctx context.Context, st Stores) error {
			lot, err := st.Lots().GetForUpdate(ctx, *activeLotID)
			if err != nil {
				return err
			}
			if lot.Status != LotActive || lot.BidDeadline == nil {
				return nil
			}
			rem := remainingSeconds(s.clock.Now(), *lot.BidDeadline)
			if err := st.Lots().SetPausedRemaining(ctx, lot.ID, &rem); err != nil {
				return err
			}
			return st.Lots().SetDeadline(ctx, lot.ID, nil)
		})
		if err != nil {
			return err
		}
	}

	s.logger.Info("draft_paused", "draft_id", draftID)
	s.bus.Publish(DraftPausedEvent{DraftID: draftID})
	return nil
}

// ResumeDraft restores a paused draft. The lot clock is restored first so the
// lot is never biddable while its clock is still nulled; the draft status
// flips last.
func (s *Service) ResumeDraft(ctx context.Context, draftID uuid.UUID) error {
	defer s.observe("resume", time.Now())

	var activeLotID *uuid.UUID
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().Get(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != DraftPaused {
			return Validationf("draft is not paused")
		}
		active, err := st.Lots().ActiveLot(ctx, draftID)
		if err != nil {
			return err
		}
		if active != nil {
			activeLotID = &active.ID
		}
		return nil
	})
	if err != nil {
		return err
	}

	if activeLotID != nil {
		err = s.runner.InLockedTx(ctx, LockAuction, *activeLotID, func(ctx context.Context, st Stores) error {
			lot, err := st.Lots().GetForUpdate(ctx, *activeLotID)
			if err != nil {
				return err
			}
			if lot.Status != LotActive || lot.BidDeadline != nil {
				return nil
			}
			settings, err := draftSettings(ctx, st, draftID)
			if err != nil {
				return err
			}
			rem := settings.ResetWindow()
			if lot.PausedRemainingSec != nil && *lot.PausedRemainingSec > 0 {
				rem = time.Duration(*lot.PausedRemainingSec) * time.Second
			}
			deadline := s.clock.Now().Add(rem)
			if err := st.Lots().SetDeadline(ctx, lot.ID, &deadline); err != nil {
				return err
			}
			return st.Lots().SetPausedRemaining(ctx, lot.ID, nil)
		})
		if err != nil {
			return err
		}
	}

	err = s.runner.InLockedTx(ctx, LockDraft, draftID, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().GetForUpdate(ctx, draftID)
		if err != nil {
			return err
		}
		if d.Status != DraftPaused {
			return Validationf("draft is not paused")
		}
		if d.CurrentRosterID != uuid.Nil {
			rem := d.Settings.NominationWindow()
			if d.PausedRemainingSec != nil && *d.PausedRemainingSec > 0 {
				rem = time.Duration(*d.PausedRemainingSec) * time.Second
			}
			deadline := s.clock.Now().Add(rem)
			if err := st.Drafts().SetPickDeadline(ctx, draftID, &deadline); err != nil {
				return err
			}
			if err := st.Drafts().SetPausedRemaining(ctx, draftID, nil); err != nil {
				return err
			}
		}
		return st.Drafts().SetStatus(ctx, draftID, DraftInProgress)
	})
	if err != nil {
		return err
	}

	s.logger.Info("draft_resumed", "draft_id", draftID)
	s.bus.Publish(DraftResumedEvent{DraftID: draftID})
	return nil
}

// remainingSeconds is the non-negative whole-second window left until
// deadline.
func remainingSeconds(now, deadline time.Time) int64 {
	rem := int64(deadline.Sub(now) / time.Second)
	if rem < 0 {
		rem = 0
	}
	return rem
}
