package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// SettleExpiredLot closes a lot whose bid deadline has passed, inside the
// AUCTION(lotID) lock. A lot with no rival bidder (no proxy beyond any
// opening-bidder proxy the nominator placed) passes; otherwise the current
// leader wins at the displayed price, falling back down the proxy ladder when
// the leader's budget no longer sustains the purchase. The nominator rotation
// then advances in a separate DRAFT-locked transaction; the two locks are
// never nested.
func (s *Service) SettleExpiredLot(ctx context.Context, draftID, lotID uuid.UUID) error {
	defer s.observe("settle", time.Now())

	var (
		settled *Lot
		events  []Event
	)
	err := s.runner.InLockedTx(ctx, LockAuction, lotID, func(ctx context.Context, st Stores) error {
		lot, err := st.Lots().GetForUpdate(ctx, lotID)
		if err != nil {
			if IsKind(err, KindNotFound) {
				return nil
			}
			return err
		}
		// Stale work items no-op: the lot already settled, was paused, or a
		// late bid extended the clock.
		if lot.Status != LotActive || lot.DraftID != draftID {
			return nil
		}
		now := s.clock.Now()
		if lot.BidDeadline == nil || lot.BidDeadline.After(now) {
			return nil
		}

		settings, err := draftSettings(ctx, st, draftID)
		if err != nil {
			return err
		}
		proxies, err := st.Lots().ProxyBids(ctx, lot.ID)
		if err != nil {
			return err
		}

		winner, price, found, err := s.chooseWinner(ctx, st, lot, settings, proxies)
		if err != nil {
			return err
		}

		if !found {
			if err := st.Lots().Settle(ctx, lot.ID, LotPassed, nil, nil); err != nil {
				return err
			}
			lot.Status = LotPassed
		} else {
			if err := st.Lots().Settle(ctx, lot.ID, LotWon, &winner, &price); err != nil {
				return err
			}
			lot.Status = LotWon
			lot.WinningRosterID = &winner
			lot.WinningBid = &price
		}
		settled = lot
		events = append(events, LotSettled{DraftID: draftID, Lot: *lot, ServerTime: now})
		return nil
	})
	if err != nil {
		return err
	}
	if settled == nil {
		return nil
	}

	if settled.Status == LotWon {
		metrics.SettlementsTotal.WithLabelValues("won").Inc()
		s.logger.Info("lot_won",
			"draft_id", draftID,
			"lot_id", lotID,
			"winning_roster_id", *settled.WinningRosterID,
			"winning_bid", *settled.WinningBid,
		)
	} else {
		metrics.SettlementsTotal.WithLabelValues("passed").Inc()
		s.logger.Info("lot_passed", "draft_id", draftID, "lot_id", lotID)
	}
	s.publish(events)

	// Rotation advances in its own DRAFT transaction after the settlement
	// commit; it detects completion when no eligible nominator remains.
	_, err = s.AdvanceNominator(ctx, draftID, nil)
	return err
}

// chooseWinner picks the roster that takes the lot and the price it pays, or
// found=false when the lot passes. A lot whose only proxy belongs to the
// nominator's opening bid has no real bidders and passes. The leader wins at
// the displayed price when its budget snapshot still sustains the purchase;
// otherwise the proxy ladder is walked in descending order, re-applying
// second-price among the remaining bidders, until a candidate validates or
// the ladder is exhausted.
func (s *Service) chooseWinner(ctx context.Context, st Stores, lot *Lot, settings DraftSettings, proxies []RankedProxyBid) (uuid.UUID, int64, bool, error) {
	if lot.CurrentBidderID == nil {
		return uuid.Nil, 0, false, nil
	}
	rival := false
	for _, p := range proxies {
		if p.RosterID != lot.NominatorRosterID {
			rival = true
			break
		}
	}
	if !rival {
		return uuid.Nil, 0, false, nil
	}

	for i, cand := range proxies {
		var price int64
		switch {
		case i == 0:
			// The resolved display price already prices the leader against
			// the runner-up.
			price = lot.CurrentBid
		case i == len(proxies)-1:
			price = settings.MinBid
		default:
			price = proxies[i+1].MaxBid + settings.MinIncrement
			if price > cand.MaxBid {
				price = cand.MaxBid
			}
			if price < settings.MinBid {
				price = settings.MinBid
			}
		}

		snap, err := st.Lots().BudgetSnapshot(ctx, lot.DraftID, cand.RosterID)
		if err != nil {
			return uuid.Nil, 0, false, err
		}
		if snap.WonCount >= settings.RosterSlots {
			continue
		}
		leading := *lot.CurrentBidderID == cand.RosterID
		afford := MaxAffordableBid(settings.AuctionBudget, settings.RosterSlots, snap, lot.CurrentBid, leading, settings.MinBid)
		if price <= afford {
			return cand.RosterID, price, true, nil
		}
	}
	return uuid.Nil, 0, false, nil
}
