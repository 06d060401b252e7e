package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// BidRequest sets or raises a bidder's proxy maximum on a lot.
type BidRequest struct {
	DraftID        uuid.UUID
	UserID         uuid.UUID
	LotID          uuid.UUID
	MaxBid         int64
	IdempotencyKey *string
}

// BidResult is the post-resolution view of the lot along with the caller's
// proxy bid and any outbid notices the resolution produced.
type BidResult struct {
	Lot      *Lot
	ProxyBid *ProxyBid
	Outbid   []OutbidNotice
	Message  string
	Replayed bool
}

// outbidTarget pairs a notice with the displaced user, resolved inside the
// transaction so publishing needs no further reads.
type outbidTarget struct {
	notice OutbidNotice
	userID uuid.UUID
	player uuid.UUID
}

// SetMaxBid places a proxy bid inside the AUCTION(lotID) lock, resolves the
// second price and applies the result via CAS. The DRAFT lock is never held
// concurrently.
func (s *Service) SetMaxBid(ctx context.Context, req BidRequest) (*BidResult, error) {
	defer s.observe("set_max_bid", time.Now())

	if req.MaxBid < 0 {
		return nil, Validationf("bid must be a non-negative integer")
	}

	// Fast path outside the lock.
	var leagueID uuid.UUID
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		d, err := loadFastAuctionDraft(ctx, st, req.DraftID)
		if err != nil {
			return err
		}
		leagueID = d.LeagueID
		if _, err := st.Rosters().ByUser(ctx, d.LeagueID, req.UserID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		result  *BidResult
		events  []Event
		targets []outbidTarget
	)
	err = s.runner.InLockedTx(ctx, LockAuction, req.LotID, func(ctx context.Context, st Stores) error {
		// Membership re-validated inside the lock.
		roster, err := st.Rosters().ByUser(ctx, leagueID, req.UserID)
		if err != nil {
			return err
		}

		if req.IdempotencyKey != nil {
			prior, err := st.Lots().HistoryByIdempotencyKey(ctx, req.LotID, roster.ID, *req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				// Replay: return the current snapshot without mutation.
				lot, err := st.Lots().Get(ctx, req.LotID)
				if err != nil {
					return err
				}
				proxy, err := st.Lots().GetProxyBid(ctx, req.LotID, roster.ID)
				if err != nil {
					return err
				}
				result = &BidResult{Lot: lot, ProxyBid: proxy, Message: "bid already processed", Replayed: true}
				return nil
			}
		}

		lot, err := st.Lots().GetForUpdate(ctx, req.LotID)
		if err != nil {
			return err
		}
		if lot.DraftID != req.DraftID {
			return NotFoundf("lot %s does not belong to draft %s", req.LotID, req.DraftID)
		}
		if lot.Status != LotActive {
			return Validationf("lot is no longer active")
		}
		now := s.clock.Now()
		if lot.BidDeadline == nil {
			return Validationf("Draft is paused; bidding is suspended")
		}
		if !lot.BidDeadline.After(now) {
			return Validationf("Lot has expired; please refresh")
		}

		settings, err := draftSettings(ctx, st, lot.DraftID)
		if err != nil {
			return err
		}
		if err := checkBidMinimum(lot, roster.ID, req.MaxBid, lot.CurrentBid+settings.MinIncrement); err != nil {
			return err
		}
		snap, err := st.Lots().BudgetSnapshot(ctx, lot.DraftID, roster.ID)
		if err != nil {
			return err
		}
		if snap.WonCount >= settings.RosterSlots {
			return Validationf("roster is full")
		}
		isLeading := lot.CurrentBidderID != nil && *lot.CurrentBidderID == roster.ID
		afford := MaxAffordableBid(settings.AuctionBudget, settings.RosterSlots, snap, lot.CurrentBid, isLeading, settings.MinBid)
		if afford < 0 {
			afford = 0
		}
		if req.MaxBid > afford {
			return Validationf("Maximum affordable bid is $%d", afford)
		}

		if err := st.Lots().UpsertProxyBid(ctx, lot.ID, roster.ID, req.MaxBid, now); err != nil {
			return err
		}
		if err := st.Lots().AppendHistory(ctx, &BidHistoryEntry{
			ID:             uuid.New(),
			LotID:          lot.ID,
			RosterID:       roster.ID,
			Amount:         req.MaxBid,
			IsProxy:        true,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		bids, err := st.Lots().ProxyBids(ctx, lot.ID)
		if err != nil {
			return err
		}
		res := ResolveSecondPrice(lot.ID, lot.CurrentBid, lot.CurrentBidderID, bids, settings.MinBid, settings.MinIncrement, lot.BidCount)

		if res != nil && (res.PriceChanged || res.LeaderChanged) {
			ok, err := st.Lots().UpdateBidCAS(ctx, lot.ID, lot.CurrentBid, lot.CurrentBidderID, res.NewPrice, res.NewLeader, res.NewBidCount)
			if err != nil {
				return err
			}
			if !ok {
				return ErrSimultaneousBid
			}

			ext := ExtendedDeadline(now, *lot.BidDeadline, lot.CreatedAt, settings.ResetWindow(), settings.MaxLotDuration())
			if ext.ShouldExtend {
				if err := st.Lots().SetDeadline(ctx, lot.ID, &ext.NewDeadline); err != nil {
					return err
				}
			}

			if res.Outbid != nil {
				displaced, err := st.Rosters().Get(ctx, res.Outbid.PreviousLeader)
				if err != nil {
					return err
				}
				targets = append(targets, outbidTarget{notice: *res.Outbid, userID: displaced.UserID, player: lot.PlayerID})
			}
		}

		updated, err := st.Lots().Get(ctx, lot.ID)
		if err != nil {
			return err
		}
		proxy, err := st.Lots().GetProxyBid(ctx, lot.ID, roster.ID)
		if err != nil {
			return err
		}

		result = &BidResult{Lot: updated, ProxyBid: proxy, Message: "bid accepted"}
		for _, t := range targets {
			result.Outbid = append(result.Outbid, t.notice)
		}
		events = append(events, BidPlaced{DraftID: lot.DraftID, Lot: *updated, ServerTime: now})
		return nil
	})
	if err != nil {
		if IsKind(err, KindConflict) {
			metrics.BidsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.BidsTotal.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	if result.Replayed {
		metrics.BidsTotal.WithLabelValues("replayed").Inc()
		return result, nil
	}
	metrics.BidsTotal.WithLabelValues("accepted").Inc()

	s.logger.Info("bid_placed",
		"draft_id", req.DraftID,
		"lot_id", req.LotID,
		"user_id", req.UserID,
		"current_bid", result.Lot.CurrentBid,
		"bid_count", result.Lot.BidCount,
	)
	s.publish(events)
	s.publishOutbids(targets)
	return result, nil
}

// publishOutbids delivers outbid notices, throttled per (user, lot) to avoid
// spamming during rapid bid wars. The throttle is best-effort and
// process-local.
func (s *Service) publishOutbids(targets []outbidTarget) {
	now := s.clock.Now()
	for _, t := range targets {
		if !s.throttle.Allow(t.userID, t.notice.LotID, now) {
			metrics.OutbidNoticesTotal.WithLabelValues("throttled").Inc()
			continue
		}
		metrics.OutbidNoticesTotal.WithLabelValues("sent").Inc()
		s.bus.Publish(Outbid{
			UserID:   t.userID,
			LotID:    t.notice.LotID,
			PlayerID: t.player,
			NewBid:   t.notice.NewLeadingBid,
		})
	}
}

// checkBidMinimum enforces the bid floor: with no leader the floor is the
// displayed price, a rival must clear it by the minimum increment, and the
// leader may raise their own ceiling but never drop it below the displayed
// price.
func checkBidMinimum(lot *Lot, bidderID uuid.UUID, maxBid, rivalFloor int64) error {
	switch {
	case lot.CurrentBidderID == nil:
		if maxBid < lot.CurrentBid {
			return Validationf("Bid must be at least $%d", lot.CurrentBid)
		}
	case *lot.CurrentBidderID != bidderID:
		if maxBid < rivalFloor {
			return Validationf("Bid must be at least $%d", rivalFloor)
		}
	default:
		if maxBid < lot.CurrentBid {
			return Validationf("Bid must be at least $%d", lot.CurrentBid)
		}
	}
	return nil
}

// draftSettings loads the settings of the lot's draft without taking the
// draft row lock.
func draftSettings(ctx context.Context, st Stores, draftID uuid.UUID) (DraftSettings, error) {
	d, err := st.Drafts().Get(ctx, draftID)
	if err != nil {
		return DraftSettings{}, err
	}
	return d.Settings, nil
}
