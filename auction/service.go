package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/log"
	"github.com/jkap86/ht-mvp-backend-sub000/metrics"
)

// outbidThrottleWindow bounds outbid notices per (user, lot).
const outbidThrottleWindow = 3 * time.Second

// Service orchestrates the fast auction draft: nominate, bid, rotation,
// auto-nominate, settlement and completion. All mutations run inside locked
// transactions supplied by the Runner; events publish only after commit.
type Service struct {
	runner    Runner
	bus       EventSink
	clock     Clock
	finalizer Finalizer
	logger    *log.Logger
	throttle  *outbidThrottle
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithBus sets the post-commit event sink.
func WithBus(bus EventSink) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

// WithClock sets the time source, primarily for tests.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithFinalizer sets the completion hook invoked when the draft finishes.
func WithFinalizer(f Finalizer) ServiceOption {
	return func(s *Service) { s.finalizer = f }
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates the auction service on top of a locked transaction
// runner.
func NewService(runner Runner, opts ...ServiceOption) *Service {
	s := &Service{
		runner:    runner,
		bus:       NewBus(),
		clock:     SystemClock{},
		finalizer: NopFinalizer{},
		logger:    log.Default().Module("auction"),
		throttle:  newOutbidThrottle(outbidThrottleWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// publish delivers buffered events after a successful commit.
func (s *Service) publish(events []Event) {
	for _, ev := range events {
		s.bus.Publish(ev)
	}
}

// observe records the locked-transaction latency of one operation.
func (s *Service) observe(op string, start time.Time) {
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// loadFastAuctionDraft loads a draft and verifies it is an in-progress fast
// auction draft.
func loadFastAuctionDraft(ctx context.Context, st Stores, draftID uuid.UUID) (*Draft, error) {
	d, err := st.Drafts().Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if err := checkFastAuction(d); err != nil {
		return nil, err
	}
	return d, nil
}

// checkFastAuction validates draft type, mode and status for a mutating
// operation.
func checkFastAuction(d *Draft) error {
	if d.Type != DraftTypeAuction {
		return Validationf("draft is not an auction draft")
	}
	if d.Settings.AuctionMode != AuctionModeFast {
		return Validationf("draft is not a fast auction")
	}
	switch d.Status {
	case DraftInProgress:
		return nil
	case DraftPaused:
		return Validationf("Draft is paused; bidding is suspended")
	default:
		return Validationf("draft is not in progress")
	}
}

// lotDeadline computes a fresh lot's bid deadline: now plus the nomination
// window, capped by the max lot duration when set.
func lotDeadline(now time.Time, settings DraftSettings) time.Time {
	deadline := now.Add(settings.NominationWindow())
	if maxDur := settings.MaxLotDuration(); maxDur != nil {
		limit := now.Add(*maxDur)
		if deadline.After(limit) {
			deadline = limit
		}
	}
	return deadline
}

// GetState returns the draft read model: the active lot, the nominator clock
// and every roster's budget line. No lock is taken; the view is of committed
// state.
func (s *Service) GetState(ctx context.Context, draftID uuid.UUID) (*DraftState, error) {
	var state *DraftState
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().Get(ctx, draftID)
		if err != nil {
			return err
		}
		active, err := st.Lots().ActiveLot(ctx, draftID)
		if err != nil {
			return err
		}
		order, err := st.Drafts().Order(ctx, draftID)
		if err != nil {
			return err
		}
		snaps, err := st.Lots().BudgetSnapshots(ctx, draftID)
		if err != nil {
			return err
		}

		budgets := make([]RosterBudget, 0, len(order))
		for _, entry := range order {
			snap := snaps[entry.RosterID]
			afford := MaxAffordableBid(d.Settings.AuctionBudget, d.Settings.RosterSlots, snap, 0, false, d.Settings.MinBid)
			if afford < 0 {
				afford = 0
			}
			budgets = append(budgets, RosterBudget{
				RosterID:          entry.RosterID,
				Spent:             snap.Spent,
				WonCount:          snap.WonCount,
				LeadingCommitment: snap.LeadingCommitment,
				MaxAffordableBid:  afford,
			})
		}

		state = &DraftState{
			DraftID:            d.ID,
			Status:             d.Status,
			ActiveLot:          active,
			CurrentNominatorID: d.CurrentRosterID,
			NominationNumber:   d.CurrentPick,
			NominationDeadline: d.PickDeadline,
			Budgets:            budgets,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetCurrentNominator resolves the current nominator's roster and user, or
// nil when no rotation is underway.
func (s *Service) GetCurrentNominator(ctx context.Context, draftID uuid.UUID) (*Nominator, error) {
	var nominator *Nominator
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		d, err := st.Drafts().Get(ctx, draftID)
		if err != nil {
			return err
		}
		if d.CurrentRosterID == uuid.Nil {
			return nil
		}
		roster, err := st.Rosters().Get(ctx, d.CurrentRosterID)
		if err != nil {
			return err
		}
		nominator = &Nominator{RosterID: roster.ID, UserID: roster.UserID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nominator, nil
}

// GetLotHistory returns the lot's append-only bid history. Histories are
// visible to every league member.
func (s *Service) GetLotHistory(ctx context.Context, draftID, lotID uuid.UUID) ([]BidHistoryEntry, error) {
	var history []BidHistoryEntry
	err := s.runner.Read(ctx, func(ctx context.Context, st Stores) error {
		lot, err := st.Lots().Get(ctx, lotID)
		if err != nil {
			return err
		}
		if lot.DraftID != draftID {
			return NotFoundf("lot %s does not belong to draft %s", lotID, draftID)
		}
		history, err = st.Lots().History(ctx, lotID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
