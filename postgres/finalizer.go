package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
)

// Finalizer materializes a completed draft's won lots onto league rosters. It
// runs inside the same locked transaction that marks the draft completed, so
// completion and roster materialization commit atomically.
type Finalizer struct{}

// NewFinalizer creates the roster materialization hook.
func NewFinalizer() *Finalizer { return &Finalizer{} }

// FinalizeDraft implements auction.Finalizer. The stores must come from this
// package's Runner so the insert joins the surrounding transaction.
func (f *Finalizer) FinalizeDraft(ctx context.Context, s auction.Stores, draftID, leagueID uuid.UUID) error {
	set, ok := s.(*storeSet)
	if !ok {
		return auction.Internalf(nil, "finalizer requires postgres-backed stores")
	}
	_, err := set.db.Exec(ctx, `
		INSERT INTO roster_players (roster_id, league_id, player_id, acquisition_type, acquisition_cost, acquired_at)
		SELECT winning_roster_id, $2, player_id, 'auction', winning_bid, NOW()
		FROM auction_lots
		WHERE draft_id = $1 AND status = 'won'
		ON CONFLICT (roster_id, player_id) DO NOTHING`, draftID, leagueID)
	if err != nil {
		return auction.Internalf(err, "materialize won lots onto rosters")
	}
	return nil
}
