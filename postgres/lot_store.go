package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
)

// LotStore implements auction.LotStore over auction_lots, auction_proxy_bids
// and auction_bid_history.
type LotStore struct {
	db db
}

const lotColumns = `id, draft_id, player_id, nominator_roster_id, current_bid,
	current_bidder_roster_id, bid_count, bid_deadline, status, winning_roster_id,
	winning_bid, paused_remaining_sec, created_at, idempotency_key`

// scanLot reads one lot row.
func scanLot(row pgx.Row) (*auction.Lot, error) {
	var (
		l      auction.Lot
		status string
	)
	err := row.Scan(&l.ID, &l.DraftID, &l.PlayerID, &l.NominatorRosterID, &l.CurrentBid,
		&l.CurrentBidderID, &l.BidCount, &l.BidDeadline, &status, &l.WinningRosterID,
		&l.WinningBid, &l.PausedRemainingSec, &l.CreatedAt, &l.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	l.Status = auction.LotStatus(status)
	return &l, nil
}

// Get implements auction.LotStore.
func (s *LotStore) Get(ctx context.Context, id uuid.UUID) (*auction.Lot, error) {
	row := s.db.QueryRow(ctx, `SELECT `+lotColumns+` FROM auction_lots WHERE id = $1`, id)
	l, err := scanLot(row)
	if err != nil {
		return nil, notFound(err, "lot %s", id)
	}
	return l, nil
}

// GetForUpdate implements auction.LotStore.
func (s *LotStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*auction.Lot, error) {
	row := s.db.QueryRow(ctx, `SELECT `+lotColumns+` FROM auction_lots WHERE id = $1 FOR UPDATE`, id)
	l, err := scanLot(row)
	if err != nil {
		return nil, notFound(err, "lot %s", id)
	}
	return l, nil
}

// ActiveLot implements auction.LotStore.
func (s *LotStore) ActiveLot(ctx context.Context, draftID uuid.UUID) (*auction.Lot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+lotColumns+` FROM auction_lots
		WHERE draft_id = $1 AND status = 'active'`, draftID)
	l, err := scanLot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, auction.Internalf(err, "load active lot")
	}
	return l, nil
}

// ByIdempotencyKey implements auction.LotStore.
func (s *LotStore) ByIdempotencyKey(ctx context.Context, draftID uuid.UUID, key string) (*auction.Lot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+lotColumns+` FROM auction_lots
		WHERE draft_id = $1 AND idempotency_key = $2`, draftID, key)
	l, err := scanLot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, auction.Internalf(err, "load lot by idempotency key")
	}
	return l, nil
}

// PlayerHasLot implements auction.LotStore.
func (s *LotStore) PlayerHasLot(ctx context.Context, draftID, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM auction_lots
			WHERE draft_id = $1 AND player_id = $2 AND status IN ('active', 'won')
		)`, draftID, playerID).Scan(&exists)
	if err != nil {
		return false, auction.Internalf(err, "check player lot")
	}
	return exists, nil
}

// Insert implements auction.LotStore.
func (s *LotStore) Insert(ctx context.Context, lot *auction.Lot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO auction_lots (id, draft_id, player_id, nominator_roster_id,
			current_bid, current_bidder_roster_id, bid_count, bid_deadline, status,
			created_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lot.ID, lot.DraftID, lot.PlayerID, lot.NominatorRosterID,
		lot.CurrentBid, lot.CurrentBidderID, lot.BidCount, lot.BidDeadline, string(lot.Status),
		lot.CreatedAt, lot.IdempotencyKey)
	if err != nil {
		return auction.Internalf(err, "insert lot")
	}
	return nil
}

// UpdateBidCAS implements auction.LotStore. The predicate repeats the
// previously observed bid and leader so a write that lost a race matches zero
// rows even if a codepath ever skipped the row lock.
func (s *LotStore) UpdateBidCAS(ctx context.Context, lotID uuid.UUID, prevBid int64, prevLeader *uuid.UUID, newBid int64, newLeader uuid.UUID, newBidCount int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE auction_lots
		SET current_bid = $4, current_bidder_roster_id = $5, bid_count = $6
		WHERE id = $1
		  AND current_bid = $2
		  AND current_bidder_roster_id IS NOT DISTINCT FROM $3
		  AND status = 'active'`,
		lotID, prevBid, prevLeader, newBid, newLeader, newBidCount)
	if err != nil {
		return false, auction.Internalf(err, "update lot bid")
	}
	return tag.RowsAffected() == 1, nil
}

// SetDeadline implements auction.LotStore.
func (s *LotStore) SetDeadline(ctx context.Context, lotID uuid.UUID, deadline *time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE auction_lots SET bid_deadline = $2 WHERE id = $1`, lotID, deadline)
	if err != nil {
		return auction.Internalf(err, "set lot deadline")
	}
	return nil
}

// SetPausedRemaining implements auction.LotStore.
func (s *LotStore) SetPausedRemaining(ctx context.Context, lotID uuid.UUID, seconds *int64) error {
	_, err := s.db.Exec(ctx, `UPDATE auction_lots SET paused_remaining_sec = $2 WHERE id = $1`, lotID, seconds)
	if err != nil {
		return auction.Internalf(err, "set lot paused remaining")
	}
	return nil
}

// Settle implements auction.LotStore.
func (s *LotStore) Settle(ctx context.Context, lotID uuid.UUID, status auction.LotStatus, winner *uuid.UUID, winningBid *int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE auction_lots
		SET status = $2, winning_roster_id = $3, winning_bid = $4, bid_deadline = NULL
		WHERE id = $1 AND status = 'active'`,
		lotID, string(status), winner, winningBid)
	if err != nil {
		return auction.Internalf(err, "settle lot")
	}
	return nil
}

// Expired implements auction.LotStore.
func (s *LotStore) Expired(ctx context.Context, now time.Time) ([]*auction.Lot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+lotColumns+` FROM auction_lots
		WHERE status = 'active' AND bid_deadline IS NOT NULL AND bid_deadline <= $1`, now)
	if err != nil {
		return nil, auction.Internalf(err, "scan expired lots")
	}
	defer rows.Close()
	return collectLots(rows)
}

// WonLots implements auction.LotStore.
func (s *LotStore) WonLots(ctx context.Context, draftID uuid.UUID) ([]*auction.Lot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+lotColumns+` FROM auction_lots
		WHERE draft_id = $1 AND status = 'won'
		ORDER BY created_at ASC`, draftID)
	if err != nil {
		return nil, auction.Internalf(err, "load won lots")
	}
	defer rows.Close()
	return collectLots(rows)
}

func collectLots(rows pgx.Rows) ([]*auction.Lot, error) {
	var lots []*auction.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, auction.Internalf(err, "scan lot")
		}
		lots = append(lots, l)
	}
	if err := rows.Err(); err != nil {
		return nil, auction.Internalf(err, "read lots")
	}
	return lots, nil
}

// ProxyBids implements auction.LotStore. The ordering is the resolver's input
// contract: max descending, earliest insertion first on ties.
func (s *LotStore) ProxyBids(ctx context.Context, lotID uuid.UUID) ([]auction.RankedProxyBid, error) {
	rows, err := s.db.Query(ctx, `
		SELECT roster_id, max_bid
		FROM auction_proxy_bids
		WHERE lot_id = $1
		ORDER BY max_bid DESC, created_at ASC`, lotID)
	if err != nil {
		return nil, auction.Internalf(err, "load proxy bids")
	}
	defer rows.Close()

	var bids []auction.RankedProxyBid
	for rows.Next() {
		var b auction.RankedProxyBid
		if err := rows.Scan(&b.RosterID, &b.MaxBid); err != nil {
			return nil, auction.Internalf(err, "scan proxy bid")
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, auction.Internalf(err, "read proxy bids")
	}
	return bids, nil
}

// GetProxyBid implements auction.LotStore.
func (s *LotStore) GetProxyBid(ctx context.Context, lotID, rosterID uuid.UUID) (*auction.ProxyBid, error) {
	var b auction.ProxyBid
	err := s.db.QueryRow(ctx, `
		SELECT lot_id, roster_id, max_bid, created_at, updated_at
		FROM auction_proxy_bids
		WHERE lot_id = $1 AND roster_id = $2`, lotID, rosterID).
		Scan(&b.LotID, &b.RosterID, &b.MaxBid, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, auction.Internalf(err, "load proxy bid")
	}
	return &b, nil
}

// UpsertProxyBid implements auction.LotStore. created_at is preserved on
// conflict so tie-breaking by earliest insertion stays stable across raises.
func (s *LotStore) UpsertProxyBid(ctx context.Context, lotID, rosterID uuid.UUID, maxBid int64, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO auction_proxy_bids (lot_id, roster_id, max_bid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (lot_id, roster_id) DO UPDATE
		SET max_bid = EXCLUDED.max_bid, updated_at = EXCLUDED.updated_at`,
		lotID, rosterID, maxBid, now)
	if err != nil {
		return auction.Internalf(err, "upsert proxy bid")
	}
	return nil
}

// AppendHistory implements auction.LotStore. Rows replaying an idempotency
// key are dropped by the partial unique index.
func (s *LotStore) AppendHistory(ctx context.Context, e *auction.BidHistoryEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO auction_bid_history (id, lot_id, roster_id, bid_amount, is_proxy, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lot_id, roster_id, idempotency_key) WHERE idempotency_key IS NOT NULL
		DO NOTHING`,
		e.ID, e.LotID, e.RosterID, e.Amount, e.IsProxy, e.IdempotencyKey, e.CreatedAt)
	if err != nil {
		return auction.Internalf(err, "append bid history")
	}
	return nil
}

// HistoryByIdempotencyKey implements auction.LotStore.
func (s *LotStore) HistoryByIdempotencyKey(ctx context.Context, lotID, rosterID uuid.UUID, key string) (*auction.BidHistoryEntry, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, lot_id, roster_id, bid_amount, is_proxy, idempotency_key, created_at
		FROM auction_bid_history
		WHERE lot_id = $1 AND roster_id = $2 AND idempotency_key = $3`, lotID, rosterID, key)
	e, err := scanHistory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, auction.Internalf(err, "load history by idempotency key")
	}
	return e, nil
}

// History implements auction.LotStore.
func (s *LotStore) History(ctx context.Context, lotID uuid.UUID) ([]auction.BidHistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, lot_id, roster_id, bid_amount, is_proxy, idempotency_key, created_at
		FROM auction_bid_history
		WHERE lot_id = $1
		ORDER BY created_at ASC, id ASC`, lotID)
	if err != nil {
		return nil, auction.Internalf(err, "load bid history")
	}
	defer rows.Close()

	var history []auction.BidHistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, auction.Internalf(err, "scan bid history")
		}
		history = append(history, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, auction.Internalf(err, "read bid history")
	}
	return history, nil
}

func scanHistory(row pgx.Row) (*auction.BidHistoryEntry, error) {
	var e auction.BidHistoryEntry
	err := row.Scan(&e.ID, &e.LotID, &e.RosterID, &e.Amount, &e.IsProxy, &e.IdempotencyKey, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// BudgetSnapshot implements auction.LotStore, deriving the triple from
// committed lot state in one aggregate pass.
func (s *LotStore) BudgetSnapshot(ctx context.Context, draftID, rosterID uuid.UUID) (auction.BudgetSnapshot, error) {
	var snap auction.BudgetSnapshot
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(winning_bid) FILTER (WHERE status = 'won' AND winning_roster_id = $2), 0),
			COUNT(*) FILTER (WHERE status = 'won' AND winning_roster_id = $2),
			COALESCE(SUM(current_bid) FILTER (WHERE status = 'active' AND current_bidder_roster_id = $2), 0)
		FROM auction_lots
		WHERE draft_id = $1`, draftID, rosterID).
		Scan(&snap.Spent, &snap.WonCount, &snap.LeadingCommitment)
	if err != nil {
		return auction.BudgetSnapshot{}, auction.Internalf(err, "derive budget snapshot")
	}
	return snap, nil
}

// BudgetSnapshots implements auction.LotStore.
func (s *LotStore) BudgetSnapshots(ctx context.Context, draftID uuid.UUID) (map[uuid.UUID]auction.BudgetSnapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT roster_id,
			COALESCE(SUM(winning_bid) FILTER (WHERE status = 'won'), 0),
			COUNT(*) FILTER (WHERE status = 'won'),
			COALESCE(SUM(current_bid) FILTER (WHERE status = 'active'), 0)
		FROM (
			SELECT winning_roster_id AS roster_id, status, winning_bid, 0::bigint AS current_bid
			FROM auction_lots
			WHERE draft_id = $1 AND status = 'won'
			UNION ALL
			SELECT current_bidder_roster_id AS roster_id, status, 0::bigint, current_bid
			FROM auction_lots
			WHERE draft_id = $1 AND status = 'active' AND current_bidder_roster_id IS NOT NULL
		) activity
		GROUP BY roster_id`, draftID)
	if err != nil {
		return nil, auction.Internalf(err, "derive budget snapshots")
	}
	defer rows.Close()

	snaps := make(map[uuid.UUID]auction.BudgetSnapshot)
	for rows.Next() {
		var (
			rosterID uuid.UUID
			snap     auction.BudgetSnapshot
		)
		if err := rows.Scan(&rosterID, &snap.Spent, &snap.WonCount, &snap.LeadingCommitment); err != nil {
			return nil, auction.Internalf(err, "scan budget snapshot")
		}
		snaps[rosterID] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, auction.Internalf(err, "read budget snapshots")
	}
	return snaps, nil
}
