package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
)

// DraftStore implements auction.DraftStore over drafts and draft_order.
type DraftStore struct {
	db db
}

const draftColumns = `id, league_id, status, draft_type, current_pick, current_roster_id,
	pick_deadline, paused_remaining_sec, settings, created_at`

// scanDraft reads one draft row, decoding the settings blob with defaults.
func scanDraft(row pgx.Row) (*auction.Draft, error) {
	var (
		d        auction.Draft
		rosterID *uuid.UUID
		status   string
		raw      []byte
	)
	err := row.Scan(&d.ID, &d.LeagueID, &status, &d.Type, &d.CurrentPick, &rosterID,
		&d.PickDeadline, &d.PausedRemainingSec, &raw, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = auction.DraftStatus(status)
	if rosterID != nil {
		d.CurrentRosterID = *rosterID
	}
	d.Settings, err = auction.ParseSettings(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Get implements auction.DraftStore.
func (s *DraftStore) Get(ctx context.Context, id uuid.UUID) (*auction.Draft, error) {
	row := s.db.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id)
	d, err := scanDraft(row)
	if err != nil {
		return nil, notFound(err, "draft %s", id)
	}
	return d, nil
}

// GetForUpdate implements auction.DraftStore.
func (s *DraftStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*auction.Draft, error) {
	row := s.db.QueryRow(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDraft(row)
	if err != nil {
		return nil, notFound(err, "draft %s", id)
	}
	return d, nil
}

// Order implements auction.DraftStore.
func (s *DraftStore) Order(ctx context.Context, draftID uuid.UUID) ([]auction.DraftOrderEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT draft_id, roster_id, draft_position
		FROM draft_order
		WHERE draft_id = $1
		ORDER BY draft_position ASC`, draftID)
	if err != nil {
		return nil, auction.Internalf(err, "load draft order")
	}
	defer rows.Close()

	var order []auction.DraftOrderEntry
	for rows.Next() {
		var e auction.DraftOrderEntry
		if err := rows.Scan(&e.DraftID, &e.RosterID, &e.Position); err != nil {
			return nil, auction.Internalf(err, "scan draft order")
		}
		order = append(order, e)
	}
	if err := rows.Err(); err != nil {
		return nil, auction.Internalf(err, "read draft order")
	}
	return order, nil
}

// SetNominator implements auction.DraftStore.
func (s *DraftStore) SetNominator(ctx context.Context, draftID uuid.UUID, pick int, rosterID uuid.UUID, deadline *time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drafts
		SET current_pick = $2, current_roster_id = $3, pick_deadline = $4
		WHERE id = $1`, draftID, pick, rosterID, deadline)
	if err != nil {
		return auction.Internalf(err, "set nominator")
	}
	return nil
}

// SetPickDeadline implements auction.DraftStore.
func (s *DraftStore) SetPickDeadline(ctx context.Context, draftID uuid.UUID, deadline *time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE drafts SET pick_deadline = $2 WHERE id = $1`, draftID, deadline)
	if err != nil {
		return auction.Internalf(err, "set pick deadline")
	}
	return nil
}

// SetStatus implements auction.DraftStore.
func (s *DraftStore) SetStatus(ctx context.Context, draftID uuid.UUID, status auction.DraftStatus) error {
	_, err := s.db.Exec(ctx, `UPDATE drafts SET status = $2 WHERE id = $1`, draftID, string(status))
	if err != nil {
		return auction.Internalf(err, "set draft status")
	}
	return nil
}

// SetPausedRemaining implements auction.DraftStore.
func (s *DraftStore) SetPausedRemaining(ctx context.Context, draftID uuid.UUID, seconds *int64) error {
	_, err := s.db.Exec(ctx, `UPDATE drafts SET paused_remaining_sec = $2 WHERE id = $1`, draftID, seconds)
	if err != nil {
		return auction.Internalf(err, "set paused remaining")
	}
	return nil
}

// MarkCompleted implements auction.DraftStore.
func (s *DraftStore) MarkCompleted(ctx context.Context, draftID uuid.UUID, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drafts
		SET status = $2, completed_at = $3, pick_deadline = NULL, current_roster_id = NULL
		WHERE id = $1`, draftID, string(auction.DraftCompleted), at)
	if err != nil {
		return auction.Internalf(err, "mark draft completed")
	}
	return nil
}

// ExpiredNominations implements auction.DraftStore: in-progress fast auction
// drafts whose nominator clock has passed and which have no active lot.
func (s *DraftStore) ExpiredNominations(ctx context.Context, now time.Time) ([]*auction.Draft, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+draftColumns+`
		FROM drafts d
		WHERE d.status = 'in_progress'
		  AND d.draft_type = 'auction'
		  AND d.pick_deadline IS NOT NULL
		  AND d.pick_deadline <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM auction_lots l
			WHERE l.draft_id = d.id AND l.status = 'active'
		  )`, now)
	if err != nil {
		return nil, auction.Internalf(err, "scan expired nominations")
	}
	defer rows.Close()

	var drafts []*auction.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, auction.Internalf(err, "scan expired draft")
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, auction.Internalf(err, "read expired drafts")
	}
	return drafts, nil
}
