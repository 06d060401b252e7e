package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
)

// RosterStore implements auction.RosterStore over rosters.
type RosterStore struct {
	db db
}

// Get implements auction.RosterStore.
func (s *RosterStore) Get(ctx context.Context, id uuid.UUID) (*auction.Roster, error) {
	var r auction.Roster
	err := s.db.QueryRow(ctx, `
		SELECT id, league_id, user_id FROM rosters WHERE id = $1`, id).
		Scan(&r.ID, &r.LeagueID, &r.UserID)
	if err != nil {
		return nil, notFound(err, "roster %s", id)
	}
	return &r, nil
}

// ByUser implements auction.RosterStore. A user without a roster in the league
// is not a member, which is a permission failure rather than a missing row.
func (s *RosterStore) ByUser(ctx context.Context, leagueID, userID uuid.UUID) (*auction.Roster, error) {
	var r auction.Roster
	err := s.db.QueryRow(ctx, `
		SELECT id, league_id, user_id FROM rosters
		WHERE league_id = $1 AND user_id = $2`, leagueID, userID).
		Scan(&r.ID, &r.LeagueID, &r.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.Forbiddenf("user is not a member of this league")
		}
		return nil, auction.Internalf(err, "load roster by user")
	}
	return &r, nil
}
