package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
)

// PlayerCatalog implements auction.PlayerCatalog over players and
// nomination_queues.
type PlayerCatalog struct {
	db db
}

// Exists implements auction.PlayerCatalog.
func (s *PlayerCatalog) Exists(ctx context.Context, playerID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM players WHERE id = $1)`, playerID).Scan(&exists)
	if err != nil {
		return false, auction.Internalf(err, "check player exists")
	}
	return exists, nil
}

// availablePredicate excludes players already tied up in this draft: an
// active or won lot takes the player off the board.
const availablePredicate = `NOT EXISTS (
	SELECT 1 FROM auction_lots l
	WHERE l.draft_id = $1 AND l.player_id = p.id AND l.status IN ('active', 'won')
)`

// BestAvailable implements auction.PlayerCatalog. Priority: the nominator's
// queue in queue order, then season ADP, then any available player.
func (s *PlayerCatalog) BestAvailable(ctx context.Context, draftID, rosterID uuid.UUID) (uuid.UUID, bool, error) {
	var playerID uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT q.player_id
		FROM nomination_queues q
		JOIN players p ON p.id = q.player_id
		WHERE q.draft_id = $1 AND q.roster_id = $2 AND `+availablePredicate+`
		ORDER BY q.queue_position ASC
		LIMIT 1`, draftID, rosterID).Scan(&playerID)
	if err == nil {
		return playerID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, auction.Internalf(err, "query nomination queue")
	}

	err = s.db.QueryRow(ctx, `
		SELECT p.id
		FROM players p
		WHERE `+availablePredicate+`
		ORDER BY p.adp ASC NULLS LAST, p.id ASC
		LIMIT 1`, draftID).Scan(&playerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, auction.Internalf(err, "query best available player")
	}
	return playerID, true, nil
}

// AnyAvailable implements auction.PlayerCatalog.
func (s *PlayerCatalog) AnyAvailable(ctx context.Context, draftID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM players p WHERE `+availablePredicate+`)`, draftID).
		Scan(&exists)
	if err != nil {
		return false, auction.Internalf(err, "check available players")
	}
	return exists, nil
}
