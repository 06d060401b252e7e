// Package postgres persists the auction engine in PostgreSQL using pgx. It
// provides the lot/draft/roster repositories, the advisory lock manager and
// the locked transaction runner the service runs inside, plus the completion
// finalizer that materializes won lots onto rosters.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
	"github.com/jkap86/ht-mvp-backend-sub000/log"
)

// db is the querying surface shared by pgxpool.Pool and pgx.Tx, so the same
// store code serves locked transactions and unlocked reads.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Runner implements auction.Runner: each locked unit of work is one
// transaction bracketed by a transaction-scoped advisory lock, so the lock
// releases exactly at commit or rollback.
type Runner struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewRunner creates a Runner over a pgx pool.
func NewRunner(pool *pgxpool.Pool) *Runner {
	return &Runner{pool: pool, logger: log.Default().Module("postgres")}
}

// InLockedTx opens a transaction, takes pg_advisory_xact_lock(domain, key)
// and runs fn over transaction-scoped stores. The transaction commits only
// when fn returns nil.
func (r *Runner) InLockedTx(ctx context.Context, domain auction.LockDomain, key uuid.UUID, fn func(ctx context.Context, s auction.Stores) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return auction.Internalf(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, int32(domain), LockKey(key)); err != nil {
		return auction.Internalf(err, "acquire %s advisory lock", domain)
	}
	if err := fn(ctx, &storeSet{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return auction.Internalf(err, "commit transaction")
	}
	return nil
}

// Read runs fn against committed state on the pool, with no lock and no
// transaction.
func (r *Runner) Read(ctx context.Context, fn func(ctx context.Context, s auction.Stores) error) error {
	return fn(ctx, &storeSet{db: r.pool})
}

// storeSet bundles the repositories over one querying surface.
type storeSet struct {
	db db
}

// Drafts implements auction.Stores.
func (s *storeSet) Drafts() auction.DraftStore { return &DraftStore{db: s.db} }

// Lots implements auction.Stores.
func (s *storeSet) Lots() auction.LotStore { return &LotStore{db: s.db} }

// Rosters implements auction.Stores.
func (s *storeSet) Rosters() auction.RosterStore { return &RosterStore{db: s.db} }

// Players implements auction.Stores.
func (s *storeSet) Players() auction.PlayerCatalog { return &PlayerCatalog{db: s.db} }

// notFound maps pgx.ErrNoRows onto the engine's NotFound kind.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return auction.NotFoundf(format, args...)
	}
	return auction.Internalf(err, format, args...)
}
