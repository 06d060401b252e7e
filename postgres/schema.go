package postgres

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jkap86/ht-mvp-backend-sub000/auction"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the engine's schema. Statements are idempotent so the
// call is safe on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return auction.Internalf(err, "apply schema")
	}
	return nil
}
