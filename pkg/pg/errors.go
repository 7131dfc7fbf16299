package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConnect          = errors.New("failed to open db connection")
	ErrParseConfig      = errors.New("failed to parse db config")
	ErrHealthcheck      = errors.New("db healthcheck failed")
	ErrMigrate          = errors.New("failed to apply migrations")
	ErrNoMigrationsPath = errors.New("migrations path not provided")
	ErrNoTenantScope    = errors.New("no tenant isolation parameter in context")
)

// IsNotFound reports pgx.ErrNoRows for uniform "absent row" handling.
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKey reports a unique constraint violation (SQLSTATE 23505).
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return err != nil && errors.As(err, &pgErr) && pgErr.Code == "23505"
}
