package ownership

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"asistencia.org/internal/auth"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLResolver checks existence and ownership in one query.
type SQLResolver struct {
	db Querier
}

func NewSQLResolver(db Querier) *SQLResolver {
	return &SQLResolver{db: db}
}

var _ Resolver = (*SQLResolver)(nil)

func (r *SQLResolver) Resolve(ctx context.Context, identity auth.Identity, kind Kind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return auth.ErrNotFound
	}
	var (
		query string
		err   error
	)
	switch {
	case identity.IsOwner():
		query, err = OwnedQuery(kind)
	case identity.IsEmployee():
		query, err = EmployeeQuery(kind)
		if errors.Is(err, errNotEmployeeScoped) {
			return auth.ErrNotFound
		}
	default:
		return auth.ErrUnauthorized
	}
	if err != nil {
		return err
	}

	var found string
	if err := r.db.QueryRowContext(ctx, query, id, identity.ID).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}
