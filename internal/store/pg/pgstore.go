// Package pg is the PostgreSQL implementation of the auth and hr stores.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/config"
	"asistencia.org/internal/hr"
	"asistencia.org/internal/ids"
	"asistencia.org/internal/ownership"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ auth.Store = (*Store)(nil)
	_ hr.Store   = (*Store)(nil)
)

// Open connects with the pool limits from cfg. It does not ping.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle; tests pass a sqlmock connection.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Resolver answers ownership questions with a single join per lookup.
func (s *Store) Resolver() *ownership.SQLResolver {
	return ownership.NewSQLResolver(s.db)
}

func (s *Store) stamp() time.Time { return s.now().UTC() }

type scanner interface {
	Scan(dest ...any) error
}

// translate maps driver errors onto the auth sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &auth.ConflictError{Field: constraintField(pgErr.ConstraintName)}
		case "23503":
			// parent row vanished between resolve and write
			return auth.ErrNotFound
		}
	}
	return err
}

func constraintField(name string) string {
	switch name {
	case "usuarios_email_key":
		return auth.FieldEmail
	case "empleados_codigo_key":
		return auth.FieldCode
	case "empleados_dni_key":
		return auth.FieldNationalID
	case "api_keys_key_hash_key":
		return "key_hash"
	}
	return ""
}

// affected turns a zero-row write into auth.ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func newID() string { return ids.New() }

// nextCodeExpr yields the highest short numeric code or national id + 1,
// starting at 10001. Longer numeric values are never cast.
const nextCodeExpr = `(select (greatest(10000,
	coalesce(max(case when codigo ~ '^[0-9]{1,10}$' then codigo::bigint end), 0),
	coalesce(max(case when dni ~ '^[0-9]{1,10}$' then dni::bigint end), 0)) + 1)::text from empleados)`

// loginClashQuery names the field whose value another employee already uses in
// the other login column: a code equal to a national id, or the reverse.
const loginClashQuery = `select case
	when $2 <> '' and exists(select 1 from empleados where id <> $1 and dni = upper($2)) then 'codigo'
	when $3 <> '' and exists(select 1 from empleados where id <> $1 and upper(codigo) = upper($3)) then 'dni'
	else '' end`

// checkLoginClash must run under lockEmployeeCodes.
func checkLoginClash(ctx context.Context, tx *sql.Tx, selfID, code, nationalID string) error {
	if code == "" && nationalID == "" {
		return nil
	}
	var field string
	if err := tx.QueryRowContext(ctx, loginClashQuery, selfID, code, nationalID).Scan(&field); err != nil {
		return err
	}
	if field != "" {
		return &auth.ConflictError{Field: field}
	}
	return nil
}

// employeeCodeLock serializes code generation across concurrent hires.
const employeeCodeLock = 7264001

func lockEmployeeCodes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, employeeCodeLock)
	return err
}
