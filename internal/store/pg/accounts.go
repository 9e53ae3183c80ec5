package pg

import (
	"context"
	"database/sql"
	"time"

	"asistencia.org/internal/auth"
)

const ownerColumns = `id, nombre, email, password_hash, rol, avatar_url, login_empleados_externo, created_at, updated_at`

func scanOwner(row scanner) (auth.Owner, error) {
	var (
		o    auth.Owner
		role string
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Email, &o.PasswordHash, &role, &o.AvatarURL, &o.ExternalLogin, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return auth.Owner{}, translate(err)
	}
	o.Role = auth.Role(role)
	return o, nil
}

// CreateOwner inserts the owner, its default company and its first employee in
// one transaction.
func (s *Store) CreateOwner(ctx context.Context, in auth.NewOwner) (auth.Registration, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Registration{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.stamp()
	owner, err := scanOwner(tx.QueryRowContext(ctx, `
		insert into usuarios(id, nombre, email, password_hash, rol, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $6)
		returning `+ownerColumns,
		newID(), in.Name, in.Email, in.PasswordHash, string(in.Role), now))
	if err != nil {
		return auth.Registration{}, err
	}

	company := auth.RegisteredCompany{ID: newID(), Name: in.CompanyName}
	if _, err := tx.ExecContext(ctx, `
		insert into empresas(id, usuario_id, nombre, created_at, updated_at)
		values ($1, $2, $3, $4, $4)
	`, company.ID, owner.ID, company.Name, now); err != nil {
		return auth.Registration{}, translate(err)
	}

	if err := lockEmployeeCodes(ctx, tx); err != nil {
		return auth.Registration{}, err
	}
	emp := auth.EmployeeAccount{
		ID:        newID(),
		CompanyID: company.ID,
		OwnerID:   owner.ID,
		Name:      in.Name,
		Email:     in.Email,
		Active:    true,
	}
	if err := tx.QueryRowContext(ctx, `
		insert into empleados(id, empresa_id, codigo, nombre, email, created_at, updated_at)
		values ($1, $2, `+nextCodeExpr+`, $3, $4, $5, $5)
		returning codigo
	`, emp.ID, company.ID, emp.Name, emp.Email, now).Scan(&emp.Code); err != nil {
		return auth.Registration{}, translate(err)
	}

	if err := tx.Commit(); err != nil {
		return auth.Registration{}, err
	}
	return auth.Registration{Owner: owner, Company: company, Employee: emp}, nil
}

func (s *Store) OwnerByEmail(ctx context.Context, email string) (auth.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx, `select `+ownerColumns+` from usuarios where email = $1`, email))
}

func (s *Store) OwnerByID(ctx context.Context, id string) (auth.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx, `select `+ownerColumns+` from usuarios where id = $1`, id))
}

func (s *Store) UpdateOwner(ctx context.Context, id string, upd auth.OwnerUpdate) (auth.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx, `
		update usuarios set
			nombre = coalesce($2, nombre),
			email = coalesce($3, email),
			avatar_url = coalesce($4, avatar_url),
			updated_at = $5
		where id = $1
		returning `+ownerColumns,
		id, upd.Name, upd.Email, upd.AvatarURL, s.stamp()))
}

func (s *Store) SetOwnerPassword(ctx context.Context, id, passwordHash string) error {
	return affected(s.db.ExecContext(ctx,
		`update usuarios set password_hash = $2, updated_at = $3 where id = $1`, id, passwordHash, s.stamp()))
}

func (s *Store) SetExternalLogin(ctx context.Context, id string, enabled bool) (auth.Owner, error) {
	return scanOwner(s.db.QueryRowContext(ctx, `
		update usuarios set login_empleados_externo = $2, updated_at = $3
		where id = $1
		returning `+ownerColumns, id, enabled, s.stamp()))
}

// DeleteOwner relies on the on-delete-cascade foreign keys.
func (s *Store) DeleteOwner(ctx context.Context, id string) error {
	return affected(s.db.ExecContext(ctx, `delete from usuarios where id = $1`, id))
}

// --- employee accounts ---

const accountSelect = `
	select e.id, e.empresa_id, c.usuario_id, e.codigo, coalesce(e.dni, ''), e.nombre, e.email, e.password_hash, e.activo
	from empleados e
	join empresas c on c.id = e.empresa_id`

func scanAccount(row scanner) (auth.EmployeeAccount, error) {
	var a auth.EmployeeAccount
	if err := row.Scan(&a.ID, &a.CompanyID, &a.OwnerID, &a.Code, &a.NationalID, &a.Name, &a.Email, &a.PasswordHash, &a.Active); err != nil {
		return auth.EmployeeAccount{}, translate(err)
	}
	return a, nil
}

// EmployeeAccountByLogin prefers a code match over a national id match.
func (s *Store) EmployeeAccountByLogin(ctx context.Context, login string) (auth.EmployeeAccount, error) {
	return scanAccount(s.db.QueryRowContext(ctx, accountSelect+`
	where e.codigo = $1 or e.dni = upper($1)
	order by (e.codigo = $1) desc
	limit 1`, login))
}

func (s *Store) EmployeeAccountByID(ctx context.Context, id string) (auth.EmployeeAccount, error) {
	return scanAccount(s.db.QueryRowContext(ctx, accountSelect+`
	where e.id = $1`, id))
}

// --- api keys ---

const apiKeyColumns = `id, usuario_id, nombre, prefijo, key_hash, activa, ultimo_uso, created_at`

func scanAPIKey(row scanner, extra ...any) (auth.APIKey, error) {
	var (
		k    auth.APIKey
		used sql.NullTime
	)
	dest := append([]any{&k.ID, &k.OwnerID, &k.Label, &k.Prefix, &k.Hash, &k.Active, &used, &k.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return auth.APIKey{}, translate(err)
	}
	if used.Valid {
		t := used.Time
		k.LastUsedAt = &t
	}
	return k, nil
}

func (s *Store) CreateAPIKey(ctx context.Context, key auth.APIKey) (auth.APIKey, error) {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = s.stamp()
	}
	return scanAPIKey(s.db.QueryRowContext(ctx, `
		insert into api_keys(id, usuario_id, nombre, prefijo, key_hash, activa, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+apiKeyColumns,
		newID(), key.OwnerID, key.Label, key.Prefix, key.Hash, key.Active, key.CreatedAt))
}

func (s *Store) APIKeyByHash(ctx context.Context, hash string) (auth.APIKeyRecord, error) {
	var rec auth.APIKeyRecord
	key, err := scanAPIKey(s.db.QueryRowContext(ctx, `
		select k.id, k.usuario_id, k.nombre, k.prefijo, k.key_hash, k.activa, k.ultimo_uso, k.created_at, u.login_empleados_externo
		from api_keys k
		join usuarios u on u.id = k.usuario_id
		where k.key_hash = $1
	`, hash), &rec.OwnerExternalLogin)
	if err != nil {
		return auth.APIKeyRecord{}, err
	}
	rec.APIKey = key
	return rec, nil
}

func (s *Store) ListAPIKeys(ctx context.Context, ownerID string) ([]auth.APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+apiKeyColumns+` from api_keys
		where usuario_id = $1
		order by created_at asc, id asc
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []auth.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) TouchAPIKey(ctx context.Context, id string, at time.Time) error {
	return affected(s.db.ExecContext(ctx, `update api_keys set ultimo_uso = $2 where id = $1`, id, at.UTC()))
}

// SetAPIKeyActive only matches when the state actually changes, so a repeated
// toggle reports auth.ErrNotFound.
func (s *Store) SetAPIKeyActive(ctx context.Context, id, ownerID string, active bool) (auth.APIKey, error) {
	return scanAPIKey(s.db.QueryRowContext(ctx, `
		update api_keys set activa = $3
		where id = $1 and usuario_id = $2 and activa <> $3
		returning `+apiKeyColumns, id, ownerID, active))
}

func (s *Store) DeleteAPIKey(ctx context.Context, id, ownerID string) error {
	return affected(s.db.ExecContext(ctx, `delete from api_keys where id = $1 and usuario_id = $2`, id, ownerID))
}

// --- sessions ---

func (s *Store) RecordSession(ctx context.Context, rec auth.SessionRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.stamp()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sesiones(id, usuario_id, token_id, ip, user_agent, created_at, expires_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.OwnerID, rec.TokenID, rec.IP, rec.UserAgent, rec.CreatedAt, rec.ExpiresAt)
	return translate(err)
}
