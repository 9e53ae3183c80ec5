package pg

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"asistencia.org/internal/auth"
	"asistencia.org/internal/hr"
	"asistencia.org/internal/ownership"
)

var fixedNow = time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := New(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func ownerRow(id, email string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "nombre", "email", "password_hash", "rol", "avatar_url", "login_empleados_externo", "created_at", "updated_at"}).
		AddRow(id, "Ana", email, "hash", "ADMIN", "", false, fixedNow, fixedNow)
}

func TestCreateOwnerRunsInOneTransaction(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into usuarios").
		WithArgs(sqlmock.AnyArg(), "Ana", "ana@example.com", "hash", "ADMIN", fixedNow).
		WillReturnRows(ownerRow("u1", "ana@example.com"))
	mock.ExpectExec("insert into empresas").
		WithArgs(sqlmock.AnyArg(), "u1", auth.DefaultCompanyName, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("insert into empleados").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Ana", "ana@example.com", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"codigo"}).AddRow("10001"))
	mock.ExpectCommit()

	reg, err := s.CreateOwner(context.Background(), auth.NewOwner{
		Name:         "Ana",
		Email:        "ana@example.com",
		PasswordHash: "hash",
		Role:         auth.RoleAdmin,
		CompanyName:  auth.DefaultCompanyName,
	})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	if reg.Owner.ID != "u1" || reg.Owner.Role != auth.RoleAdmin {
		t.Fatalf("unexpected owner %+v", reg.Owner)
	}
	if reg.Employee.Code != "10001" || reg.Employee.CompanyID != reg.Company.ID || reg.Employee.OwnerID != "u1" {
		t.Fatalf("unexpected employee %+v", reg.Employee)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOwnerDuplicateEmailIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into usuarios").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "usuarios_email_key"})
	mock.ExpectRollback()

	_, err := s.CreateOwner(context.Background(), auth.NewOwner{Email: "ana@example.com", Role: auth.RoleAdmin})
	var conflict *auth.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != auth.FieldEmail {
		t.Fatalf("expected email conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOwnerByEmailMissing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from usuarios where email").WithArgs("x@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := s.OwnerByEmail(context.Background(), "x@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEmployeeAccountByLoginPrefersCode(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("where e.codigo = $1 or e.dni = upper($1)")).
		WithArgs("10001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "empresa_id", "usuario_id", "codigo", "dni", "nombre", "email", "password_hash", "activo"}).
			AddRow("e1", "c1", "u1", "10001", "", "Ana", "", "hash", true))

	acct, err := s.EmployeeAccountByLogin(context.Background(), "10001")
	if err != nil {
		t.Fatalf("EmployeeAccountByLogin: %v", err)
	}
	if acct.OwnerID != "u1" || acct.CompanyID != "c1" || !acct.Active {
		t.Fatalf("unexpected account %+v", acct)
	}
}

func TestSetAPIKeyActiveNoChangeIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("where id = $1 and usuario_id = $2 and activa <> $3")).
		WithArgs("k1", "u1", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := s.SetAPIKeyActive(context.Background(), "k1", "u1", false); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteAPIKeyScopedToOwner(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("delete from api_keys where id = $1 and usuario_id = $2")).
		WithArgs("k1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteAPIKey(context.Background(), "k1", "u2"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAPIKeyByHashJoinsOwnerFlag(t *testing.T) {
	s, mock := newMock(t)
	used := fixedNow.Add(-time.Hour)
	mock.ExpectQuery("from api_keys k").WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"id", "usuario_id", "nombre", "prefijo", "key_hash", "activa", "ultimo_uso", "created_at", "login_empleados_externo"}).
			AddRow("k1", "u1", "kiosk", "ak_12345678", "deadbeef", true, used, fixedNow, true))

	rec, err := s.APIKeyByHash(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("APIKeyByHash: %v", err)
	}
	if !rec.OwnerExternalLogin || !rec.Active || rec.OwnerID != "u1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.LastUsedAt == nil || !rec.LastUsedAt.Equal(used) {
		t.Fatalf("unexpected last use %v", rec.LastUsedAt)
	}
}

func TestCreateEmployeeCodeConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("dni = upper").WithArgs("", "500", "").
		WillReturnRows(sqlmock.NewRows([]string{"field"}).AddRow(""))
	mock.ExpectQuery("insert into empleados").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "empleados_codigo_key"})
	mock.ExpectRollback()

	_, err := s.CreateEmployee(context.Background(), hr.NewEmployee{CompanyID: "c1", Code: "500", Name: "Ana"})
	var conflict *auth.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != auth.FieldCode {
		t.Fatalf("expected code conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateEmployeeLocksWhenGeneratingCode(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("insert into empleados").
		WillReturnRows(sqlmock.NewRows([]string{"id", "empresa_id", "codigo", "dni", "nombre", "email", "puesto", "activo", "has_password", "created_at", "updated_at"}).
			AddRow("e2", "c1", "10002", "", "Luis", "", "", true, false, fixedNow, fixedNow))
	mock.ExpectCommit()

	emp, err := s.CreateEmployee(context.Background(), hr.NewEmployee{CompanyID: "c1", Name: "Luis"})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	if emp.Code != "10002" || emp.HasPassword {
		t.Fatalf("unexpected employee %+v", emp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateEmployeeCodeMatchingNationalIDIsConflict(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("dni = upper").WithArgs("", "12345678z", "").
		WillReturnRows(sqlmock.NewRows([]string{"field"}).AddRow(auth.FieldCode))
	mock.ExpectRollback()

	_, err := s.CreateEmployee(context.Background(), hr.NewEmployee{CompanyID: "c1", Code: "12345678z", Name: "Ana"})
	var conflict *auth.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != auth.FieldCode {
		t.Fatalf("expected code conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateEmployeeNationalIDMatchingCodeIsConflict(t *testing.T) {
	s, mock := newMock(t)
	nid := "10001"
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("dni = upper").WithArgs("e1", "", nid).
		WillReturnRows(sqlmock.NewRows([]string{"field"}).AddRow(auth.FieldNationalID))
	mock.ExpectRollback()

	_, err := s.UpdateEmployee(context.Background(), "e1", hr.EmployeeUpdate{NationalID: &nid})
	var conflict *auth.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != auth.FieldNationalID {
		t.Fatalf("expected national id conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateEmployeeWithoutLoginFieldsSkipsLock(t *testing.T) {
	s, mock := newMock(t)
	name := "Luisa"
	mock.ExpectBegin()
	mock.ExpectQuery("update empleados").
		WillReturnRows(sqlmock.NewRows([]string{"id", "empresa_id", "codigo", "dni", "nombre", "email", "puesto", "activo", "has_password", "created_at", "updated_at"}).
			AddRow("e1", "c1", "10001", "", name, "", "", true, false, fixedNow, fixedNow))
	mock.ExpectCommit()

	emp, err := s.UpdateEmployee(context.Background(), "e1", hr.EmployeeUpdate{Name: &name})
	if err != nil {
		t.Fatalf("UpdateEmployee: %v", err)
	}
	if emp.Name != name {
		t.Fatalf("unexpected employee %+v", emp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNextCodeCastsOnlyShortNumericValues(t *testing.T) {
	for _, want := range []string{`codigo ~ '^[0-9]{1,10}$'`, `dni ~ '^[0-9]{1,10}$'`, "greatest(10000"} {
		if !strings.Contains(nextCodeExpr, want) {
			t.Fatalf("code generator missing %q", want)
		}
	}
	if strings.Contains(nextCodeExpr, "[0-9]+$") {
		t.Fatal("code generator must not cast unbounded numeric values")
	}
}

func TestListTasksEmptyIsNotNil(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from tareas").WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "empleado_id", "titulo", "descripcion", "completada", "created_at", "updated_at"}))

	tasks, err := s.ListTasks(context.Background(), "e1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty slice, got %#v", tasks)
	}
}

func TestForeignKeyViolationIsNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("insert into tareas").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	if _, err := s.CreateTask(context.Background(), hr.Task{EmployeeID: "gone", Title: "x"}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolverUsesJoinQuery(t *testing.T) {
	s, mock := newMock(t)
	query, err := ownership.OwnedQuery(ownership.KindTask)
	if err != nil {
		t.Fatalf("OwnedQuery: %v", err)
	}
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("t1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))

	if err := s.Resolver().Resolve(context.Background(), auth.OwnerIdentity("u1"), ownership.KindTask, "t1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
