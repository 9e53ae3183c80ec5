package migrate

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"asistencia.org/migrations"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_init.up.sql":    {Data: []byte("create table a (id text);\n-- comment; with semicolon\ncreate table b (v text default 'x;y');\n")},
		"0001_init.down.sql":  {Data: []byte("drop table b;\ndrop table a;\n")},
		"0002_extra.up.sql":   {Data: []byte("alter table a add column n int;")},
		"0002_extra.down.sql": {Data: []byte("alter table a drop column n;")},
		"README.md":           {Data: []byte("ignored")},
	}
}

func expectEnsure(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	expectEnsure(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("alter table a add column n int").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into schema_migrations").WithArgs("0002_extra.up.sql", now).WillReturnResult(sqlmock.NewResult(1, 1))

	mgr := NewManager(db, testFS(), WithClock(func() time.Time { return now }))
	applied, err := mgr.Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0002_extra.up.sql" {
		t.Fatalf("unexpected applied list %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	expectEnsure(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table a").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err = NewManager(db, testFS()).Up(context.Background())
	if err == nil {
		t.Fatalf("expected failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	expectEnsure(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}).
		AddRow("0001_init.up.sql").AddRow("0002_extra.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("alter table a drop column n").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("delete from schema_migrations where name").WithArgs("0002_extra.up.sql").WillReturnResult(sqlmock.NewResult(0, 1))

	last, err := NewManager(db, testFS()).Down(context.Background())
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if last != "0002_extra.up.sql" {
		t.Fatalf("unexpected rollback %q", last)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownWithNothingApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	expectEnsure(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if _, err := NewManager(db, testFS()).Down(context.Background()); !errors.Is(err, ErrNothingApplied) {
		t.Fatalf("expected ErrNothingApplied, got %v", err)
	}
}

func TestSeedSkipsWithoutFS(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	if err := NewManager(db, testFS()).Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no queries expected: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("create table a (id text);\n-- note; here\ninsert into a values ('x;y');\n")
	var kept []string
	for _, s := range stmts {
		if !blank(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(kept), stmts)
	}
}

func TestEmbeddedSchemaIsComplete(t *testing.T) {
	files, err := collectSQL(migrations.FS, upSuffix)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	for _, f := range files {
		down := f[:len(f)-len(upSuffix)] + downSuffix
		if _, err := migrations.FS.Open(down); err != nil {
			t.Fatalf("missing %s", down)
		}
	}
}
