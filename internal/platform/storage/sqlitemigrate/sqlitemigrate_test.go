package sqlitemigrate

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsRunsFilesInOrder(t *testing.T) {
	sqlDB := openTestDB(t)
	migrations := fstest.MapFS{
		"0001_init.sql": {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"0002_next.sql": {Data: []byte("ALTER TABLE a ADD COLUMN name TEXT;")},
	}

	if err := ApplyMigrations(sqlDB, migrations); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO a (id, name) VALUES ('x', 'y')"); err != nil {
		t.Fatalf("expected migrated schema to accept insert: %v", err)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	sqlDB := openTestDB(t)
	migrations := fstest.MapFS{
		"0001_init.sql": {Data: []byte("CREATE TABLE b (id TEXT PRIMARY KEY);")},
	}

	if err := ApplyMigrations(sqlDB, migrations); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyMigrations(sqlDB, migrations); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := `-- +migrate Up
CREATE TABLE c (id TEXT);
-- +migrate Down
DROP TABLE c;`

	up := ExtractUpMigration(content)
	if up != "\nCREATE TABLE c (id TEXT);\n" {
		t.Fatalf("unexpected up section: %q", up)
	}

	plain := "CREATE TABLE d (id TEXT);"
	if ExtractUpMigration(plain) != plain {
		t.Fatal("expected content without markers to pass through")
	}
}

func TestIsAlreadyExistsError(t *testing.T) {
	if !IsAlreadyExistsError(errors.New("table a already exists")) {
		t.Fatal("expected already exists to match")
	}
	if IsAlreadyExistsError(errors.New("syntax error")) {
		t.Fatal("expected syntax error not to match")
	}
}
