package sqlmigrate

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoad_Success(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/0001_init.up.sql":   {Data: []byte("CREATE TABLE test_a (id INT);")},
		"migrations/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS test_a;")},
		"migrations/0002_more.up.sql":   {Data: []byte("CREATE TABLE test_b (id INT);")},
		"migrations/0002_more.down.sql": {Data: []byte("DROP TABLE IF EXISTS test_b;")},
	}

	migrations, err := Load(fsys, "migrations")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "init" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "more" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		fsys    fstest.MapFS
		message string
	}{
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"migrations/0001_init.up.sql": {Data: []byte("CREATE TABLE a (id INT);")},
			},
			message: "both up and down",
		},
		{
			name: "invalid file name",
			fsys: fstest.MapFS{
				"migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			message: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"migrations/0001_init.up.sql":   {Data: []byte("   \n")},
				"migrations/0001_init.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			message: "empty",
		},
		{
			name: "name mismatch",
			fsys: fstest.MapFS{
				"migrations/0001_init.up.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
				"migrations/0001_other.down.sql": {Data: []byte("DROP TABLE a;")},
			},
			message: "name mismatch",
		},
		{
			name:    "no files",
			fsys:    fstest.MapFS{},
			message: "no migration files",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(tc.fsys, "migrations")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	body := `CREATE TABLE a (
    id INT
);
CREATE INDEX idx_a ON a (id);
INSERT INTO a VALUES (1)`

	stmts := splitStatements(body)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") || strings.HasSuffix(stmts[0], ";") {
		t.Fatalf("unexpected first statement: %q", stmts[0])
	}
	if stmts[2] != "INSERT INTO a VALUES (1)" {
		t.Fatalf("unexpected last statement: %q", stmts[2])
	}
}

func TestDialectBind(t *testing.T) {
	t.Parallel()

	if got := Postgres.Bind(2); got != "$2" {
		t.Fatalf("unexpected postgres placeholder: %s", got)
	}
	if got := MySQL.Bind(2); got != "?" {
		t.Fatalf("unexpected mysql placeholder: %s", got)
	}
}
