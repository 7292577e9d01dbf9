// Package sqlmigrate применяет встроенные SQL-миграции вида
// NNNN_name.up.sql / NNNN_name.down.sql к PostgreSQL и MySQL.
package sqlmigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const lockTimeout = 10 * time.Second

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// Dialect описывает различия СУБД, важные для мигратора.
type Dialect struct {
	Name string
	// TableDDL создаёт таблицу учёта применённых миграций.
	TableDDL string
	// Lock/Unlock: сессионная блокировка, сериализующая параллельные миграторы.
	Lock   string
	Unlock string
	// LockArg передаётся единственным аргументом в Lock и Unlock.
	LockArg any
	// Bind превращает n-й (с единицы) параметр в плейсхолдер диалекта.
	Bind func(n int) string
}

// Postgres — диалект PostgreSQL (advisory lock, $n плейсхолдеры).
var Postgres = Dialect{
	Name: "postgres",
	TableDDL: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	Lock:    "SELECT pg_advisory_lock($1)",
	Unlock:  "SELECT pg_advisory_unlock($1)",
	LockArg: int64(20451187),
	Bind:    func(n int) string { return "$" + strconv.Itoa(n) },
}

// MySQL — диалект MySQL (GET_LOCK, ? плейсхолдеры). DDL в MySQL не транзакционен,
// поэтому упавшая миграция может оставить схему частично применённой.
var MySQL = Dialect{
	Name: "mysql",
	TableDDL: `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
)`,
	Lock:    "SELECT GET_LOCK(?, 10)",
	Unlock:  "SELECT RELEASE_LOCK(?)",
	LockArg: "storefront_schema_migrations",
	Bind:    func(int) string { return "?" },
}

// Migration — пара up/down скриптов одной версии.
type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// Status — состояние схемы.
type Status struct {
	Version int64
	Applied int
	Pending int
}

// Migrator применяет миграции из fsys (файлы под dir) к db.
type Migrator struct {
	db      *sql.DB
	fsys    fs.FS
	dir     string
	dialect Dialect
}

// New создаёт мигратор.
func New(db *sql.DB, fsys fs.FS, dir string, dialect Dialect) *Migrator {
	return &Migrator{db: db, fsys: fsys, dir: dir, dialect: dialect}
}

// Up применяет steps ещё не применённых миграций; steps=0: все.
func (m *Migrator) Up(ctx context.Context, steps int) error {
	return m.withLock(ctx, func(conn *sql.Conn, migrations []Migration) error {
		applied, err := m.appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		done := 0
		for _, mig := range migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			insert := fmt.Sprintf("INSERT INTO schema_migrations (version, name) VALUES (%s, %s)",
				m.dialect.Bind(1), m.dialect.Bind(2))
			if err := m.exec(ctx, conn, mig, "up", mig.Up, insert, mig.Version, mig.Name); err != nil {
				return err
			}
			done++
			if steps > 0 && done >= steps {
				break
			}
		}
		return nil
	})
}

// Down откатывает steps последних миграций; steps<=0 означает один шаг.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return m.withLock(ctx, func(conn *sql.Conn, migrations []Migration) error {
		applied, err := m.appliedVersions(ctx, conn)
		if err != nil {
			return err
		}

		byVersion := make(map[int64]Migration, len(migrations))
		for _, mig := range migrations {
			byVersion[mig.Version] = mig
		}

		versions := make([]int64, 0, len(applied))
		for v := range applied {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
		if len(versions) > steps {
			versions = versions[:steps]
		}

		for _, v := range versions {
			mig, ok := byVersion[v]
			if !ok {
				return fmt.Errorf("cannot rollback unknown migration version %d", v)
			}
			remove := fmt.Sprintf("DELETE FROM schema_migrations WHERE version = %s", m.dialect.Bind(1))
			if err := m.exec(ctx, conn, mig, "down", mig.Down, remove, mig.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

// Status возвращает текущую версию схемы и число применённых/ожидающих миграций.
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	migrations, err := Load(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, m.dialect.TableDDL); err != nil {
		return Status{}, fmt.Errorf("ensure migration table: %w", err)
	}
	applied, err := m.appliedVersions(ctx, conn)
	if err != nil {
		return Status{}, err
	}

	var st Status
	for _, mig := range migrations {
		if _, ok := applied[mig.Version]; ok {
			st.Applied++
			if mig.Version > st.Version {
				st.Version = mig.Version
			}
			continue
		}
		st.Pending++
	}
	return st, nil
}

func (m *Migrator) withLock(ctx context.Context, fn func(*sql.Conn, []Migration) error) error {
	if m == nil || m.db == nil {
		return errors.New("migrator is not initialized")
	}

	migrations, err := Load(m.fsys, m.dir)
	if err != nil {
		return err
	}

	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, m.dialect.Lock, m.dialect.LockArg); err != nil {
		return fmt.Errorf("acquire %s migration lock: %w", m.dialect.Name, err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), m.dialect.Unlock, m.dialect.LockArg)
	}()

	if _, err := conn.ExecContext(ctx, m.dialect.TableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return fn(conn, migrations)
}

func (m *Migrator) exec(ctx context.Context, conn *sql.Conn, mig Migration, direction, body, bookkeeping string, args ...any) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %d): %w", direction, mig.Version, err)
	}

	for _, stmt := range splitStatements(body) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute %s migration %d_%s: %w", direction, mig.Version, mig.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, mig.Version, mig.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, mig.Version, mig.Name, err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Load читает и проверяет миграции из каталога dir.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*Migration)
	for _, file := range files {
		base := path.Base(file)
		parts := fileNamePattern.FindStringSubmatch(base)
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: parts[2]}
			byVersion[version] = mig
		} else if mig.Name != parts[2] {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, mig.Name, parts[2])
		}

		target := &mig.Up
		if parts[3] == "down" {
			target = &mig.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// splitStatements режет скрипт по ';' в конце строки: драйвер MySQL без
// multiStatements выполняет только одну команду за вызов.
func splitStatements(body string) []string {
	var (
		out     []string
		current strings.Builder
	)
	for _, line := range strings.Split(body, "\n") {
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != ";" {
				out = append(out, strings.TrimSuffix(stmt, ";"))
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
