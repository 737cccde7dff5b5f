package history

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
	sql     string
}

func embeddedMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, errors.Wrap(err, "reading migrations directory")
	}

	var out []migration
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		// "001_initial.sql" -> 1, "initial"
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := migrationsFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading migration file %s", entry.Name())
		}
		out = append(out, migration{
			version: version,
			name:    strings.TrimSuffix(parts[1], ".sql"),
			sql:     string(content),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].version < out[j].version
	})
	return out, nil
}

// migrate applies every embedded migration not yet recorded in the
// migrations table, each in its own transaction.
func migrate(db *sql.DB) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return 0, errors.Wrap(err, "ensuring migrations table")
	}

	applied := make(map[int]bool)
	rows, err := db.Query("SELECT version FROM migrations")
	if err != nil {
		return 0, errors.Wrap(err, "querying applied migrations")
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return 0, errors.Wrap(err, "scanning migration row")
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	available, err := embeddedMigrations()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range available {
		if applied[m.version] {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return count, errors.Wrapf(err, "applying migration %d (%s)", m.version, m.name)
		}
		count++
	}
	return count, nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec(m.sql); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.version); err != nil {
		return errors.Wrap(err, "recording migration")
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
