// Package history keeps a record of past searches in a SQLite database.
package history

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/segmentio/ksuid"

	"github.com/rubiojr/sieve/pkg/core"
	"github.com/rubiojr/sieve/pkg/log"
)

var ErrNotFound = errors.New("search not found")

// Entry is one recorded search.
type Entry struct {
	ID          string        `json:"id"`
	Query       string        `json:"query"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	ResultCount int           `json:"result_count"`
	Engines     []EngineRun   `json:"engines"`
	// Results is only filled by Get.
	Results []core.Result `json:"results,omitempty"`
}

// EngineRun is one engine's outcome within a search.
type EngineRun struct {
	Engine     core.Engine   `json:"engine"`
	Results    int           `json:"results"`
	Duplicates int           `json:"duplicates"`
	Elapsed    time.Duration `json:"elapsed"`
	Error      string        `json:"error,omitempty"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and brings its
// schema up to date.
func Open(dbPath string) (*Store, error) {
	// Connection scoped pragmas go in the DSN so every pooled connection
	// gets them.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "applying pragma %q", pragma)
		}
	}

	n, err := migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if n > 0 {
		log.ForService("history").Debugf("applied %d migrations to %s", n, dbPath)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e and returns its id. A new id is assigned when e.ID is
// empty.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = ksuid.New().String()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.ResultCount == 0 {
		e.ResultCount = len(e.Results)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO searches (id, query, started_at, elapsed_ms, result_count) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Query, formatTime(e.StartedAt), e.Elapsed.Milliseconds(), e.ResultCount,
	); err != nil {
		return "", errors.Wrap(err, "inserting search")
	}

	for _, run := range e.Engines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO engine_runs (search_id, engine, results, duplicates, elapsed_ms, error) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, run.Engine.String(), run.Results, run.Duplicates, run.Elapsed.Milliseconds(), run.Error,
		); err != nil {
			return "", errors.Wrapf(err, "inserting %s run", run.Engine)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (search_id, position, url_id, engine, url, title, description, image, date, date_relative)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", errors.Wrap(err, "preparing result insert")
	}
	defer stmt.Close()

	for i, r := range e.Results {
		date, relative := "", false
		if r.Date != nil {
			date, relative = formatTime(r.Date.Time), r.Date.Relative
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, i, r.ID(), r.Engine.String(), r.URL, r.Title, r.Description, r.Image, date, relative,
		); err != nil {
			return "", errors.Wrapf(err, "inserting result %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "committing search")
	}
	return e.ID, nil
}

// List returns the most recent searches, newest first. A non empty filter
// keeps searches whose query contains it, case insensitively.
func (s *Store) List(ctx context.Context, filter string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, query, started_at, elapsed_ms, result_count FROM searches`
	var args []any
	if filter = strings.TrimSpace(filter); filter != "" {
		query += ` WHERE query LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter)+"%")
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing searches")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		runs, err := s.engineRuns(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Engines = runs
	}
	return out, nil
}

// Get returns a search with its engine runs and results.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, started_at, elapsed_ms, result_count FROM searches WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return nil, err
	}

	if e.Engines, err = s.engineRuns(ctx, id); err != nil {
		return nil, err
	}
	if e.Results, err = s.results(ctx, id); err != nil {
		return nil, err
	}
	return &e, nil
}

// Prune deletes everything but the newest keep searches and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM searches WHERE id NOT IN (
		SELECT id FROM searches ORDER BY started_at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, errors.Wrap(err, "pruning searches")
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var started string
	var elapsed int64
	if err := sc.Scan(&e.ID, &e.Query, &started, &elapsed, &e.ResultCount); err != nil {
		return e, err
	}
	t, err := parseTime(started)
	if err != nil {
		return e, errors.Wrapf(err, "search %s", e.ID)
	}
	e.StartedAt = t
	e.Elapsed = time.Duration(elapsed) * time.Millisecond
	return e, nil
}

func (s *Store) engineRuns(ctx context.Context, id string) ([]EngineRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT engine, results, duplicates, elapsed_ms, error FROM engine_runs WHERE search_id = ?`, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying engine runs")
	}
	defer rows.Close()

	var out []EngineRun
	for rows.Next() {
		var run EngineRun
		var slug string
		var elapsed int64
		if err := rows.Scan(&slug, &run.Results, &run.Duplicates, &elapsed, &run.Error); err != nil {
			return nil, errors.Wrap(err, "scanning engine run")
		}
		if run.Engine, err = core.ParseEngine(slug); err != nil {
			return nil, err
		}
		run.Elapsed = time.Duration(elapsed) * time.Millisecond
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(out)
	return out, nil
}

func (s *Store) results(ctx context.Context, id string) ([]core.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT engine, url, title, description, image, date, date_relative
		 FROM results WHERE search_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	defer rows.Close()

	var out []core.Result
	for rows.Next() {
		var r core.Result
		var slug, date string
		var relative bool
		if err := rows.Scan(&slug, &r.URL, &r.Title, &r.Description, &r.Image, &date, &relative); err != nil {
			return nil, errors.Wrap(err, "scanning result")
		}
		if r.Engine, err = core.ParseEngine(slug); err != nil {
			return nil, err
		}
		if date != "" {
			t, err := parseTime(date)
			if err != nil {
				return nil, err
			}
			r.Date = &core.ResultDate{Time: t, Relative: relative}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func sortRuns(runs []EngineRun) {
	slices.SortFunc(runs, func(a, b EngineRun) int {
		return cmp.Compare(a.Engine, b.Engine)
	})
}

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
