package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db     *sql.DB
	driver string
}

// Task is one row of tbltasks.
type Task struct {
	ID          int64
	Title       string
	Description string
	Deadline    Deadline
	Complete    bool
}

func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	ddl, ok := createTasks[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// an in-memory database lives and dies with its connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing db", "error", err)
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Driver() string { return s.driver }

var createTasks = map[string]string{
	DriverMySQL: `CREATE TABLE IF NOT EXISTS tbltasks (
    id INT PRIMARY KEY AUTO_INCREMENT,
    title VARCHAR(100) NOT NULL,
    description TEXT,
    deadline DATETIME NULL,
    complete TINYINT(1) NOT NULL DEFAULT 0
)`,
	DriverSQLite: `CREATE TABLE IF NOT EXISTS tbltasks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT,
    deadline DATETIME NULL,
    complete BOOLEAN NOT NULL DEFAULT 0
)`,
}

const selectTask = `SELECT id, title, description, deadline, complete FROM tbltasks`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads a row leniently: tables created outside Open may hold NULL
// titles or complete flags other than 0 and 1, and any non-zero flag counts
// as complete.
func scanTask(r rowScanner) (Task, error) {
	var t Task
	var title, desc sql.NullString
	var complete flag
	if err := r.Scan(&t.ID, &title, &desc, &t.Deadline, &complete); err != nil {
		return Task{}, err
	}
	t.Title = title.String
	t.Description = desc.String
	t.Complete = bool(complete)
	return t, nil
}

// flag accepts whatever a driver yields for a boolean-like column.
type flag bool

func (f *flag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = false
	case bool:
		*f = flag(v)
	case int64:
		*f = v != 0
	case float64:
		*f = v != 0
	case []byte:
		return f.parse(string(v))
	case string:
		return f.parse(v)
	default:
		return fmt.Errorf("complete: unsupported type %T", src)
	}
	return nil
}

func (f *flag) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*f = false
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = n != 0
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("complete: cannot parse %q", s)
	}
	*f = flag(b)
	return nil
}

// All returns every task in whatever order the database yields them.
func (s *Store) All(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, selectTask)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectTask+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (s *Store) Insert(ctx context.Context, t Task) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tbltasks (title, description, deadline, complete) VALUES (?, ?, ?, ?)`,
		t.Title, t.Description, t.Deadline, t.Complete)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, t Task) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tbltasks SET title = ?, description = ?, deadline = ?, complete = ? WHERE id = ?`,
		t.Title, t.Description, t.Deadline, t.Complete, t.ID)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	return s.expectRow(ctx, res, t.ID)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tbltasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// expectRow turns a zero-row update into ErrNotFound. MySQL reports zero
// affected rows when the new values equal the old ones, so existence is
// rechecked before giving up.
func (s *Store) expectRow(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM tbltasks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
