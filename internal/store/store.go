package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	dbFileName = "relink.db"
	// Fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
)

type Store struct {
	db *sql.DB
}

// Lookup is one recorded resolution attempt. It is kept for diagnostics
// only and never consulted when resolving.
type Lookup struct {
	ID          int64
	RequestID   string
	GroupName   string
	ServerName  sql.NullString
	Outcome     string
	SessionID   sql.NullString
	SessionName sql.NullString
	FolderName  sql.NullString
	ThumbURL    sql.NullString
	Error       sql.NullString
	CreatedAt   time.Time
}

func DBPath(storeDir string) string {
	return filepath.Join(storeDir, dbFileName)
}

func Open(storeDir string) (*Store, error) {
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", DBPath(storeDir)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS lookups (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	group_name TEXT NOT NULL,
	server_name TEXT,
	outcome TEXT NOT NULL,
	session_id TEXT,
	session_name TEXT,
	folder_name TEXT,
	thumb_url TEXT,
	error TEXT,
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_lookups_request ON lookups(request_id);
CREATE INDEX IF NOT EXISTS idx_lookups_outcome ON lookups(outcome);
CREATE INDEX IF NOT EXISTS idx_lookups_group ON lookups(group_name);
`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) RecordLookup(l *Lookup) (int64, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(`
INSERT INTO lookups (
	request_id, group_name, server_name, outcome, session_id, session_name,
	folder_name, thumb_url, error, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		l.RequestID,
		l.GroupName,
		nullString(l.ServerName),
		l.Outcome,
		nullString(l.SessionID),
		nullString(l.SessionName),
		nullString(l.FolderName),
		nullString(l.ThumbURL),
		nullString(l.Error),
		l.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("record lookup: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve lookup id: %w", err)
	}
	l.ID = id
	return id, nil
}

const lookupColumns = `id, request_id, group_name, server_name, outcome, session_id, session_name, folder_name, thumb_url, error, created_at`

func (s *Store) ListLookups(outcome string, limit int) ([]Lookup, error) {
	query := `SELECT ` + lookupColumns + ` FROM lookups`
	args := []interface{}{}
	if outcome != "" {
		query += " WHERE outcome = ?"
		args = append(args, outcome)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lookups: %w", err)
	}
	defer rows.Close()

	var out []Lookup
	for rows.Next() {
		l, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list lookups: %w", err)
	}
	return out, nil
}

func (s *Store) GetLookup(id int64) (*Lookup, error) {
	row := s.db.QueryRow(`SELECT `+lookupColumns+` FROM lookups WHERE id = ?`, id)
	l, err := scanLookup(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// PruneLookups deletes records created before cutoff.
func (s *Store) PruneLookups(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM lookups WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune lookups: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune lookups: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLookup(row scanner) (*Lookup, error) {
	var l Lookup
	var created string
	if err := row.Scan(&l.ID, &l.RequestID, &l.GroupName, &l.ServerName, &l.Outcome, &l.SessionID, &l.SessionName, &l.FolderName, &l.ThumbURL, &l.Error, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan lookup: %w", err)
	}
	l.CreatedAt = parseTime(created)
	return &l, nil
}

func NullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullString(v sql.NullString) interface{} {
	if v.Valid {
		return v.String
	}
	return nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
