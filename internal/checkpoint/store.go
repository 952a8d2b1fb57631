// Package checkpoint persists snapshots of a form-filling session so that a
// draft and its conversation can be resumed after a restart.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/a3tai/mcp-form-pilot/internal/checkpoint/migrations"
	"github.com/a3tai/mcp-form-pilot/internal/conversation"
	"github.com/a3tai/mcp-form-pilot/internal/document"
	"github.com/a3tai/mcp-form-pilot/internal/form"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
)

// DatabaseName is the file name of the store inside its directory
const DatabaseName = "checkpoints.db"

// ErrNotFound is returned when no checkpoint matches
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is a full snapshot of a session
type Checkpoint struct {
	ID        string                 `json:"id"`
	Form      string                 `json:"form"`
	Draft     *form.Draft            `json:"draft"`
	History   []conversation.Message `json:"history"`
	Documents []document.Document    `json:"documents"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Info describes a stored checkpoint without its payload
type Info struct {
	ID         string    `json:"id"`
	Form       string    `json:"form"`
	Unanswered int       `json:"unanswered"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is a SQLite backed checkpoint store
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
	log  *logger.Logger
}

// Open creates or opens the store in dir
func Open(dir string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}

	dbPath := filepath.Join(dir, DatabaseName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath, now: time.Now, log: log}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("checkpoint store opened", "path", dbPath)
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Save stores a snapshot of draft, history and documents. The draft's
// LastSaved is stamped with the checkpoint time.
func (s *Store) Save(ctx context.Context, draft *form.Draft, history []conversation.Message,
	docs []document.Document) (Info, error) {
	if draft == nil {
		return Info{}, errors.New("no draft to checkpoint")
	}

	now := s.now().Truncate(time.Second)
	draft.LastSaved = form.Timestamp{Time: now}

	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return Info{}, fmt.Errorf("marshalling draft: %w", err)
	}
	if history == nil {
		history = []conversation.Message{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return Info{}, fmt.Errorf("marshalling history: %w", err)
	}
	if docs == nil {
		docs = []document.Document{}
	}
	docsJSON, err := json.Marshal(docs)
	if err != nil {
		return Info{}, fmt.Errorf("marshalling documents: %w", err)
	}

	info := Info{
		ID:         uuid.NewString(),
		Form:       draft.FormFileName,
		Unanswered: draft.UnansweredCount(),
		CreatedAt:  now.UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, form, draft, history, documents, unanswered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, info.ID, info.Form, string(draftJSON), string(historyJSON), string(docsJSON),
		info.Unanswered, now.UnixNano())
	if err != nil {
		return Info{}, fmt.Errorf("saving checkpoint: %w", err)
	}

	s.log.Info("checkpoint saved", "id", info.ID, "form", info.Form, "unanswered", info.Unanswered)
	return info, nil
}

// Load returns the checkpoint with the given id
func (s *Store) Load(ctx context.Context, id string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, form, draft, history, documents, created_at
		FROM checkpoints WHERE id = ?
	`, id)
	return scanCheckpoint(row)
}

// Latest returns the most recent checkpoint, restricted to formName when it
// is not empty
func (s *Store) Latest(ctx context.Context, formName string) (*Checkpoint, error) {
	query := `SELECT id, form, draft, history, documents, created_at FROM checkpoints`
	var args []any
	if formName != "" {
		query += ` WHERE form = ?`
		args = append(args, formName)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`
	return scanCheckpoint(s.db.QueryRowContext(ctx, query, args...))
}

// List returns checkpoint summaries, newest first
func (s *Store) List(ctx context.Context, formName string) ([]Info, error) {
	query := `SELECT id, form, unanswered, created_at FROM checkpoints`
	var args []any
	if formName != "" {
		query += ` WHERE form = ?`
		args = append(args, formName)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var created int64
		if err := rows.Scan(&info.ID, &info.Form, &info.Unanswered, &created); err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a checkpoint
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting checkpoint: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCheckpoint(row *sql.Row) (*Checkpoint, error) {
	var (
		cp                            Checkpoint
		draftJSON, historyJSON, docsJ string
		created                       int64
	)
	err := row.Scan(&cp.ID, &cp.Form, &draftJSON, &historyJSON, &docsJ, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning checkpoint: %w", err)
	}

	draft, err := form.Parse([]byte(draftJSON))
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", cp.ID, err)
	}
	cp.Draft = draft
	if err := json.Unmarshal([]byte(historyJSON), &cp.History); err != nil {
		return nil, fmt.Errorf("checkpoint %s: decode history: %w", cp.ID, err)
	}
	if err := json.Unmarshal([]byte(docsJ), &cp.Documents); err != nil {
		return nil, fmt.Errorf("checkpoint %s: decode documents: %w", cp.ID, err)
	}
	cp.CreatedAt = time.Unix(0, created).UTC()
	return &cp, nil
}
