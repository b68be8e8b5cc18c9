package qna

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SessionSummary describes the archived items of one session
type SessionSummary struct {
	Name   string    `json:"name" yaml:"name"`
	Count  int       `json:"count" yaml:"count"`
	LastAt time.Time `json:"lastAt" yaml:"lastAt"`
}

// Archive persists QnA items per session in SQLite
type Archive struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenArchive opens (and creates) the archive database at path
func OpenArchive(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return a, nil
}

func (a *Archive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS qna (
		id TEXT PRIMARY KEY,
		session TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		route TEXT NOT NULL DEFAULT '',
		project_mode INTEGER NOT NULL DEFAULT 0,
		question_number INTEGER NOT NULL DEFAULT 0,
		context TEXT,
		extract_ms INTEGER NOT NULL DEFAULT 0,
		answer_ms INTEGER NOT NULL DEFAULT 0,
		doc_push TEXT NOT NULL DEFAULT 'none',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_qna_session_created ON qna(session, created_at DESC);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Put inserts or replaces an item of a session
func (a *Archive) Put(ctx context.Context, session string, item QnA) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	contextJSON, err := json.Marshal(item.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO qna (id, session, question, answer, status, language, source, route,
			project_mode, question_number, context, extract_ms, answer_ms, doc_push, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			status = excluded.status,
			language = excluded.language,
			source = excluded.source,
			route = excluded.route,
			project_mode = excluded.project_mode,
			question_number = excluded.question_number,
			context = excluded.context,
			extract_ms = excluded.extract_ms,
			answer_ms = excluded.answer_ms,
			doc_push = excluded.doc_push,
			updated_at = excluded.updated_at
	`, item.ID, session, item.Question, item.Answer, string(item.Status), item.Language,
		string(item.Source), item.Route, item.ProjectModeAtAnswer, item.QuestionNumber,
		string(contextJSON), item.Timings.ExtractMs, item.Timings.AnswerMs, string(item.DocPush),
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store qna: %w", err)
	}
	return nil
}

// Remove deletes one item
func (a *Archive) Remove(ctx context.Context, session, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.db.ExecContext(ctx, `DELETE FROM qna WHERE session = ? AND id = ?`, session, id); err != nil {
		return fmt.Errorf("failed to delete qna: %w", err)
	}
	return nil
}

// RemoveSession deletes all items of a session and returns how many
func (a *Archive) RemoveSession(ctx context.Context, session string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res, err := a.db.ExecContext(ctx, `DELETE FROM qna WHERE session = ?`, session)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}
	return res.RowsAffected()
}

// RenameSession moves all items to a new session name
func (a *Archive) RenameSession(ctx context.Context, from, to string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.db.ExecContext(ctx, `UPDATE qna SET session = ? WHERE session = ?`, to, from); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	return nil
}

// List returns up to limit items of a session, newest first. limit <= 0
// returns all.
func (a *Archive) List(ctx context.Context, session string, limit int) ([]QnA, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, question, answer, status, language, source, route, project_mode,
			question_number, context, extract_ms, answer_ms, doc_push, created_at, updated_at
		FROM qna WHERE session = ?
		ORDER BY created_at DESC`
	args := []interface{}{session}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list qna: %w", err)
	}
	defer rows.Close()

	var items []QnA
	for rows.Next() {
		var it QnA
		var status, source, docPush string
		var contextJSON sql.NullString
		if err := rows.Scan(&it.ID, &it.Question, &it.Answer, &status, &it.Language, &source,
			&it.Route, &it.ProjectModeAtAnswer, &it.QuestionNumber, &contextJSON,
			&it.Timings.ExtractMs, &it.Timings.AnswerMs, &docPush, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan qna: %w", err)
		}
		it.Status = Status(status)
		it.Source = Source(source)
		it.DocPush = DocPush(docPush)
		if contextJSON.Valid && contextJSON.String != "" {
			_ = json.Unmarshal([]byte(contextJSON.String), &it.Context)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Sessions summarizes all archived sessions ordered by name
func (a *Archive) Sessions(ctx context.Context) ([]SessionSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.QueryContext(ctx, `
		SELECT session, COUNT(*), MAX(created_at)
		FROM qna GROUP BY session ORDER BY session`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var last sql.NullString
		if err := rows.Scan(&s.Name, &s.Count, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if last.Valid {
			s.LastAt = parseSQLiteTime(last.String)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// parseSQLiteTime parses aggregate results, which the driver returns as text
func parseSQLiteTime(v string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Close closes the database
func (a *Archive) Close() error {
	return a.db.Close()
}

// Mirror returns a store mirror writing into the given session
func (a *Archive) Mirror(session string) Mirror {
	return &sessionMirror{archive: a, session: session, timeout: 5 * time.Second}
}

type sessionMirror struct {
	archive *Archive
	session string
	timeout time.Duration
}

func (m *sessionMirror) Put(item QnA) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.archive.Put(ctx, m.session, item)
}

func (m *sessionMirror) Remove(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.archive.Remove(ctx, m.session, id)
}

func (m *sessionMirror) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_, err := m.archive.RemoveSession(ctx, m.session)
	return err
}
