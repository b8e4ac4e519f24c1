// Package store provides the sqlite-backed local state store: the
// persisted countdown session, plus agenda/finance collections that
// back the polling live source used by the watch command and tests.
// The production document store is an external collaborator; the hub
// only ever sees the LiveSource interface.
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "freelance-remind/internal/errors"
	"freelance-remind/internal/models"
)

// AgendaRecord is a raw agenda item as the external store shapes it.
type AgendaRecord struct {
	ID    string
	Title string
	Date  string // YYYY-MM-DD
	Time  string // HH:MM, optional
}

// FinanceRecord is a raw finance item as the external store shapes it.
type FinanceRecord struct {
	ID          string
	Type        string // income, expense
	Status      string // pending, paid
	Amount      float64
	Description string
	Date        string // YYYY-MM-DD
}

// Store is a sqlite-backed local store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (and if needed initializes) the store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrapf(err, "opening database %s", dbPath)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "initializing schema")
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	-- Single-row countdown session; end_time in unix milliseconds.
	CREATE TABLE IF NOT EXISTS countdown_session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		mode TEXT NOT NULL,
		end_time INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agenda (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_agenda_user_date ON agenda(user_id, date);

	CREATE TABLE IF NOT EXISTS finance (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_finance_user_status ON finance(user_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists the countdown session, replacing any previous
// one. Called on every tick while running; deliberately cheap.
func (s *Store) SaveSession(session models.CountdownSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO countdown_session (id, mode, end_time) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET mode = excluded.mode, end_time = excluded.end_time`,
		string(session.Mode), session.EndTime.UnixMilli(),
	)
	return err
}

// LoadSession returns the persisted countdown session, or ErrNoSession.
func (s *Store) LoadSession() (models.CountdownSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mode string
	var endMilli int64
	err := s.db.QueryRow(`SELECT mode, end_time FROM countdown_session WHERE id = 1`).Scan(&mode, &endMilli)
	if err == sql.ErrNoRows {
		return models.CountdownSession{}, apperrors.ErrNoSession
	}
	if err != nil {
		return models.CountdownSession{}, err
	}
	return models.CountdownSession{
		Mode:    models.CountdownMode(mode),
		EndTime: time.UnixMilli(endMilli),
	}, nil
}

// DeleteSession removes the persisted countdown session.
func (s *Store) DeleteSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM countdown_session WHERE id = 1`)
	return err
}

// UpsertAgenda inserts or replaces an agenda record.
func (s *Store) UpsertAgenda(ctx context.Context, userID string, r AgendaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agenda (id, user_id, title, date, time) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, date = excluded.date, time = excluded.time`,
		r.ID, userID, r.Title, r.Date, r.Time,
	)
	return err
}

// DeleteAgenda removes an agenda record.
func (s *Store) DeleteAgenda(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM agenda WHERE id = ?`, id)
	return err
}

// ListAgenda returns a user's agenda records dated within [from, to],
// ascending. Dates compare lexically because of the YYYY-MM-DD shape.
func (s *Store) ListAgenda(ctx context.Context, userID, from, to string) ([]AgendaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, date, time FROM agenda
		 WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date, time`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AgendaRecord
	for rows.Next() {
		var r AgendaRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Date, &r.Time); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpsertFinance inserts or replaces a finance record.
func (s *Store) UpsertFinance(ctx context.Context, userID string, r FinanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO finance (id, user_id, type, status, amount, description, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET type = excluded.type, status = excluded.status,
		 amount = excluded.amount, description = excluded.description, date = excluded.date`,
		r.ID, userID, r.Type, r.Status, r.Amount, r.Description, r.Date,
	)
	return err
}

// DeleteFinance removes a finance record.
func (s *Store) DeleteFinance(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM finance WHERE id = ?`, id)
	return err
}

// ListPendingFinance returns a user's pending finance records,
// ascending by date, with no upper date bound so overdue items stay
// visible.
func (s *Store) ListPendingFinance(ctx context.Context, userID string) ([]FinanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, status, amount, description, date FROM finance
		 WHERE user_id = ? AND status = 'pending' ORDER BY date`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FinanceRecord
	for rows.Next() {
		var r FinanceRecord
		if err := rows.Scan(&r.ID, &r.Type, &r.Status, &r.Amount, &r.Description, &r.Date); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
