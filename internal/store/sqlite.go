package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed record store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at dsn and applies migrations.
// Use ":memory:" for an ephemeral store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: is a separate database, and PRAGMA
	// foreign_keys is per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			mrn TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			gender TEXT NOT NULL DEFAULT '',
			dob TEXT NOT NULL DEFAULT '',
			age INTEGER NOT NULL DEFAULT 0,
			email TEXT,
			phone TEXT,
			doctor_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name)`,
		`CREATE TABLE IF NOT EXISTS transcriptions (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			title TEXT,
			patient_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (patient_id) REFERENCES patients(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_patient ON transcriptions(patient_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS transcription_analyses (
			id TEXT PRIMARY KEY,
			transcription_id TEXT NOT NULL UNIQUE,
			delta_summary TEXT NOT NULL,
			changes_new TEXT NOT NULL,
			changes_resolved TEXT NOT NULL,
			changes_worsened TEXT NOT NULL,
			changes_improved TEXT NOT NULL,
			changes_unchanged TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			FOREIGN KEY (transcription_id) REFERENCES transcriptions(id) ON DELETE CASCADE
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreatePatient inserts p, assigning an id and timestamps when unset.
func (s *Store) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, mrn, name, gender, dob, age, email, phone, doctor_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.MRN, p.Name, p.Gender, p.DOB, p.Age,
		nullString(p.Email), nullString(p.Phone), nullString(p.DoctorID),
		toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// CountPatients returns the number of stored patients.
func (s *Store) CountPatients(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

const patientColumns = `id, mrn, name, gender, dob, age, email, phone, doctor_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var email, phone, doctorID sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.MRN, &p.Name, &p.Gender, &p.DOB, &p.Age,
		&email, &phone, &doctorID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Email, p.Phone, p.DoctorID = email.String, phone.String, doctorID.String
	p.CreatedAt, p.UpdatedAt = fromUnix(createdAt), fromUnix(updatedAt)
	return &p, nil
}

// ListPatients returns every patient ordered by name.
func (s *Store) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	patients := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

// GetPatient returns the patient with id together with its transcriptions.
func (s *Store) GetPatient(ctx context.Context, id string) (*Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}

	p.Transcriptions, err = s.listTranscriptions(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FirstPatient returns the earliest created patient.
func (s *Store) FirstPatient(ctx context.Context) (*Patient, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY created_at ASC, rowid ASC LIMIT 1`)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return p, nil
}

// CreateTranscription inserts t, assigning an id and timestamps.
func (s *Store) CreateTranscription(ctx context.Context, t *Transcription) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcriptions (id, content, title, patient_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Content, nullString(t.Title), t.PatientID, toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// SaveTranscript stores a finalized session transcript. An empty patientID
// falls back to the first patient; ErrNotFound means there is none.
func (s *Store) SaveTranscript(ctx context.Context, patientID, content, title string) (string, error) {
	if patientID == "" {
		p, err := s.FirstPatient(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve patient: %w", err)
		}
		patientID = p.ID
	}

	t := &Transcription{Content: content, Title: title, PatientID: patientID}
	if err := s.CreateTranscription(ctx, t); err != nil {
		return "", err
	}
	return t.ID, nil
}

// ListTranscriptions returns a patient's transcriptions newest first, each
// with its analysis when one exists.
func (s *Store) ListTranscriptions(ctx context.Context, patientID string) ([]Transcription, error) {
	return s.listTranscriptions(ctx, patientID, true)
}

func (s *Store) listTranscriptions(ctx context.Context, patientID string, withAnalysis bool) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, title, patient_id, created_at, updated_at
		FROM transcriptions
		WHERE patient_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	transcriptions := []Transcription{}
	for rows.Next() {
		var t Transcription
		var title sql.NullString
		var createdAt, updatedAt int64
		if err := rows.Scan(&t.ID, &t.Content, &title, &t.PatientID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		t.Title = title.String
		t.CreatedAt, t.UpdatedAt = fromUnix(createdAt), fromUnix(updatedAt)
		transcriptions = append(transcriptions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if withAnalysis {
		for i := range transcriptions {
			a, err := s.GetAnalysis(ctx, transcriptions[i].ID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			transcriptions[i].Analysis = a
		}
	}
	return transcriptions, nil
}

// UpsertAnalysis creates the analysis for transcriptionID or replaces its
// fields if one exists.
func (s *Store) UpsertAnalysis(ctx context.Context, transcriptionID string, f AnalysisFields) (*Analysis, error) {
	cols := make([]string, 0, 6)
	for _, list := range [][]string{f.DeltaSummary, f.ChangesNew, f.ChangesResolved, f.ChangesWorsened, f.ChangesImproved, f.ChangesUnchanged} {
		encoded, err := encodeList(list)
		if err != nil {
			return nil, err
		}
		cols = append(cols, encoded)
	}

	now := toUnix(s.now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcription_analyses (
			id, transcription_id, delta_summary, changes_new, changes_resolved,
			changes_worsened, changes_improved, changes_unchanged, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transcription_id) DO UPDATE SET
			delta_summary = excluded.delta_summary,
			changes_new = excluded.changes_new,
			changes_resolved = excluded.changes_resolved,
			changes_worsened = excluded.changes_worsened,
			changes_improved = excluded.changes_improved,
			changes_unchanged = excluded.changes_unchanged,
			updated_at = excluded.updated_at
	`, uuid.NewString(), transcriptionID, cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert analysis: %w", err)
	}

	return s.GetAnalysis(ctx, transcriptionID)
}

// GetAnalysis returns the analysis stored for transcriptionID.
func (s *Store) GetAnalysis(ctx context.Context, transcriptionID string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, transcription_id, delta_summary, changes_new, changes_resolved,
			changes_worsened, changes_improved, changes_unchanged, created_at, updated_at
		FROM transcription_analyses
		WHERE transcription_id = ?
	`, transcriptionID)

	var a Analysis
	var lists [6]string
	var createdAt, updatedAt int64
	if err := row.Scan(&a.ID, &a.TranscriptionID, &lists[0], &lists[1], &lists[2],
		&lists[3], &lists[4], &lists[5], &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}

	targets := []*[]string{&a.DeltaSummary, &a.ChangesNew, &a.ChangesResolved, &a.ChangesWorsened, &a.ChangesImproved, &a.ChangesUnchanged}
	for i, target := range targets {
		decoded, err := decodeList(lists[i])
		if err != nil {
			return nil, err
		}
		*target = decoded
	}
	a.CreatedAt, a.UpdatedAt = fromUnix(createdAt), fromUnix(updatedAt)
	return &a, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	list := []string{}
	if raw == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return list, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
