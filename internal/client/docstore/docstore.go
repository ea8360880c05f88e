// Package docstore is the device-local document cache: uploaded files are
// held as base64 blobs in an embedded sqlite database, keyed by
// appointment. The engine initializes asynchronously and only where the
// runtime supports it; callers gate on the readiness signal.
package docstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"medilink/internal/client/autherr"
	"medilink/internal/shared/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		appointment_id TEXT NOT NULL,
		doctor_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_data TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	);
	CREATE INDEX IF NOT EXISTS idx_documents_appointment
		ON documents(appointment_id);
`

// Store is the local cache. Initialization runs once per process in the
// background; failure is sticky and leaves the store in the unsupported
// state for the rest of the process lifetime.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time

	settled chan struct{} // closed once init settles either way
	ready   bool          // valid only after settled is closed
}

type Option func(*Store)

// WithClock overrides the created-at timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens the cache at dsn and starts the one-shot background
// initialization. An empty dsn means the runtime does not support local
// storage: the store settles immediately as unsupported.
func New(dsn string, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		log:     log.With().Str("component", "docstore").Logger(),
		now:     time.Now,
		settled: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	if dsn == "" {
		s.log.Info().Msg("local document storage disabled")
		close(s.settled)
		return s
	}
	go s.init(dsn)
	return s
}

func (s *Store) init(dsn string) {
	defer close(s.settled)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		s.log.Warn().Err(err).Msg("local document storage unavailable")
		return
	}
	if _, err := db.Exec(schema); err != nil {
		s.log.Warn().Err(err).Msg("local document storage unavailable")
		_ = db.Close()
		return
	}
	s.db = db
	s.ready = true
	s.log.Info().Str("dsn", dsn).Msg("document cache ready")
}

// WaitReady blocks until initialization settles and reports whether the
// cache is usable. It returns early only on context cancellation.
func (s *Store) WaitReady(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	select {
	case <-s.settled:
		return s.ready, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// IsReady reports readiness without blocking. False may mean either
// "still initializing" or "unsupported".
func (s *Store) IsReady() bool {
	select {
	case <-s.settled:
		return s.ready
	default:
		return false
	}
}

// SaveDocument inserts one record. The write path is strict: an
// unsupported or failed store surfaces StorageUnavailable. The returned
// record's ID is deliberately left unset.
func (s *Store) SaveDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	ready, err := s.WaitReady(ctx)
	if err != nil {
		return models.Document{}, err
	}
	if !ready {
		return models.Document{}, autherr.New(autherr.ErrStorageUnavailable,
			"Document could not be saved on this device.", nil)
	}

	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}
	doc.CreatedAt = s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents(appointment_id, doctor_id, filename, file_data, mime_type, created_at, status)
		VALUES(?,?,?,?,?,?,?)
	`, doc.AppointmentID, doc.DoctorID, doc.Filename, doc.FileData, doc.MimeType, doc.CreatedAt, string(doc.Status))
	if err != nil {
		return models.Document{}, autherr.New(autherr.ErrStorageUnavailable,
			"Document could not be saved on this device.", err)
	}
	doc.ID = 0
	return doc, nil
}

// DocumentsByAppointment lists cached documents for one appointment. The
// read path is lenient: an unsupported store, and even a failing query,
// yield an empty slice instead of an error. Only context cancellation is
// surfaced.
func (s *Store) DocumentsByAppointment(ctx context.Context, appointmentID string) ([]models.Document, error) {
	ready, err := s.WaitReady(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return []models.Document{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, appointment_id, doctor_id, filename, file_data, mime_type, created_at, status
		FROM documents WHERE appointment_id = ? ORDER BY created_at, id
	`, appointmentID)
	if err != nil {
		s.log.Warn().Err(err).Str("appointment", appointmentID).Msg("document query failed")
		return []models.Document{}, nil
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		var status string
		if err := rows.Scan(&d.ID, &d.AppointmentID, &d.DoctorID, &d.Filename,
			&d.FileData, &d.MimeType, &d.CreatedAt, &status); err != nil {
			s.log.Warn().Err(err).Msg("document row unreadable")
			return []models.Document{}, nil
		}
		d.Status = models.DocumentStatus(status)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn().Err(err).Msg("document scan aborted")
		return []models.Document{}, nil
	}
	return docs, nil
}

// MarkViewed flips a cached document's status once it has been opened.
func (s *Store) MarkViewed(ctx context.Context, id int64) error {
	ready, err := s.WaitReady(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return autherr.New(autherr.ErrStorageUnavailable,
			"Document could not be updated on this device.", nil)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET status = ? WHERE id = ?`, string(models.DocumentViewed), id)
	return err
}

// Close releases the underlying connection once initialization settled.
func (s *Store) Close() error {
	<-s.settled
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
