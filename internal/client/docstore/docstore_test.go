package docstore

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medilink/internal/client/autherr"
	"medilink/internal/shared/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "documents.db"), zerolog.Nop())
	t.Cleanup(func() { _ = s.Close() })
	ready, err := s.WaitReady(context.Background())
	if err != nil || !ready {
		t.Fatalf("store not ready: %v", err)
	}
	return s
}

func sampleDoc(appointmentID string) models.Document {
	return models.Document{
		AppointmentID: appointmentID,
		DoctorID:      "doc-1",
		Filename:      "referral.pdf",
		FileData:      base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 sample")),
		MimeType:      "application/pdf",
	}
}

func TestSaveAndQueryRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	in := sampleDoc("appt-1")
	out, err := s.SaveDocument(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != 0 {
		t.Fatalf("local id must not be round-tripped, got %d", out.ID)
	}

	docs, err := s.DocumentsByAppointment(ctx, "appt-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents", len(docs))
	}
	d := docs[0]
	if d.Filename != in.Filename || d.MimeType != in.MimeType || d.FileData != in.FileData {
		t.Fatalf("stored document differs: %+v", d)
	}
	if d.Status != models.DocumentPending {
		t.Fatalf("status = %q", d.Status)
	}
	if d.ID == 0 || d.CreatedAt.IsZero() {
		t.Fatalf("queried document lacks id or timestamp: %+v", d)
	}
}

func TestQueryScopedToAppointment(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, sampleDoc("appt-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDocument(ctx, sampleDoc("appt-2")); err != nil {
		t.Fatal(err)
	}

	docs, err := s.DocumentsByAppointment(ctx, "appt-2")
	if err != nil || len(docs) != 1 {
		t.Fatalf("docs=%d err=%v", len(docs), err)
	}
	docs, err = s.DocumentsByAppointment(ctx, "appt-3")
	if err != nil {
		t.Fatal(err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("unknown appointment must yield an empty slice, got %#v", docs)
	}
}

func TestUnsupportedRuntimeAsymmetry(t *testing.T) {
	// write path strict, read path lenient
	s := New("", zerolog.Nop())
	ctx := context.Background()

	_, err := s.SaveDocument(ctx, sampleDoc("appt-1"))
	if !errors.Is(err, autherr.ErrStorageUnavailable) {
		t.Fatalf("got %v", err)
	}

	docs, err := s.DocumentsByAppointment(ctx, "appt-1")
	if err != nil {
		t.Fatalf("read path must not fail: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("want empty slice, got %#v", docs)
	}
}

func TestInitFailureIsSticky(t *testing.T) {
	// a directory path cannot be opened as a database file
	dir := t.TempDir()
	s := New(filepath.Join(dir, "missing", "nested", "documents.db"), zerolog.Nop())
	t.Cleanup(func() { _ = s.Close() })

	ready, err := s.WaitReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ready {
		t.Fatal("expected init failure")
	}
	// readiness never recovers within the process
	if s.IsReady() {
		t.Fatal("sticky failure flipped back to ready")
	}
	if _, err := s.SaveDocument(context.Background(), sampleDoc("a")); !errors.Is(err, autherr.ErrStorageUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestSchemaCreateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")

	s1 := New(path, zerolog.Nop())
	if ready, err := s1.WaitReady(context.Background()); err != nil || !ready {
		t.Fatalf("first open: ready=%v err=%v", ready, err)
	}
	if _, err := s1.SaveDocument(context.Background(), sampleDoc("appt-1")); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	// reopening runs the same DDL and must neither fail nor lose rows
	s2 := New(path, zerolog.Nop())
	t.Cleanup(func() { _ = s2.Close() })
	if ready, err := s2.WaitReady(context.Background()); err != nil || !ready {
		t.Fatalf("second open: ready=%v err=%v", ready, err)
	}
	docs, err := s2.DocumentsByAppointment(context.Background(), "appt-1")
	if err != nil || len(docs) != 1 {
		t.Fatalf("docs=%d err=%v", len(docs), err)
	}
}

func TestWaitReadyHonorsContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// settled store still answers even under a dead context
	if _, err := s.WaitReady(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DocumentsByAppointment(ctx, "appt-1"); err == nil {
		t.Fatal("cancelled context must surface")
	}
}

func TestMarkViewed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, sampleDoc("appt-1")); err != nil {
		t.Fatal(err)
	}
	docs, _ := s.DocumentsByAppointment(ctx, "appt-1")
	if len(docs) != 1 {
		t.Fatalf("docs=%d", len(docs))
	}
	if err := s.MarkViewed(ctx, docs[0].ID); err != nil {
		t.Fatal(err)
	}
	docs, _ = s.DocumentsByAppointment(ctx, "appt-1")
	if docs[0].Status != models.DocumentViewed {
		t.Fatalf("status = %q", docs[0].Status)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, name := range []string{"first.pdf", "second.pdf", "third.pdf"} {
		d := sampleDoc("appt-1")
		d.Filename = name
		if _, err := s.SaveDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
	docs, err := s.DocumentsByAppointment(ctx, "appt-1")
	if err != nil || len(docs) != 3 {
		t.Fatalf("docs=%d err=%v", len(docs), err)
	}
	for i, want := range []string{"first.pdf", "second.pdf", "third.pdf"} {
		if docs[i].Filename != want {
			t.Fatalf("docs[%d] = %q", i, docs[i].Filename)
		}
	}
}
