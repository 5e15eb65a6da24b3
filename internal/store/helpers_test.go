package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/qms/internal/model"
)

var testDay = model.Day("2026-03-02")

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedQueue inserts an active queue with the given id.
func seedQueue(t *testing.T, s *Store, id int64) {
	t.Helper()
	err := s.UpsertQueue(context.Background(), model.Queue{ID: id, Name: "Queue", Active: true, DepartmentID: id * 10})
	if err != nil {
		t.Fatalf("UpsertQueue() failed: %v", err)
	}
}

// createTestTicket builds a Wait ticket with the minimal required fields.
func createTestTicket(id string, queueID int64, seq int) model.Ticket {
	created := time.Date(2026, 3, 2, 8, 0, seq, 0, time.UTC)
	text := fmt.Sprintf("%04d", seq)
	return model.Ticket{
		ID:           id,
		QueueID:      queueID,
		Sequence:     seq,
		State:        model.StateWait,
		DisplayText:  text,
		Order:        text,
		CreateDate:   testDay,
		CreateTime:   created,
		EstimateTime: created.Add(5 * time.Minute),
	}
}
