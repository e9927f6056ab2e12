package approval

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// queueFixtures runs each test against every Queue implementation.
func queueFixtures(t *testing.T) map[string]Queue {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sqliteQueue, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}

	return map[string]Queue{
		"memory": NewMemoryQueue(),
		"sqlite": sqliteQueue,
	}
}

func TestQueueCreate(t *testing.T) {
	for name, queue := range queueFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			req, err := queue.Create(ctx, "u1", "deploy prod")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if req.ID == "" {
				t.Error("expected generated request ID")
			}
			if req.Status != StatusPending {
				t.Errorf("expected PENDING, got %s", req.Status)
			}

			fetched, err := queue.Get(ctx, req.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if fetched.IdentityID != "u1" || fetched.Command != "deploy prod" {
				t.Errorf("unexpected request: %+v", fetched)
			}
		})
	}
}

func TestQueueDecision(t *testing.T) {
	for name, queue := range queueFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			req, err := queue.Create(ctx, "u1", "deploy prod")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if err := queue.UpdateStatus(ctx, req.ID, StatusApproved); err != nil {
				t.Fatalf("UpdateStatus failed: %v", err)
			}
			updated, err := queue.Get(ctx, req.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if updated.Status != StatusApproved {
				t.Errorf("expected APPROVED, got %s", updated.Status)
			}
		})
	}
}

func TestQueueRejectsNonDecisionStatus(t *testing.T) {
	for name, queue := range queueFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			req, err := queue.Create(ctx, "u1", "deploy prod")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if err := queue.UpdateStatus(ctx, req.ID, StatusPending); err == nil {
				t.Error("expected error setting status back to PENDING")
			}
			if err := queue.UpdateStatus(ctx, req.ID, Status("MAYBE")); err == nil {
				t.Error("expected error for unknown status")
			}
		})
	}
}

func TestQueueNotFound(t *testing.T) {
	for name, queue := range queueFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := queue.Get(ctx, "missing"); !errors.Is(err, ErrRequestNotFound) {
				t.Errorf("Get: expected ErrRequestNotFound, got %v", err)
			}
			if err := queue.UpdateStatus(ctx, "missing", StatusApproved); !errors.Is(err, ErrRequestNotFound) {
				t.Errorf("UpdateStatus: expected ErrRequestNotFound, got %v", err)
			}
			if err := queue.Delete(ctx, "missing"); !errors.Is(err, ErrRequestNotFound) {
				t.Errorf("Delete: expected ErrRequestNotFound, got %v", err)
			}
		})
	}
}

func TestQueueListMostRecentFirst(t *testing.T) {
	for name, queue := range queueFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := queue.Create(ctx, "u1", "first")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			second, err := queue.Create(ctx, "u1", "second")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			listed, err := queue.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(listed) != 2 {
				t.Fatalf("expected 2 requests, got %d", len(listed))
			}
			if listed[0].ID != second.ID || listed[1].ID != first.ID {
				t.Errorf("expected most recent first, got %s then %s", listed[0].Command, listed[1].Command)
			}
		})
	}
}

func TestQueueDelete(t *testing.T) {
	for name, queue := range queueFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			req, err := queue.Create(ctx, "u1", "deploy prod")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if err := queue.Delete(ctx, req.ID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := queue.Get(ctx, req.ID); !errors.Is(err, ErrRequestNotFound) {
				t.Errorf("expected ErrRequestNotFound after delete, got %v", err)
			}
		})
	}
}
