package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goal-relay/internal/models"
	"github.com/goal-relay/internal/storage"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_EnqueueAndClaim(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Enqueue(ctx, "abc123", "https://v.redd.it/x", "[1]-0 A vs B", false); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	sub, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if sub == nil {
		t.Fatal("expected a claimed submission, got nil")
	}
	if sub.ID != "abc123" || sub.URL != "https://v.redd.it/x" || sub.Title != "[1]-0 A vs B" {
		t.Errorf("claimed submission has wrong data: %+v", sub)
	}
	if sub.Processed == nil {
		t.Error("claimed submission should carry a processed timestamp")
	}

	// queue is now empty
	sub, err = repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim on empty queue errored: %v", err)
	}
	if sub != nil {
		t.Errorf("expected empty queue, claimed %+v", sub)
	}
}

func TestRepository_EnqueueMarkProcessed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Enqueue(ctx, "skipme", "https://example.com", "preview", true); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	done, err := repo.IsProcessed(ctx, "skipme")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if !done {
		t.Error("submission enqueued with markProcessed should report processed")
	}

	// and it must never reach a worker
	sub, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if sub != nil {
		t.Errorf("pre-processed submission should not be claimable, got %+v", sub)
	}
}

func TestRepository_DuplicateEnqueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Enqueue(ctx, "dup1", "https://v.redd.it/x", "title", false); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}

	err := repo.Enqueue(ctx, "dup1", "https://other.example", "other title", true)
	if !errors.Is(err, storage.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	// the original row is untouched: still pending, original data
	sub, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if sub == nil {
		t.Fatal("original row should still be pending")
	}
	if sub.URL != "https://v.redd.it/x" || sub.Title != "title" {
		t.Errorf("duplicate enqueue altered the original row: %+v", sub)
	}
}

func TestRepository_IsProcessed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	done, err := repo.IsProcessed(ctx, "missing")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if done {
		t.Error("unknown submission should not report processed")
	}

	if err := repo.Enqueue(ctx, "pending1", "u", "t", false); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	done, err = repo.IsProcessed(ctx, "pending1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if done {
		t.Error("pending submission should not report processed")
	}

	if _, err := repo.ClaimNext(ctx); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	done, err = repo.IsProcessed(ctx, "pending1")
	if err != nil {
		t.Fatalf("IsProcessed failed: %v", err)
	}
	if !done {
		t.Error("claimed submission should report processed")
	}
}

func TestRepository_ClaimNext_Concurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const total = 50
	for i := 0; i < total; i++ {
		if err := repo.Enqueue(ctx, fmt.Sprintf("sub%03d", i), "u", "t", false); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				sub, err := repo.ClaimNext(ctx)
				if err != nil {
					t.Errorf("claim failed: %v", err)
					return
				}
				if sub == nil {
					return
				}
				mu.Lock()
				seen[sub.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Errorf("expected %d distinct claims, got %d", total, len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("submission %s claimed %d times", id, n)
		}
	}
}

func TestRepository_PurgeOld(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-4 * 24 * time.Hour)
	recent := time.Now().UTC().Add(-1 * time.Hour)

	rows := []models.Submission{
		{ID: "old1", URL: "u", Title: "t", Processed: &old},
		{ID: "recent1", URL: "u", Title: "t", Processed: &recent},
		{ID: "pending1", URL: "u", Title: "t"},
	}
	for i := range rows {
		if err := repo.db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	removed, err := repo.PurgeOld(ctx, 3*24*time.Hour)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 purged row, got %d", removed)
	}

	pending, processed, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("pending row should survive purge, pending=%d", pending)
	}
	if processed != 1 {
		t.Errorf("recently processed row should survive purge, processed=%d", processed)
	}

	// idempotent when nothing qualifies
	removed, err = repo.PurgeOld(ctx, 3*24*time.Hour)
	if err != nil {
		t.Fatalf("second purge failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("second purge removed %d rows, want 0", removed)
	}
}
