package prefetch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vjcap/internal/media"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := openStoreAt(filepath.Join(t.TempDir(), "prefetch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sig(artist, title string) media.TrackSignature {
	return media.NewSignature(artist, title)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	scheduled, err := store.Enqueue(ctx, sig("Daft Punk", "One More Time"))
	if err != nil {
		t.Fatal(err)
	}
	if !scheduled {
		t.Fatal("first enqueue not scheduled")
	}

	scheduled, err = store.Enqueue(ctx, sig("Daft Punk", "One More Time"))
	if err != nil {
		t.Fatal(err)
	}
	if scheduled {
		t.Error("second enqueue scheduled again")
	}

	// Case and whitespace variants are the same signature.
	scheduled, err = store.Enqueue(ctx, sig("daft  punk", "ONE MORE TIME"))
	if err != nil {
		t.Fatal(err)
	}
	if scheduled {
		t.Error("signature variant scheduled again")
	}
}

func TestEnqueueSkipsZeroSignature(t *testing.T) {
	store := newTestStore(t)
	scheduled, err := store.Enqueue(context.Background(), media.TrackSignature{})
	if err != nil {
		t.Fatal(err)
	}
	if scheduled {
		t.Error("zero signature scheduled")
	}
}

func TestClaimPendingOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, sig("A", "first")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(ctx, sig("B", "second")); err != nil {
		t.Fatal(err)
	}

	job, err := store.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.Signature.Title != "first" {
		t.Fatalf("claimed %+v, want the oldest job", job)
	}
	if job.Status != StatusWorking {
		t.Errorf("claimed status = %q, want working", job.Status)
	}

	second, err := store.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second == nil || second.Signature.Title != "second" {
		t.Fatalf("claimed %+v, want the second job", second)
	}

	drained, err := store.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if drained != nil {
		t.Errorf("claim on drained queue = %+v, want nil", drained)
	}
}

func TestMarkReadyAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := sig("Daft Punk", "Aerodynamic")

	if _, err := store.Enqueue(ctx, s); err != nil {
		t.Fatal(err)
	}
	job, err := store.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkReady(ctx, job.ID, "/cache/abc", 5); err != nil {
		t.Fatal(err)
	}

	got, err := store.Lookup(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != StatusReady || got.ClipDir != "/cache/abc" || got.ClipCount != 5 {
		t.Errorf("Lookup = %+v, want ready with 5 clips", got)
	}

	missing, err := store.Lookup(ctx, sig("Nobody", "Nothing"))
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("Lookup of unknown signature = %+v, want nil", missing)
	}
}

func TestErroredJobIsReEnqueueable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := sig("deadmau5", "Strobe")

	if _, err := store.Enqueue(ctx, s); err != nil {
		t.Fatal(err)
	}
	job, _ := store.ClaimPending(ctx)
	if err := store.MarkError(ctx, job.ID, 3, "transcode failed"); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Lookup(ctx, s)
	if got.Status != StatusError || got.Attempts != 3 || got.LastError != "transcode failed" {
		t.Fatalf("errored job = %+v", got)
	}

	scheduled, err := store.Enqueue(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if !scheduled {
		t.Fatal("errored job not re-enqueued")
	}
	got, _ = store.Lookup(ctx, s)
	if got.Status != StatusPending || got.Attempts != 0 || got.LastError != "" {
		t.Errorf("re-enqueued job = %+v, want fresh pending", got)
	}
}

func TestResetStaleRequeuesWorkingJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, sig("A", "B")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ClaimPending(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := store.ResetStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reset %d jobs, want 1", n)
	}

	job, err := store.ClaimPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil {
		t.Fatal("reset job not claimable")
	}
}

func TestCountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, s := range []media.TrackSignature{sig("A", "1"), sig("B", "2"), sig("C", "3")} {
		if _, err := store.Enqueue(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	job, _ := store.ClaimPending(ctx)
	if err := store.MarkReady(ctx, job.ID, "/cache/x", 2); err != nil {
		t.Fatal(err)
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusPending] != 2 || counts[StatusReady] != 1 {
		t.Errorf("counts = %v, want 2 pending and 1 ready", counts)
	}
}

func TestDeleteOlderThanDropsTerminalRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, sig("A", "old")); err != nil {
		t.Fatal(err)
	}
	job, _ := store.ClaimPending(ctx)
	if err := store.MarkReady(ctx, job.ID, "/cache/old", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Enqueue(ctx, sig("B", "pending")); err != nil {
		t.Fatal(err)
	}

	dirs, err := store.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || dirs[0] != "/cache/old" {
		t.Errorf("deleted dirs = %v, want [/cache/old]", dirs)
	}

	// Pending work survives cleanup.
	if got, _ := store.Lookup(ctx, sig("B", "pending")); got == nil {
		t.Error("pending job deleted by cleanup")
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, sig("A", "1")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := store.Enqueue(ctx, sig("B", "2")); err != nil {
		t.Fatal(err)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].Signature.Artist != "B" {
		t.Errorf("List = %+v, want newest first", jobs)
	}
}
