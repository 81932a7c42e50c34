package dedup

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func newTestHistory(t *testing.T, cap int) *History {
	t.Helper()
	return NewHistory(filepath.Join(t.TempDir(), "history.json"), cap, nil)
}

func TestFilterReturnsUnseen(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("X", []string{"1", "2", "3"})

	got := h.Filter("X", []string{"1", "2", "4", "5"})
	want := []string{"4", "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter = %v, want %v", got, want)
	}
}

func TestFilterDoesNotMutate(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("X", []string{"1"})

	h.Filter("X", []string{"2", "3"})
	if got := h.Seen("X"); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Filter mutated history: %v", got)
	}
}

func TestRecordPreservesInsertionOrder(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("X", []string{"1", "2", "3"})
	h.Record("X", []string{"4", "5"})

	want := []string{"1", "2", "3", "4", "5"}
	if got := h.Seen("X"); !reflect.DeepEqual(got, want) {
		t.Errorf("Seen = %v, want %v", got, want)
	}
}

func TestRecordEvictsOldestFirst(t *testing.T) {
	h := newTestHistory(t, 3)
	h.Record("X", []string{"1", "2", "3"})
	h.Record("X", []string{"4", "5"})

	want := []string{"3", "4", "5"}
	if got := h.Seen("X"); !reflect.DeepEqual(got, want) {
		t.Errorf("after eviction Seen = %v, want %v", got, want)
	}
}

func TestRecordIgnoresDuplicates(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("X", []string{"1", "2"})
	h.Record("X", []string{"2", "3"})

	want := []string{"1", "2", "3"}
	if got := h.Seen("X"); !reflect.DeepEqual(got, want) {
		t.Errorf("Seen = %v, want %v", got, want)
	}
}

func TestArtistBucketsAreCaseless(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("Daft Punk", []string{"1"})

	got := h.Filter("daft  punk", []string{"1", "2"})
	if !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("case/whitespace variants should share a bucket, Filter = %v", got)
	}
}

func TestDistinctArtistsIndependent(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("A", []string{"1"})

	got := h.Filter("B", []string{"1"})
	if !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("artist B should not see artist A's history, Filter = %v", got)
	}
}

func TestHistoryPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	first := NewHistory(path, 200, nil)
	first.Record("X", []string{"1", "2"})

	second := NewHistory(path, 200, nil)
	if got := second.Seen("X"); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("after restart Seen = %v, want [1 2]", got)
	}
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewHistory(path, 200, nil)
	if got := h.Seen("X"); got != nil {
		t.Errorf("corrupt state should start empty, Seen = %v", got)
	}
	// Must remain functional after recovery.
	h.Record("X", []string{"1"})
	if got := h.Seen("X"); !reflect.DeepEqual(got, []string{"1"}) {
		t.Errorf("Record after recovery failed, Seen = %v", got)
	}
}

func TestRestartAppliesTighterCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")

	first := NewHistory(path, 10, nil)
	first.Record("X", []string{"1", "2", "3", "4", "5"})

	second := NewHistory(path, 3, nil)
	if got := second.Seen("X"); !reflect.DeepEqual(got, []string{"3", "4", "5"}) {
		t.Errorf("reload should enforce cap oldest-first, Seen = %v", got)
	}
}

func TestConcurrentRecordsSameArtistLoseNothing(t *testing.T) {
	h := newTestHistory(t, 1000)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := make([]string, 10)
			for j := range ids {
				ids[j] = string(rune('a'+n)) + "-" + string(rune('0'+j))
			}
			h.Record("X", ids)
		}(i)
	}
	wg.Wait()

	if got := len(h.Seen("X")); got != 100 {
		t.Errorf("history size = %d, want 100 (no lost updates)", got)
	}
}

func TestClear(t *testing.T) {
	h := newTestHistory(t, 200)
	h.Record("X", []string{"1"})
	h.Clear()
	if got := h.Seen("X"); got != nil {
		t.Errorf("Seen after Clear = %v, want nil", got)
	}
}
