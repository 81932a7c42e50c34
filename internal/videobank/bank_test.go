package videobank

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"vjcap/internal/logging"
	"vjcap/internal/media"
)

func writeBank(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("mp4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestBank(t *testing.T, dir string) *Bank {
	t.Helper()
	return NewBank(dir, logging.NewNop(), WithRand(rand.New(rand.NewSource(1))))
}

func TestSampleReturnsVideos(t *testing.T) {
	dir := writeBank(t, "a.mp4", "b.mp4", "c.mp4", "notes.txt")
	bank := newTestBank(t, dir)

	items := bank.Sample(2, nil)
	if len(items) != 2 {
		t.Fatalf("Sample returned %d items, want 2", len(items))
	}
	for _, item := range items {
		if item.Source != media.SourceVideo {
			t.Errorf("item %q source = %q, want %q", item.ID, item.Source, media.SourceVideo)
		}
		if filepath.Ext(item.URL) != ".mp4" {
			t.Errorf("item %q url = %q, want an mp4 path", item.ID, item.URL)
		}
	}
}

func TestSampleShortBankReturnsAll(t *testing.T) {
	dir := writeBank(t, "a.mp4")
	bank := newTestBank(t, dir)

	if got := len(bank.Sample(5, nil)); got != 1 {
		t.Errorf("Sample returned %d items, want 1", got)
	}
}

func TestSampleHonorsExclusions(t *testing.T) {
	dir := writeBank(t, "a.mp4", "b.mp4")
	bank := newTestBank(t, dir)

	items := bank.Sample(2, map[string]struct{}{"bank_a": {}})
	if len(items) != 1 || items[0].ID != "bank_b" {
		t.Errorf("Sample with exclusion = %v, want only bank_b", items)
	}
}

func TestSampleMissingDirectory(t *testing.T) {
	bank := newTestBank(t, filepath.Join(t.TempDir(), "absent"))
	if items := bank.Sample(3, nil); items != nil {
		t.Errorf("Sample from missing dir = %v, want nil", items)
	}
}

func TestRefreshPicksUpNewFiles(t *testing.T) {
	dir := writeBank(t, "a.mp4")
	bank := newTestBank(t, dir)

	if got := bank.Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	bank.Refresh()
	if got := bank.Size(); got != 2 {
		t.Errorf("Size after Refresh = %d, want 2", got)
	}
}
