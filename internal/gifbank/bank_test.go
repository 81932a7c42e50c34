package gifbank

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"vjcap/internal/logging"
	"vjcap/internal/media"
)

func writeBankFile(t *testing.T, gifs []entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gif_bank.json")
	data, err := json.Marshal(bankFile{Gifs: gifs})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestBank(t *testing.T, gifs []entry) *Bank {
	t.Helper()
	path := writeBankFile(t, gifs)
	return NewBank(path, logging.NewNop(), WithRand(rand.New(rand.NewSource(1))))
}

func sampleGifs() []entry {
	return []entry{
		{ID: "g1", URL: "https://gifs/1.gif", Title: "Neon Rave Lights", Tags: []string{"rave", "neon"}},
		{ID: "g2", URL: "https://gifs/2.gif", Title: "Disco Ball", Tags: []string{"disco", "party"}},
		{ID: "g3", URL: "https://gifs/3.gif", Title: "Sunset Chill", Tags: []string{"sunset", "lofi"}},
	}
}

func TestSelectPrefersTitleMatches(t *testing.T) {
	bank := newTestBank(t, sampleGifs())

	items := bank.Select([]string{"disco"}, 2)
	if len(items) == 0 || items[0].ID != "g2" {
		t.Errorf("Select(disco) = %v, want g2 first", items)
	}
	if items[0].Source != media.SourceGiphy {
		t.Errorf("bank items should carry source %q, got %q", media.SourceGiphy, items[0].Source)
	}
}

func TestSelectTagMatchRanksBelowTitleMatch(t *testing.T) {
	bank := newTestBank(t, []entry{
		{ID: "tagged", URL: "u1", Title: "Something Else", Tags: []string{"techno"}},
		{ID: "titled", URL: "u2", Title: "Techno Warehouse", Tags: []string{"dark"}},
	})

	items := bank.Select([]string{"techno"}, 2)
	if len(items) != 2 || items[0].ID != "titled" {
		t.Errorf("Select = %v, want titled first", items)
	}
}

func TestSelectMatchesAreCaseless(t *testing.T) {
	bank := newTestBank(t, sampleGifs())

	items := bank.Select([]string{"DISCO"}, 1)
	if len(items) != 1 || items[0].ID != "g2" {
		t.Errorf("Select(DISCO) = %v, want g2", items)
	}
}

func TestSelectPartialWordFallback(t *testing.T) {
	bank := newTestBank(t, sampleGifs())

	// No entry matches the whole phrase, but "sunset" appears in a title.
	items := bank.Select([]string{"golden sunset drive"}, 3)
	found := false
	for _, item := range items {
		if item.ID == "g3" {
			found = true
		}
	}
	if !found {
		t.Errorf("Select partial fallback = %v, want g3 included", items)
	}
}

func TestSelectRandomFallbackWhenNothingMatches(t *testing.T) {
	bank := newTestBank(t, sampleGifs())

	items := bank.Select([]string{"zzzzzz"}, 2)
	if len(items) != 2 {
		t.Errorf("Select random fallback returned %d items, want 2", len(items))
	}
}

func TestSelectNoKeywordsReturnsRandom(t *testing.T) {
	bank := newTestBank(t, sampleGifs())

	items := bank.Select(nil, 2)
	if len(items) != 2 {
		t.Errorf("Select(nil) returned %d items, want 2", len(items))
	}
}

func TestSelectLimitClampedToBankSize(t *testing.T) {
	bank := newTestBank(t, sampleGifs())

	items := bank.Select(nil, 10)
	if len(items) != 3 {
		t.Errorf("Select returned %d items, want 3", len(items))
	}
}

func TestEmptyBankReturnsNil(t *testing.T) {
	bank := NewBank(filepath.Join(t.TempDir(), "absent.json"), logging.NewNop())
	if items := bank.Select([]string{"disco"}, 2); items != nil {
		t.Errorf("Select on empty bank = %v, want nil", items)
	}
}

func TestCorruptBankStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gif_bank.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	bank := NewBank(path, logging.NewNop())
	if bank.Size() != 0 {
		t.Errorf("corrupt bank Size = %d, want 0", bank.Size())
	}
}

func TestEntriesWithoutIDOrURLSkipped(t *testing.T) {
	bank := newTestBank(t, []entry{
		{ID: "", URL: "u", Title: "no id"},
		{ID: "ok", URL: "", Title: "no url"},
		{ID: "good", URL: "u", Title: "keeper"},
	})
	if bank.Size() != 1 {
		t.Errorf("Size = %d, want 1", bank.Size())
	}
}
