// Package snapshot reads the deck metadata file the capture collaborator
// maintains and diffs consecutive reads so unrelated field jitter (bpm,
// key) does not retrigger enrichment.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"vjcap/internal/media"
)

// DeckState is one deck's slice of the metadata file: the snapshot identity
// fields plus whatever tags and refined keywords the enrichment
// collaborator has attached.
type DeckState struct {
	Snapshot media.DeckSnapshot
	Tags     []string
	Keywords []string
}

// Snapshot is one full read of the metadata file.
type Snapshot struct {
	ActiveDeck string
	Decks      map[string]DeckState
}

// DeckIDs returns the deck ids in stable order.
func (s Snapshot) DeckIDs() []string {
	ids := make([]string, 0, len(s.Decks))
	for id := range s.Decks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// deckDoc mirrors the capture collaborator's per-deck JSON. BPM arrives as
// either a number or an OCR string, so it gets a forgiving decoder.
type deckDoc struct {
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	BPM      flexFloat `json:"bpm"`
	Key      string    `json:"key"`
	Active   bool      `json:"active"`
	Tags     []string  `json:"tags"`
	Keywords []string  `json:"refined_keywords"`
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// Read parses the metadata file at path. The writer replaces the file
// atomically, so any read error here is transient: callers skip the pass
// and pick the snapshot up on the next poll.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return Snapshot{}, fmt.Errorf("snapshot %s is empty", path)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}

	snap := Snapshot{Decks: make(map[string]DeckState)}
	for key, msg := range raw {
		switch key {
		case "active_deck":
			_ = json.Unmarshal(msg, &snap.ActiveDeck)
			continue
		case "timestamp":
			continue
		}
		var doc deckDoc
		if err := json.Unmarshal(msg, &doc); err != nil {
			// Unknown scalar top-level fields are the collaborator's
			// business, not a parse failure.
			continue
		}
		snap.Decks[key] = DeckState{
			Snapshot: media.DeckSnapshot{
				DeckID:    key,
				Signature: media.NewSignature(doc.Artist, doc.Title),
				BPM:       float64(doc.BPM),
				Key:       doc.Key,
				Active:    doc.Active,
			},
			Tags:     doc.Tags,
			Keywords: doc.Keywords,
		}
	}

	if snap.ActiveDeck == "" {
		for id, deck := range snap.Decks {
			if deck.Snapshot.Active {
				snap.ActiveDeck = id
				break
			}
		}
	}
	return snap, nil
}

// Change describes how one deck moved between two consecutive snapshots.
type Change struct {
	DeckID       string
	Deck         DeckState
	NewSignature bool
	WentActive   bool
	WentInactive bool
}

// Diff compares consecutive snapshots by signature and active flag, in
// deck-id order. Decks that only changed bpm or key produce no Change.
// Decks present only in prev are reported as gone inactive.
func Diff(prev, cur Snapshot) []Change {
	var changes []Change

	for _, id := range cur.DeckIDs() {
		deck := cur.Decks[id]
		old, existed := prev.Decks[id]

		c := Change{DeckID: id, Deck: deck}
		if existed {
			c.NewSignature = !old.Snapshot.Signature.Equal(deck.Snapshot.Signature)
			c.WentActive = deck.Snapshot.Active && !old.Snapshot.Active
			c.WentInactive = !deck.Snapshot.Active && old.Snapshot.Active
		} else {
			c.NewSignature = !deck.Snapshot.Signature.IsZero()
			c.WentActive = deck.Snapshot.Active
		}
		if c.NewSignature || c.WentActive || c.WentInactive {
			changes = append(changes, c)
		}
	}

	for _, id := range prev.DeckIDs() {
		if _, still := cur.Decks[id]; still {
			continue
		}
		old := prev.Decks[id]
		if old.Snapshot.Active {
			old.Snapshot.Active = false
			changes = append(changes, Change{
				DeckID:       id,
				Deck:         old,
				WentInactive: true,
			})
		}
	}
	return changes
}
