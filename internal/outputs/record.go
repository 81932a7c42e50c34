package outputs

import (
	"time"

	"vjcap/internal/media"
)

// PrefetchState mirrors the scheduler status surfaced per deck so the
// presentation layer can show a holding state for failed warms.
type PrefetchState string

const (
	PrefetchPending PrefetchState = "pending"
	PrefetchWorking PrefetchState = "working"
	PrefetchReady   PrefetchState = "ready"
	PrefetchError   PrefetchState = "error"
)

// DeckRecord is one deck's slice of the enriched document. Inactive decks
// carry only the base snapshot fields; enrichment fields are present for the
// active deck alone, so stale visuals never linger after a deck goes idle.
type DeckRecord struct {
	Deck   string  `json:"deck"`
	Title  string  `json:"title"`
	Artist string  `json:"artist"`
	BPM    float64 `json:"bpm,omitempty"`
	Key    string  `json:"key,omitempty"`
	Active bool    `json:"active"`

	Tags       []string          `json:"tags,omitempty"`
	Keywords   []string          `json:"refined_keywords,omitempty"`
	Query      string            `json:"query,omitempty"`
	QueryParts []string          `json:"query_parts,omitempty"`
	Rotation   media.Rotation    `json:"rotation,omitempty"`
	Pool       []media.MediaItem `json:"pool,omitempty"`

	Prefetch PrefetchState `json:"prefetch,omitempty"`
	Next     *NextPreview  `json:"next,omitempty"`
}

// NextPreview cues the presentation layer about the upcoming track's
// warmed material without shipping the full pool.
type NextPreview struct {
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	ClipCount int    `json:"clip_count"`
}

// Document is the single enriched record covering all decks. It is always
// replaced wholesale, never patched.
type Document struct {
	ActiveDeck string                `json:"active_deck,omitempty"`
	Decks      map[string]DeckRecord `json:"decks"`
	PassID     string                `json:"pass_id,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// BaseRecord strips a deck record down to snapshot fields.
func BaseRecord(snap media.DeckSnapshot) DeckRecord {
	return DeckRecord{
		Deck:   snap.DeckID,
		Title:  snap.Signature.Title,
		Artist: snap.Signature.Artist,
		BPM:    snap.BPM,
		Key:    snap.Key,
		Active: snap.Active,
	}
}

// Writer persists the enriched document at a fixed path.
type Writer struct {
	path string
}

// NewWriter returns a Writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Write atomically replaces the document on disk.
func (w *Writer) Write(doc Document) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	return WriteJSONAtomic(w.path, doc)
}

// Load reads the current document; a missing file yields an empty document.
func (w *Writer) Load() (Document, error) {
	var doc Document
	err := ReadJSON(w.path, &doc)
	if err != nil {
		if err == ErrNotExist {
			return Document{Decks: map[string]DeckRecord{}}, nil
		}
		return Document{}, err
	}
	if doc.Decks == nil {
		doc.Decks = map[string]DeckRecord{}
	}
	return doc, nil
}

// Path returns the record location.
func (w *Writer) Path() string {
	return w.path
}
