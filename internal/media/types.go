package media

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Source identifies where a media item came from.
type Source string

const (
	SourceGiphy  Source = "giphy"
	SourceGoogle Source = "google"
	SourceVideo  Source = "video"
)

// LiveSources lists the remote providers subject to dedup history.
// The offline video bank is deduplicated per pool only.
func LiveSources() []Source {
	return []Source{SourceGiphy, SourceGoogle}
}

// IsLive reports whether items from this source count against dedup history.
func (s Source) IsLive() bool {
	return s == SourceGiphy || s == SourceGoogle
}

// Transition is the visual transition assigned to a rotation slot.
type Transition string

const (
	TransitionFade  Transition = "fade"
	TransitionUp    Transition = "up"
	TransitionLeft  Transition = "left"
	TransitionDown  Transition = "down"
	TransitionRight Transition = "right"
)

// VideoTransitionCycle is the order directional transitions are assigned to
// video items, by position in the rotation.
var VideoTransitionCycle = []Transition{TransitionUp, TransitionLeft, TransitionDown, TransitionRight}

// TrackSignature identifies a track across metadata snapshots. Equality is
// caseless and whitespace-normalized; volatile fields like bpm are excluded
// on purpose.
type TrackSignature struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

var foldCaser = cases.Fold()

// NormalizeText collapses interior whitespace, trims, and case-folds.
func NormalizeText(s string) string {
	return foldCaser.String(strings.Join(strings.Fields(s), " "))
}

// NewSignature builds a signature from raw artist/title strings.
func NewSignature(artist, title string) TrackSignature {
	return TrackSignature{
		Artist: strings.Join(strings.Fields(artist), " "),
		Title:  strings.Join(strings.Fields(title), " "),
	}
}

// Key returns the canonical comparison key for the signature.
func (s TrackSignature) Key() string {
	return NormalizeText(s.Artist) + "\x1f" + NormalizeText(s.Title)
}

// Equal reports caseless, whitespace-normalized equality.
func (s TrackSignature) Equal(other TrackSignature) bool {
	return s.Key() == other.Key()
}

// IsZero reports whether both fields are empty after normalization.
func (s TrackSignature) IsZero() bool {
	return NormalizeText(s.Artist) == "" && NormalizeText(s.Title) == ""
}

func (s TrackSignature) String() string {
	return fmt.Sprintf("%s - %s", s.Artist, s.Title)
}

// DeckSnapshot is one deck's state at a metadata read. Snapshots are
// immutable; the orchestrator diffs consecutive snapshots by signature.
type DeckSnapshot struct {
	DeckID    string         `json:"deck"`
	Signature TrackSignature `json:"signature"`
	BPM       float64        `json:"bpm,omitempty"`
	Key       string         `json:"key,omitempty"`
	Active    bool           `json:"active"`
}

// MediaItem is a single GIF or clip candidate. Transition is assigned at
// interleave time, never at fetch time.
type MediaItem struct {
	ID         string     `json:"id"`
	Source     Source     `json:"source"`
	URL        string     `json:"url"`
	Title      string     `json:"title,omitempty"`
	Transition Transition `json:"transition,omitempty"`
}

// Pool is the ordered, deduplicated candidate set fetched for one track.
// It is larger than the rotation so the presentation layer can request
// replacements without new remote calls.
type Pool struct {
	Signature TrackSignature `json:"signature"`
	Items     []MediaItem    `json:"items"`
}

// BySource splits the pool into per-source subsequences, preserving the
// builder's acceptance order within each source.
func (p Pool) BySource() map[Source][]MediaItem {
	out := make(map[Source][]MediaItem, 3)
	for _, item := range p.Items {
		out[item.Source] = append(out[item.Source], item)
	}
	return out
}

// Rotation is the fixed-length ordered sequence shown on screen.
type Rotation []MediaItem
