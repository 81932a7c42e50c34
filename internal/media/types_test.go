package media

import "testing"

func TestSignatureEqualityIsCaseless(t *testing.T) {
	a := NewSignature("Daft Punk", "One More Time")
	b := NewSignature("daft punk", "ONE MORE TIME")
	if !a.Equal(b) {
		t.Error("signatures differing only by case should be equal")
	}
}

func TestSignatureEqualityNormalizesWhitespace(t *testing.T) {
	a := NewSignature("  Daft   Punk ", "One  More Time")
	b := NewSignature("Daft Punk", "One More Time")
	if !a.Equal(b) {
		t.Error("signatures differing only by whitespace should be equal")
	}
	if a.Artist != "Daft Punk" {
		t.Errorf("artist should be whitespace-collapsed, got %q", a.Artist)
	}
}

func TestSignatureInequality(t *testing.T) {
	a := NewSignature("Daft Punk", "One More Time")
	b := NewSignature("Daft Punk", "Around the World")
	if a.Equal(b) {
		t.Error("different titles should not be equal")
	}
}

func TestSignatureIsZero(t *testing.T) {
	if !(TrackSignature{}).IsZero() {
		t.Error("empty signature should be zero")
	}
	if !NewSignature("   ", "\t").IsZero() {
		t.Error("whitespace-only signature should be zero")
	}
	if NewSignature("x", "").IsZero() {
		t.Error("signature with artist should not be zero")
	}
}

func TestPoolBySourcePreservesOrder(t *testing.T) {
	pool := Pool{Items: []MediaItem{
		{ID: "g1", Source: SourceGiphy},
		{ID: "v1", Source: SourceVideo},
		{ID: "g2", Source: SourceGiphy},
		{ID: "s1", Source: SourceGoogle},
		{ID: "v2", Source: SourceVideo},
	}}

	by := pool.BySource()
	if got := len(by[SourceGiphy]); got != 2 {
		t.Fatalf("giphy items = %d, want 2", got)
	}
	if by[SourceGiphy][0].ID != "g1" || by[SourceGiphy][1].ID != "g2" {
		t.Error("giphy order not preserved")
	}
	if by[SourceVideo][0].ID != "v1" || by[SourceVideo][1].ID != "v2" {
		t.Error("video order not preserved")
	}
}

func TestSourceIsLive(t *testing.T) {
	if !SourceGiphy.IsLive() || !SourceGoogle.IsLive() {
		t.Error("remote providers should be live")
	}
	if SourceVideo.IsLive() {
		t.Error("offline video bank should not be live")
	}
}
