package pool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"vjcap/internal/logging"
	"vjcap/internal/media"
)

type fakeSearcher struct {
	source media.Source
	items  []media.MediaItem
	err    error
	calls  []int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, count int) ([]media.MediaItem, error) {
	f.calls = append(f.calls, count)
	if f.err != nil {
		return nil, f.err
	}
	if count > len(f.items) {
		count = len(f.items)
	}
	return f.items[:count], nil
}

func fakeItems(src media.Source, n int) []media.MediaItem {
	items := make([]media.MediaItem, n)
	for i := range items {
		items[i] = media.MediaItem{
			ID:     fmt.Sprintf("%s-%d", src, i),
			Source: src,
			URL:    fmt.Sprintf("https://media/%s/%d", src, i),
		}
	}
	return items
}

type fakeSampler struct {
	items []media.MediaItem
	asked []int
}

func (f *fakeSampler) Sample(count int, exclude map[string]struct{}) []media.MediaItem {
	f.asked = append(f.asked, count)
	var out []media.MediaItem
	for _, item := range f.items {
		if len(out) == count {
			break
		}
		if _, skip := exclude[item.ID]; skip {
			continue
		}
		out = append(out, item)
	}
	return out
}

type fakeBudget struct {
	remaining int
	consumed  int
}

func (f *fakeBudget) TryConsume(n int) int {
	if n > f.remaining {
		n = f.remaining
	}
	f.remaining -= n
	f.consumed += n
	return n
}

type fakeHistory struct {
	seen     map[string]struct{}
	recorded [][]string
}

func newFakeHistory(ids ...string) *fakeHistory {
	h := &fakeHistory{seen: map[string]struct{}{}}
	for _, id := range ids {
		h.seen[id] = struct{}{}
	}
	return h
}

func (f *fakeHistory) Filter(_ string, ids []string) []string {
	var unseen []string
	for _, id := range ids {
		if _, ok := f.seen[id]; !ok {
			unseen = append(unseen, id)
		}
	}
	return unseen
}

func (f *fakeHistory) Record(_ string, ids []string) {
	f.recorded = append(f.recorded, ids)
	for _, id := range ids {
		f.seen[id] = struct{}{}
	}
}

type fakeGifBank struct {
	items []media.MediaItem
	asked []int
}

func (f *fakeGifBank) Select(_ []string, limit int) []media.MediaItem {
	f.asked = append(f.asked, limit)
	if limit > len(f.items) {
		limit = len(f.items)
	}
	return f.items[:limit]
}

func testRequest() Request {
	return Request{
		Snapshot: media.DeckSnapshot{
			DeckID:    "deck1",
			Signature: media.NewSignature("Daft Punk", "One More Time"),
			Active:    true,
		},
		Keywords: []string{"french house", "robots"},
	}
}

func countBySource(p media.Pool) map[media.Source]int {
	counts := map[media.Source]int{}
	for src, items := range p.BySource() {
		counts[src] = len(items)
	}
	return counts
}

func TestBuildThreeSourcePolicy(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 20)}
	google := &fakeSearcher{source: media.SourceGoogle, items: fakeItems(media.SourceGoogle, 20)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	ledger := &fakeBudget{remaining: 40}

	b := NewBuilder(giphy, google, videos, nil, ledger, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	want := map[media.Source]int{media.SourceGiphy: 5, media.SourceGoogle: 5, media.SourceVideo: 5}
	if got := countBySource(res.Pool); !reflect.DeepEqual(got, want) {
		t.Errorf("pool composition = %v, want %v", got, want)
	}
	if !res.WithSecondary {
		t.Error("WithSecondary = false, want true")
	}
	if ledger.consumed != 5 {
		t.Errorf("budget consumed = %d, want 5", ledger.consumed)
	}
}

func TestBuildWithoutSecondaryDoublesPrimary(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 20)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	ledger := &fakeBudget{remaining: 40}

	b := NewBuilder(giphy, nil, videos, nil, ledger, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	want := map[media.Source]int{media.SourceGiphy: 10, media.SourceVideo: 5}
	if got := countBySource(res.Pool); !reflect.DeepEqual(got, want) {
		t.Errorf("pool composition = %v, want %v", got, want)
	}
	if res.WithSecondary {
		t.Error("WithSecondary = true, want false")
	}
}

func TestBuildQuotaExhaustedGoesAllVideo(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 20)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	ledger := &fakeBudget{remaining: 0}

	b := NewBuilder(giphy, nil, videos, nil, ledger, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	want := map[media.Source]int{media.SourceVideo: 15}
	if got := countBySource(res.Pool); !reflect.DeepEqual(got, want) {
		t.Errorf("pool composition = %v, want %v", got, want)
	}
	if len(giphy.calls) != 0 {
		t.Errorf("primary called %d times with no budget, want 0", len(giphy.calls))
	}
}

func TestBuildPartialGrantShiftsShortfallToVideo(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 20)}
	google := &fakeSearcher{source: media.SourceGoogle, items: fakeItems(media.SourceGoogle, 20)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	ledger := &fakeBudget{remaining: 3}

	b := NewBuilder(giphy, google, videos, nil, ledger, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	want := map[media.Source]int{media.SourceGiphy: 3, media.SourceGoogle: 5, media.SourceVideo: 7}
	if got := countBySource(res.Pool); !reflect.DeepEqual(got, want) {
		t.Errorf("pool composition = %v, want %v", got, want)
	}
}

func TestBuildGifBankCoversShortfallBeforeVideo(t *testing.T) {
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	bankItems := fakeItems(media.SourceGiphy, 10)
	for i := range bankItems {
		bankItems[i].ID = fmt.Sprintf("bank-%d", i)
	}
	bank := &fakeGifBank{items: bankItems}
	ledger := &fakeBudget{remaining: 0}

	b := NewBuilder(&fakeSearcher{source: media.SourceGiphy}, nil, videos, bank, ledger, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	want := map[media.Source]int{media.SourceGiphy: 10, media.SourceVideo: 5}
	if got := countBySource(res.Pool); !reflect.DeepEqual(got, want) {
		t.Errorf("pool composition = %v, want %v", got, want)
	}
	if len(bank.asked) != 1 || bank.asked[0] != 10 {
		t.Errorf("bank asked = %v, want one request for 10", bank.asked)
	}
}

func TestBuildProviderFailureShiftsToVideo(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, err: errors.New("503")}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	ledger := &fakeBudget{remaining: 40}

	b := NewBuilder(giphy, nil, videos, nil, ledger, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	want := map[media.Source]int{media.SourceVideo: 15}
	if got := countBySource(res.Pool); !reflect.DeepEqual(got, want) {
		t.Errorf("pool composition = %v, want %v", got, want)
	}
}

func TestBuildDedupTriggersExpandedRefetch(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 20)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	ledger := &fakeBudget{remaining: 40}
	// First page ids 0 and 1 were already shown for this artist.
	history := newFakeHistory("giphy-0", "giphy-1")

	b := NewBuilder(giphy, nil, videos, nil, ledger, history, 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	if len(giphy.calls) != 2 {
		t.Fatalf("primary calls = %v, want an initial fetch plus one expanded re-fetch", giphy.calls)
	}
	if giphy.calls[1] <= giphy.calls[0] {
		t.Errorf("re-fetch size %d not expanded beyond initial %d", giphy.calls[1], giphy.calls[0])
	}
	for _, item := range res.Pool.Items {
		if item.ID == "giphy-0" || item.ID == "giphy-1" {
			t.Errorf("already-seen item %s leaked into pool", item.ID)
		}
	}
}

func TestBuildRecordsAcceptedLiveIds(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 20)}
	google := &fakeSearcher{source: media.SourceGoogle, items: fakeItems(media.SourceGoogle, 20)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	history := newFakeHistory()

	b := NewBuilder(giphy, google, videos, nil, &fakeBudget{remaining: 40}, history, 5, 25, logging.NewNop())
	b.Build(context.Background(), testRequest())

	if len(history.recorded) != 2 {
		t.Fatalf("Record called %d times, want 2 (one per live source)", len(history.recorded))
	}
	// Video bank ids never enter the artist history.
	for id := range history.seen {
		if strings.HasPrefix(id, string(media.SourceVideo)) {
			t.Errorf("video id %q recorded into history", id)
		}
	}
}

func TestBuildVideoExcludesPoolDuplicates(t *testing.T) {
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	b := NewBuilder(nil, nil, videos, nil, &fakeBudget{}, newFakeHistory(), 5, 25, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	seen := map[string]struct{}{}
	for _, item := range res.Pool.Items {
		if _, dup := seen[item.ID]; dup {
			t.Errorf("duplicate id %q within one pool", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
}

func TestBuildClampsPoolSize(t *testing.T) {
	giphy := &fakeSearcher{source: media.SourceGiphy, items: fakeItems(media.SourceGiphy, 30)}
	google := &fakeSearcher{source: media.SourceGoogle, items: fakeItems(media.SourceGoogle, 30)}
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 30)}

	b := NewBuilder(giphy, google, videos, nil, &fakeBudget{remaining: 100}, newFakeHistory(), 5, 8, logging.NewNop())
	res := b.Build(context.Background(), testRequest())

	if len(res.Pool.Items) > 8 {
		t.Errorf("pool size = %d, want at most 8", len(res.Pool.Items))
	}
}

func TestBuildPrefersWarmClipsOverBank(t *testing.T) {
	videos := &fakeSampler{items: fakeItems(media.SourceVideo, 20)}
	warm := []media.MediaItem{
		{ID: "clip_abc_00", Source: media.SourceVideo, URL: "/cache/abc/clip_00.mp4"},
		{ID: "clip_abc_01", Source: media.SourceVideo, URL: "/cache/abc/clip_01.mp4"},
	}

	b := NewBuilder(nil, nil, videos, nil, &fakeBudget{}, newFakeHistory(), 5, 25, logging.NewNop())
	req := testRequest()
	req.WarmClips = warm
	res := b.Build(context.Background(), req)

	ids := map[string]struct{}{}
	for _, item := range res.Pool.Items {
		ids[item.ID] = struct{}{}
	}
	for _, clip := range warm {
		if _, ok := ids[clip.ID]; !ok {
			t.Errorf("warm clip %s missing from pool", clip.ID)
		}
	}
	// Bank only covers what the warm clips did not.
	if len(videos.asked) != 1 || videos.asked[0] != 13 {
		t.Errorf("bank asked = %v, want one request for 13", videos.asked)
	}
}

func TestBuildQueryFallbacks(t *testing.T) {
	sig := media.NewSignature("Daft Punk", "One More Time")

	query, parts := BuildQuery(sig, []string{"house"}, []string{"french house", "robots"})
	if query != "french house robots" {
		t.Errorf("keyword query = %q", query)
	}
	if !reflect.DeepEqual(parts, []string{"french house", "robots"}) {
		t.Errorf("keyword parts = %v", parts)
	}

	query, _ = BuildQuery(sig, []string{"house", "electronic"}, nil)
	if query != "house electronic" {
		t.Errorf("tag query = %q", query)
	}

	query, parts = BuildQuery(sig, nil, nil)
	if query != "Daft Punk One More Time" {
		t.Errorf("fallback query = %q", query)
	}
	if !reflect.DeepEqual(parts, []string{"Daft Punk", "One More Time"}) {
		t.Errorf("fallback parts = %v", parts)
	}
}

func TestBuildQueryCapsParts(t *testing.T) {
	_, parts := BuildQuery(media.NewSignature("A", "B"),
		nil, []string{"one", "two", "three", "four", "five", "six"})
	if len(parts) != maxQueryParts {
		t.Errorf("parts length = %d, want %d", len(parts), maxQueryParts)
	}
}
