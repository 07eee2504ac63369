package urihistory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	titles map[string]string
	fail   map[string]bool
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, rawURI string) (Resolution, error) {
	f.calls++
	if f.fail[rawURI] {
		return Resolution{}, fmt.Errorf("%w: unreachable", ErrResolve)
	}
	return Resolution{URI: rawURI, Title: f.titles[rawURI]}, nil
}

func uris(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.URI)
	}
	return out
}

func TestCapacityInvariant(t *testing.T) {
	for _, capacity := range []int{0, 1, 2, 5} {
		history := New(&fakeResolver{}, capacity, nil)
		for i := 1; i <= 8; i++ {
			uri := fmt.Sprintf("http://example.com/%d", i)
			history.FindAndAdd(context.Background(), "room", uri, time.Now(), uri)
			require.Equal(t, min(i, capacity), history.Len("room"), "capacity=%d after %d inserts", capacity, i)
		}
	}
}

func TestEvictsLeastRecentlyInserted(t *testing.T) {
	history := New(&fakeResolver{}, 2, nil)
	ctx := context.Background()
	for _, uri := range []string{"http://a/", "http://b/", "http://c/"} {
		history.FindAndAdd(ctx, "room", "look at this", time.Now(), uri)
	}
	require.Equal(t, []string{"http://b/", "http://c/"}, uris(history.Entries("room")))
}

func TestDuplicateLookupDoesNotRefreshRecency(t *testing.T) {
	history := New(&fakeResolver{}, 2, nil)
	ctx := context.Background()
	history.FindAndAdd(ctx, "room", "http://a/", time.Now(), "http://a/")
	history.FindAndAdd(ctx, "room", "http://b/", time.Now(), "http://b/")

	_, found := history.FindAndAdd(ctx, "room", "http://a/", time.Now(), "http://a/")
	require.True(t, found)

	history.FindAndAdd(ctx, "room", "http://c/", time.Now(), "http://c/")
	require.Equal(t, []string{"http://b/", "http://c/"}, uris(history.Entries("room")))
}

func TestZeroCapacityNeverReportsDuplicates(t *testing.T) {
	resolver := &fakeResolver{}
	history := New(resolver, 0, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, found := history.FindAndAdd(ctx, "room", "http://x/", time.Now(), "http://x/")
		require.False(t, found)
		require.Equal(t, 0, history.Len("room"))
	}
	require.Equal(t, 3, resolver.calls)
}

func TestNegativeCapacityIsClamped(t *testing.T) {
	history := New(&fakeResolver{}, -4, nil)
	require.Equal(t, 0, history.Capacity())
	history.FindAndAdd(context.Background(), "room", "http://x/", time.Now(), "http://x/")
	require.Equal(t, 0, history.Len("room"))
}

func TestRepostOfBareLinkReturnsEntry(t *testing.T) {
	resolver := &fakeResolver{titles: map[string]string{"http://x/": "Example Page"}}
	history := New(resolver, 10, nil)
	ctx := context.Background()
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, found := history.FindAndAdd(ctx, "room", "http://x/", first, "http://x/")
	require.False(t, found)

	entry, found := history.FindAndAdd(ctx, "room", "http://x/", first.Add(time.Hour), "http://x/")
	require.True(t, found)
	require.Equal(t, Entry{URI: "http://x/", Title: "Example Page", RecordedAt: first}, entry)
}

func TestRepostWithCommentaryIsIgnored(t *testing.T) {
	resolver := &fakeResolver{titles: map[string]string{"http://x/": "Example Page"}}
	history := New(resolver, 10, nil)
	ctx := context.Background()
	history.FindAndAdd(ctx, "room", "http://x/", time.Now(), "http://x/")

	_, found := history.FindAndAdd(ctx, "room", "check this out http://x/ it's great", time.Now(), "http://x/")
	require.False(t, found)
	require.Equal(t, 1, history.Len("room"))
}

func TestRepostHeuristicStripsTitleAndPunctuation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		title string
		uri   string
		want  bool
	}{
		{name: "bare link", body: "http://x/", title: "Example", uri: "http://x/", want: true},
		{name: "title and link", body: "Example Page http://x/", title: "Example Page", uri: "http://x/", want: true},
		{name: "quoted with brackets", body: "[Example] <http://x/>", title: "Example", uri: "http://x/", want: true},
		{name: "ten punctuation chars", body: "http://x/ ..........", title: "", uri: "http://x/", want: true},
		{name: "eleven punctuation chars", body: "http://x/ ...........", title: "", uri: "http://x/", want: false},
		{name: "words", body: "wow http://x/", title: "", uri: "http://x/", want: false},
		{name: "ideographic spaces between marks", body: "*\u3000http://x/\u3000*", title: "", uri: "http://x/", want: true},
		{name: "title with ideographic spaces", body: "[\u3000日本\u3000] http://x/", title: "日本", uri: "http://x/", want: true},
		{name: "cjk bracket is not punctuation", body: "「日本」http://x/", title: "日本", uri: "http://x/", want: false},
		{name: "second occurrence kept", body: "http://x/ http://x/", title: "", uri: "http://x/", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, looksLikeRepost(tc.body, tc.title, tc.uri))
		})
	}
}

func TestResolveFailureLeavesHistoryUntouched(t *testing.T) {
	resolver := &fakeResolver{fail: map[string]bool{"http://down/": true}}
	history := New(resolver, 3, nil)
	ctx := context.Background()
	history.FindAndAdd(ctx, "room", "http://up/", time.Now(), "http://up/")

	for i := 0; i < 2; i++ {
		_, found := history.FindAndAdd(ctx, "room", "http://down/", time.Now(), "http://down/")
		require.False(t, found)
		require.Equal(t, 1, history.Len("room"))
	}
	require.Equal(t, []string{"http://up/"}, uris(history.Entries("room")))
}

func TestChatsAreIndependent(t *testing.T) {
	history := New(&fakeResolver{}, 1, nil)
	ctx := context.Background()
	history.FindAndAdd(ctx, "room-a", "http://a/", time.Now(), "http://a/")
	history.FindAndAdd(ctx, "room-b", "http://b/", time.Now(), "http://b/")

	_, found := history.FindAndAdd(ctx, "room-b", "http://a/", time.Now(), "http://a/")
	require.False(t, found)
	require.Equal(t, []string{"http://a/"}, uris(history.Entries("room-a")))
	require.Equal(t, []string{"http://a/"}, uris(history.Entries("room-b")))
}

func TestCanonicalURIIsTheKey(t *testing.T) {
	resolver := ResolverFunc(func(ctx context.Context, rawURI string) (Resolution, error) {
		return Resolution{URI: "https://example.com/final", Title: "Final"}, nil
	})
	history := New(resolver, 5, nil)
	ctx := context.Background()
	history.FindAndAdd(ctx, "room", "http://short/1", time.Now(), "http://short/1")

	entry, found := history.FindAndAdd(ctx, "room", "http://short/2", time.Now(), "http://short/2")
	require.True(t, found)
	require.Equal(t, "https://example.com/final", entry.URI)
	require.Equal(t, 1, history.Len("room"))
}
