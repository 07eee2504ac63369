package uri

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/store"
	"github.com/dwizi/chat-skills/internal/urihistory"
)

type fakeBookmarker struct {
	err  error
	uris []string
}

func (f *fakeBookmarker) Bookmark(ctx context.Context, uri, summary string) error {
	f.uris = append(f.uris, uri)
	return f.err
}

type fakeLedger struct {
	inputs []store.RecordBookmarkInput
}

func (f *fakeLedger) RecordBookmark(ctx context.Context, input store.RecordBookmarkInput) (store.Bookmark, error) {
	f.inputs = append(f.inputs, input)
	return store.Bookmark{ID: "bkm_test"}, nil
}

type recordingReplier struct {
	replies []string
}

func (r *recordingReplier) Reply(ctx context.Context, chatID, text string) error {
	r.replies = append(r.replies, text)
	return nil
}

func testSettings() config.Settings {
	return config.Settings{
		URI: config.URISettings{
			Regexp:              config.DefaultURIRegexp,
			EnableNotification:  true,
			NotificationFormats: []string{"posted {{.Ago}}: {{.Title}} {{.URI}}", "second format"},
			HistoryLimitPerChat: 10,
		},
		Hatena: config.HatenaSettings{Enabled: true},
	}
}

func titledHistory() *urihistory.History {
	resolver := urihistory.ResolverFunc(func(ctx context.Context, rawURI string) (urihistory.Resolution, error) {
		return urihistory.Resolution{URI: rawURI, Title: "Example Domain"}, nil
	})
	return urihistory.New(resolver, 10, nil)
}

func newTestPlugin(t *testing.T, settings config.Settings, bookmarker Bookmarker) (*Plugin, *fakeLedger) {
	t.Helper()
	ledger := &fakeLedger{}
	plugin, err := New(Options{
		Settings:   func() config.Settings { return settings },
		History:    titledHistory(),
		Bookmarker: bookmarker,
		Ledger:     ledger,
		Pick:       func(n int) int { return 0 },
	})
	require.NoError(t, err)
	return plugin, ledger
}

func at(body string, when time.Time) handlers.Message {
	return handlers.Message{Connector: "telegram", ChatID: "room", Body: body, Timestamp: when, Status: handlers.StatusReceived}
}

func TestBookmarksEveryLinkAndNeverClaims(t *testing.T) {
	bookmarker := &fakeBookmarker{}
	plugin, ledger := newTestPlugin(t, testSettings(), bookmarker)
	replier := &recordingReplier{}

	handled, err := plugin.HandleMessage(context.Background(), at("see https://a.example/x and http://b.example/y", time.Now()), replier)
	require.NoError(t, err)
	require.False(t, handled)
	require.Equal(t, []string{"https://a.example/x", "http://b.example/y"}, bookmarker.uris)
	require.Len(t, ledger.inputs, 2)
	require.Equal(t, store.BookmarkStatusPosted, ledger.inputs[0].Status)
	require.Empty(t, replier.replies)
}

func TestNotifiesRepostWithRenderedTemplate(t *testing.T) {
	plugin, _ := newTestPlugin(t, testSettings(), nil)
	replier := &recordingReplier{}
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := plugin.HandleMessage(ctx, at("https://example.com/", first), replier)
	require.NoError(t, err)
	require.Empty(t, replier.replies)

	_, err = plugin.HandleMessage(ctx, at("Example Domain https://example.com/", first.Add(72*time.Hour)), replier)
	require.NoError(t, err)
	require.Equal(t, []string{"posted 3 days ago: Example Domain https://example.com/"}, replier.replies)
}

func TestCommentaryDoesNotNotify(t *testing.T) {
	plugin, _ := newTestPlugin(t, testSettings(), nil)
	replier := &recordingReplier{}
	ctx := context.Background()

	_, _ = plugin.HandleMessage(ctx, at("https://example.com/", time.Now()), replier)
	_, err := plugin.HandleMessage(ctx, at("did anyone read https://example.com/ yet?", time.Now()), replier)
	require.NoError(t, err)
	require.Empty(t, replier.replies)
}

func TestNotificationsDisabledSkipsHistory(t *testing.T) {
	settings := testSettings()
	settings.URI.EnableNotification = false
	calls := 0
	resolver := urihistory.ResolverFunc(func(ctx context.Context, rawURI string) (urihistory.Resolution, error) {
		calls++
		return urihistory.Resolution{URI: rawURI}, nil
	})
	plugin, err := New(Options{
		Settings: func() config.Settings { return settings },
		History:  urihistory.New(resolver, 5, nil),
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := plugin.HandleMessage(context.Background(), at("https://example.com/", time.Now()), &recordingReplier{})
		require.NoError(t, err)
	}
	require.Zero(t, calls)
}

func TestBookmarkFailureIsRepliedAndRecorded(t *testing.T) {
	bookmarker := &fakeBookmarker{err: errors.New("bookmark request failed: status=401 body=denied")}
	settings := testSettings()
	settings.URI.EnableNotification = false
	plugin, ledger := newTestPlugin(t, settings, bookmarker)
	replier := &recordingReplier{}

	handled, err := plugin.HandleMessage(context.Background(), at("https://example.com/", time.Now()), replier)
	require.NoError(t, err)
	require.False(t, handled)
	require.Equal(t, []string{"bookmark request failed: status=401 body=denied"}, replier.replies)
	require.Len(t, ledger.inputs, 1)
	require.Equal(t, store.BookmarkStatusFailed, ledger.inputs[0].Status)
	require.Equal(t, "bookmark request failed: status=401 body=denied", ledger.inputs[0].ErrorMessage)
}

func sent(body string, when time.Time) handlers.Message {
	message := at(body, when)
	message.Status = handlers.StatusSent
	return message
}

func TestFailedBookmarkReplyIsNotBookmarkedAgain(t *testing.T) {
	bookmarker := &fakeBookmarker{err: errors.New("bookmark request failed: uri=https://example.com/ status=500")}
	settings := testSettings()
	settings.URI.EnableNotification = false
	plugin, ledger := newTestPlugin(t, settings, bookmarker)
	replier := &recordingReplier{}
	ctx := context.Background()

	_, err := plugin.HandleMessage(ctx, at("https://example.com/", time.Now()), replier)
	require.NoError(t, err)
	require.Len(t, replier.replies, 1)

	for i := 0; i < 3; i++ {
		echo := replier.replies[len(replier.replies)-1]
		_, err := plugin.HandleMessage(ctx, sent(echo, time.Now()), replier)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"https://example.com/"}, bookmarker.uris)
	require.Len(t, replier.replies, 1)
	require.Len(t, ledger.inputs, 1)
}

func TestSentMessageIsNotBookmarked(t *testing.T) {
	bookmarker := &fakeBookmarker{}
	plugin, ledger := newTestPlugin(t, testSettings(), bookmarker)
	replier := &recordingReplier{}

	handled, err := plugin.HandleMessage(context.Background(), sent("https://example.com/", time.Now()), replier)
	require.NoError(t, err)
	require.False(t, handled)
	require.Empty(t, bookmarker.uris)
	require.Empty(t, ledger.inputs)
	require.Empty(t, replier.replies)
}

func TestSentMessageStillFeedsHistory(t *testing.T) {
	plugin, _ := newTestPlugin(t, testSettings(), &fakeBookmarker{})
	replier := &recordingReplier{}
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := plugin.HandleMessage(ctx, sent("https://example.com/", first), replier)
	require.NoError(t, err)
	require.Empty(t, replier.replies)

	_, err = plugin.HandleMessage(ctx, at("https://example.com/", first.Add(72*time.Hour)), replier)
	require.NoError(t, err)
	require.Equal(t, []string{"posted 3 days ago: Example Domain https://example.com/"}, replier.replies)
}

func TestSentRepostStillNotifies(t *testing.T) {
	plugin, _ := newTestPlugin(t, testSettings(), nil)
	replier := &recordingReplier{}
	ctx := context.Background()
	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := plugin.HandleMessage(ctx, at("https://example.com/", first), replier)
	require.NoError(t, err)

	_, err = plugin.HandleMessage(ctx, sent("https://example.com/", first.Add(72*time.Hour)), replier)
	require.NoError(t, err)
	require.Equal(t, []string{"posted 3 days ago: Example Domain https://example.com/"}, replier.replies)
}

func TestHatenaDisabledSkipsBookmark(t *testing.T) {
	settings := testSettings()
	settings.Hatena.Enabled = false
	bookmarker := &fakeBookmarker{}
	plugin, ledger := newTestPlugin(t, settings, bookmarker)

	_, err := plugin.HandleMessage(context.Background(), at("https://example.com/", time.Now()), &recordingReplier{})
	require.NoError(t, err)
	require.Empty(t, bookmarker.uris)
	require.Empty(t, ledger.inputs)
}

func TestPatternFollowsSettings(t *testing.T) {
	settings := testSettings()
	current := settings
	bookmarker := &fakeBookmarker{}
	plugin, err := New(Options{
		Settings:   func() config.Settings { return current },
		Bookmarker: bookmarker,
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = plugin.HandleMessage(ctx, at("ftp://files.example/a https://web.example/b", time.Now()), &recordingReplier{})
	require.NoError(t, err)
	require.Equal(t, []string{"https://web.example/b"}, bookmarker.uris)

	current.URI.Regexp = `ftp://\S+`
	_, err = plugin.HandleMessage(ctx, at("ftp://files.example/a https://web.example/b", time.Now()), &recordingReplier{})
	require.NoError(t, err)
	require.Equal(t, []string{"https://web.example/b", "ftp://files.example/a"}, bookmarker.uris)

	current.URI.Regexp = "(["
	_, err = plugin.HandleMessage(ctx, at("https://web.example/c", time.Now()), &recordingReplier{})
	require.Error(t, err)
}

func TestBadTemplateIsSkipped(t *testing.T) {
	settings := testSettings()
	settings.URI.NotificationFormats = []string{"{{.Missing"}
	plugin, _ := newTestPlugin(t, settings, nil)
	replier := &recordingReplier{}
	ctx := context.Background()

	_, _ = plugin.HandleMessage(ctx, at("https://example.com/", time.Now()), replier)
	_, err := plugin.HandleMessage(ctx, at("https://example.com/", time.Now()), replier)
	require.NoError(t, err)
	require.Empty(t, replier.replies)
}
