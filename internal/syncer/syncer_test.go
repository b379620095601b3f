package syncer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubefeed/internal/fetcher"
	"tubefeed/internal/models"
	"tubefeed/internal/parser"
	"tubefeed/internal/storage"
)

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func channelID(c byte) string {
	return strings.Repeat(string(c), 24)
}

func videoID(c byte, n int) string {
	return fmt.Sprintf("%s%d", strings.Repeat(string(c), 10), n)
}

// feedHandler serves a per-channel Atom feed, or the configured status code
// for channels listed in failing.
func feedHandler(entriesPerChannel int, failing map[string]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid := r.URL.Query().Get("channel_id")
		if code, ok := failing[cid]; ok {
			http.Error(w, "boom", code)
			return
		}

		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <title>Channel ` + cid + `</title>`)
		for i := 1; i <= entriesPerChannel; i++ {
			fmt.Fprintf(&b, `
  <entry>
    <yt:videoId>%s</yt:videoId>
    <yt:channelId>%s</yt:channelId>
    <title>Video %d</title>
    <published>2023-01-%02dT00:00:00+00:00</published>
  </entry>`, videoID(cid[0], i), cid, i, i)
		}
		b.WriteString("\n</feed>")
		io.WriteString(w, b.String())
	}
}

func newTestSyncer(t *testing.T, handler http.Handler) (*Syncer, *storage.Store) {
	t.Helper()
	log := silentLogger()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := fetcher.New(srv.Client(), log)
	f.SetBaseURL(srv.URL + "/feeds/videos.xml?channel_id=%s")

	return New(f, parser.New(false, log), store, log), store
}

func TestSyncAllChannels(t *testing.T) {
	s, store := newTestSyncer(t, feedHandler(3, nil))

	channels := []models.Channel{
		{ID: channelID('a'), Title: "A"},
		{ID: channelID('b'), Title: "B"},
	}
	added, err := s.Sync(context.Background(), channels)
	require.NoError(t, err)
	assert.Equal(t, 6, added)

	count, err := store.SelectEntriesCount(context.Background(), storage.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestSyncNoChannels(t *testing.T) {
	s, store := newTestSyncer(t, feedHandler(3, nil))

	added, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, added)

	count, err := store.SelectEntriesCount(context.Background(), storage.EntryFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSyncIdempotentReplay(t *testing.T) {
	s, _ := newTestSyncer(t, feedHandler(3, nil))
	channels := []models.Channel{{ID: channelID('a'), Title: "A"}}

	added, err := s.Sync(context.Background(), channels)
	require.NoError(t, err)
	require.Equal(t, 3, added)

	added, err = s.Sync(context.Background(), channels)
	require.NoError(t, err)
	assert.Zero(t, added, "replayed sync inserts nothing")
}

func TestSyncPartialFailure(t *testing.T) {
	failing := map[string]int{channelID('b'): http.StatusInternalServerError}
	s, store := newTestSyncer(t, feedHandler(3, failing))

	channels := []models.Channel{
		{ID: channelID('a'), Title: "A"},
		{ID: channelID('b'), Title: "B"},
	}
	added, err := s.Sync(context.Background(), channels)
	require.Error(t, err)

	var fetchErr *fetcher.FetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 3, added, "healthy channel commits despite the failing sibling")

	count, err := store.SelectEntriesCount(context.Background(), storage.EntryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncFirstErrorInListOrder(t *testing.T) {
	failing := map[string]int{
		channelID('a'): http.StatusNotFound,
		channelID('b'): http.StatusInternalServerError,
	}
	s, _ := newTestSyncer(t, feedHandler(1, failing))

	channels := []models.Channel{
		{ID: channelID('a'), Title: "A"},
		{ID: channelID('b'), Title: "B"},
	}
	_, err := s.Sync(context.Background(), channels)
	require.Error(t, err)

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestSyncBadFeedBody(t *testing.T) {
	s, _ := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not xml")
	}))

	_, err := s.Sync(context.Background(), []models.Channel{{ID: channelID('a'), Title: "A"}})
	require.Error(t, err)

	var parseErr *parser.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestSyncCancellation(t *testing.T) {
	blocked := make(chan struct{})
	s, store := newTestSyncer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(blocked)
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-blocked
		cancel()
	}()

	_, err := s.Sync(ctx, []models.Channel{{ID: channelID('a'), Title: "A"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	count, err := store.SelectEntriesCount(context.Background(), storage.EntryFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
