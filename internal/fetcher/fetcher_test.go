package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannelID = strings.Repeat("c", 24)

func silentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotChannel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotChannel = r.URL.Query().Get("channel_id")
		io.WriteString(w, "<feed/>")
	}))
	defer srv.Close()

	f := New(srv.Client(), silentLogger())
	f.SetBaseURL(srv.URL + "/feeds/videos.xml?channel_id=%s")

	body, err := f.Fetch(context.Background(), testChannelID)
	require.NoError(t, err)
	assert.Equal(t, "<feed/>", string(body))
	assert.Equal(t, testChannelID, gotChannel)
	assert.Equal(t, userAgent, gotUA)
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(srv.Client(), silentLogger())
	f.SetBaseURL(srv.URL + "/feeds/videos.xml?channel_id=%s")

	_, err := f.Fetch(context.Background(), testChannelID)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.Contains(t, fetchErr.URL, testChannelID)
}

func TestFetchConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	f := New(nil, silentLogger())
	f.SetBaseURL(srv.URL + "/feeds/videos.xml?channel_id=%s")

	_, err := f.Fetch(context.Background(), testChannelID)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.Error(t, fetchErr.Err)
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := New(srv.Client(), silentLogger())
	f.SetBaseURL(srv.URL + "/feeds/videos.xml?channel_id=%s")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, testChannelID)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
