package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discord-chat/internal/models"
)

func TestHTTPFetcherFetchesPages(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		next := "abc"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.MessagePage{Items: descending(3, 1), NextCursor: &next})
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "tok", time.Second)
	res, err := f.FetchPage(context.Background(), testChat, cursorOf("xyz"))

	require.NoError(t, err)
	assert.Equal(t, "/api/messages", gotPath)
	assert.Equal(t, "channelId=1&cursor=xyz", gotQuery)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, []int64{3, 2, 1}, ids(res.Messages))
	require.NotNil(t, res.NextCursor)
	assert.Equal(t, Cursor("abc"), *res.NextCursor)
}

func TestHTTPFetcherDirectMessagesWithoutCursor(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "", time.Second)
	res, err := f.FetchPage(context.Background(), models.ChatRef{Kind: models.ChatKindConversation, ID: 9}, nil)

	require.NoError(t, err)
	assert.Equal(t, "/api/direct-messages", gotPath)
	assert.Equal(t, "conversationId=9", gotQuery)
	assert.Empty(t, res.Messages)
	assert.Nil(t, res.NextCursor)
}

func TestHTTPFetcherClassifiesFailures(t *testing.T) {
	cases := []struct {
		status    int
		auth      bool
		transient bool
	}{
		{http.StatusUnauthorized, true, false},
		{http.StatusForbidden, true, false},
		{http.StatusNotFound, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, true},
		{http.StatusBadGateway, false, true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(srv.URL, "tok", time.Second).FetchPage(context.Background(), testChat, nil)

			require.Error(t, err)
			assert.Equal(t, tc.auth, IsAuthError(err))
			assert.Equal(t, tc.transient, IsTransient(err))
		})
	}
}

func TestHTTPFetcherNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(url, "", 200*time.Millisecond).FetchPage(context.Background(), testChat, nil)

	assert.True(t, IsTransient(err))
}
