package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmorand/threddit/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := func() string { return token }
	client := NewClient(server.URL, 5*time.Second, 6000, provider, quietLogger())
	return client, server
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id": 1, "title": "hello"}`))
	}, "secret-token")

	_, err := client.Post(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestNoTokenNoHeader(t *testing.T) {
	var gotAuth string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id": 1}`))
	}, "")

	_, err := client.Post(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{
			name:     "Message field used when present",
			status:   http.StatusNotFound,
			body:     `{"message": "Post not found"}`,
			expected: "Post not found",
		},
		{
			name:     "Generic fallback for empty body",
			status:   http.StatusInternalServerError,
			body:     "",
			expected: "HTTP 500",
		},
		{
			name:     "Generic fallback for non-JSON body",
			status:   http.StatusBadGateway,
			body:     "<html>oops</html>",
			expected: "HTTP 502",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}, "")

			_, err := client.Post(context.Background(), 1)
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.expected, apiErr.Message)
		})
	}
}

func TestTransportErrorNormalized(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, 6000, nil, quietLogger())

	_, err := client.Post(context.Background(), 1)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status, "request never reached a server")
	assert.Equal(t, "network error - please check your connection", apiErr.Message)
}

func TestUnauthorizedTriggersHandler(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "token expired"}`))
	}, "stale")

	torndown := false
	client.SetUnauthorizedHandler(func() { torndown = true })

	_, err := client.Post(context.Background(), 1)
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.True(t, torndown, "401 must tear down the session")
}

func TestPageNormalization(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts/hot", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"content": [{"id": 1, "title": "a"}, {"id": 2, "title": "b"}], "last": false}`))
	}, "")

	page, err := client.HotPosts(context.Background(), 2, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "a", page.Items[0].Title)
	assert.True(t, page.HasMore, "last=false means more pages exist")
}

func TestPageLastPage(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": [], "last": true}`))
	}, "")

	page, err := client.NewPosts(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestVoteStatusAbsenceMeansNone(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected models.VoteType
	}{
		{name: "Recorded upvote", status: http.StatusOK, body: `{"voteType": "UPVOTE"}`, expected: models.Upvote},
		{name: "Recorded downvote", status: http.StatusOK, body: `{"voteType": "DOWNVOTE"}`, expected: models.Downvote},
		{name: "No record at all", status: http.StatusNotFound, body: `{"message": "no vote"}`, expected: ""},
		{name: "Empty body", status: http.StatusOK, body: ``, expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}, "")

			vote, err := client.PostVote(context.Background(), 1, 7)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, vote)
		})
	}
}

func TestCreateCommentBody(t *testing.T) {
	var got CommentRequest
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id": 11, "content": "hi", "parentCommentId": 3}`))
	}, "")

	parent := int64(3)
	created, err := client.CreateComment(context.Background(), CommentRequest{
		Content:         "hi",
		PostID:          9,
		ParentCommentID: &parent,
		UserID:          7,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), created.ID)
	require.NotNil(t, got.ParentCommentID)
	assert.Equal(t, int64(3), *got.ParentCommentID)
	assert.Equal(t, int64(9), got.PostID)
}

func TestNestedCommentTreeDecoding(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 1, "content": "top", "replies": [
				{"id": 2, "content": "nested", "replies": [
					{"id": 3, "content": "deep"}
				]}
			]},
			{"id": 4, "content": "another top"}
		]`))
	}, "")

	tree, err := client.PostComments(context.Background(), 1, "best", 0, 50)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Len(t, tree[0].Replies, 1)
	require.Len(t, tree[0].Replies[0].Replies, 1)
	assert.Equal(t, "deep", tree[0].Replies[0].Replies[0].Content)
}

func TestCommunitySearchAndPopular(t *testing.T) {
	var requested []string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path+"?"+r.URL.RawQuery)
		w.Write([]byte(`{"content": [{"id": 1, "name": "golang"}], "last": true}`))
	}, "")

	found, err := client.SearchCommunities(context.Background(), "go lang", 0, 20)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "golang", found.Items[0].Name)
	assert.Contains(t, requested[0], "/communities/search?query=go+lang")

	popular, err := client.PopularCommunities(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.False(t, popular.HasMore)
	assert.Contains(t, requested[1], "/communities/popular?page=1")
}
