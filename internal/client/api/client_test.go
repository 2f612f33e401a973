package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggle_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/likes/p1/toggle", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"engaged":true,"count":6}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/", "tok").Toggle(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, &ToggleResult{Engaged: true, Count: 6}, res)
}

func TestToggle_StatusMapping(t *testing.T) {
	tests := []struct {
		check  func(t *testing.T, err error)
		name   string
		status int
	}{
		{name: "401", status: http.StatusUnauthorized, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.False(t, IsRetryable(err))
		}},
		{name: "404", status: http.StatusNotFound, check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrTargetNotFound)
		}},
		{name: "503", status: http.StatusServiceUnavailable, check: func(t *testing.T, err error) {
			var netErr *NetworkError
			require.True(t, errors.As(err, &netErr))
			assert.Equal(t, http.StatusServiceUnavailable, netErr.Status)
			assert.True(t, IsRetryable(err))
		}},
		{name: "400", status: http.StatusBadRequest, check: func(t *testing.T, err error) {
			assert.Error(t, err)
			assert.False(t, IsRetryable(err))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "tok").Toggle(context.Background(), "p1")
			tc.check(t, err)
			assert.Equal(t, 1, calls, "client must not retry")
		})
	}
}

func TestToggle_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, "tok", WithTimeout(50*time.Millisecond)).Toggle(context.Background(), "p1")
	assert.True(t, IsRetryable(err))
}

func TestToggle_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "tok").Toggle(context.Background(), "p1")
	assert.True(t, IsRetryable(err))
}

func TestState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/likes/state", r.URL.Path)
		assert.Equal(t, "p1,p2", r.URL.Query().Get("targets"))
		_, _ = w.Write([]byte(`{"likedTargetIds":["p1"],"likeCounts":{"p1":5,"p2":0}}`))
	}))
	defer srv.Close()

	state, err := NewClient(srv.URL, "tok").State(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, state.LikedTargetIDs)
	assert.Equal(t, 5, state.LikeCounts["p1"])
	assert.NotNil(t, state.CommentCounts)
}
