package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganjinghwan/erecipehub/core/remoteerr"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New("   ")
	require.Error(t, err)
}

func TestDo_DecodesSuccessPayload(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/events/new-event", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Chili Cookoff", body["event_name"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"newEventInfo":{"event_name":"Chili Cookoff"}}`))
	}, WithTokenSource(func() string { return "tok-1" }))

	var out struct {
		NewEventInfo struct {
			Name string `json:"event_name"`
		} `json:"newEventInfo"`
	}
	err := c.Post(context.Background(), "/events/new-event", map[string]string{"event_name": "Chili Cookoff"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Chili Cookoff", out.NewEventInfo.Name)
}

func TestDo_NoTokenNoAuthorizationHeader(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, WithTokenSource(func() string { return "" }))

	require.NoError(t, c.Delete(context.Background(), "/events/delete-event/x", &struct{}{}))
}

func TestDo_ApplicationErrorShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   []string
	}{
		{"single message", http.StatusNotFound, `{"message":"Not found"}`, []string{"Not found"}},
		{"message list", http.StatusBadRequest, `{"messages":["Name required","Date required"]}`, []string{"Name required", "Date required"}},
		{"empty body", http.StatusInternalServerError, ``, []string{remoteerr.FallbackMessage}},
		{"html body", http.StatusBadGateway, `<h1>bad gateway</h1>`, []string{remoteerr.FallbackMessage}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			err := c.Get(context.Background(), "/events/abc-slug", &struct{}{})
			require.Error(t, err)

			var re *remoteerr.Error
			require.ErrorAs(t, err, &re)
			assert.Equal(t, remoteerr.KindApplication, re.Kind)
			assert.Equal(t, tt.status, re.Status)
			assert.Equal(t, tt.want, re.Messages)
		})
	}
}

func TestDo_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	err = c.Get(context.Background(), "/events/get-all-events", nil)
	var re *remoteerr.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remoteerr.KindTransport, re.Kind)
	require.Len(t, re.Messages, 1)
	assert.NotEmpty(t, re.Messages[0])
}

func TestDo_TimeoutIsTransportFailure(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	err := c.Get(context.Background(), "/events/is-expired/evt123", nil)
	assert.True(t, remoteerr.IsKind(err, remoteerr.KindTransport))
}

func TestDo_UndecodableSuccessBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	var out map[string]any
	err := c.Get(context.Background(), "/cooks/get-cook-info", &out)
	var re *remoteerr.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, []string{remoteerr.FallbackMessage}, re.Messages)
	assert.Error(t, re.Cause)
}

func TestDo_RateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, WithRateLimit(0.001, 1))

	require.NoError(t, c.Get(context.Background(), "/events/get-all-events", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/events/get-all-events", nil)
	assert.True(t, remoteerr.IsKind(err, remoteerr.KindTransport))
}
