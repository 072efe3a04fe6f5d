package apiclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyviz/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", timeout, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, srv
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com", time.Second)
	assert.Error(t, err)
}

func TestCategories(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`["food","rent"]`))
	}, time.Second)

	got, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"food", "rent"}, got)
}

func TestTransactions_SendsOrderedQuery(t *testing.T) {
	var rawQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions", r.URL.Path)
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`[{"date":"2024-01-01","amount":-12.5},{"date":"2024-01-02","amount":0}]`))
	}, time.Second)

	got, err := c.Transactions(context.Background(), core.DefaultFilterState())
	require.NoError(t, err)
	assert.Equal(t, "start_date=2024-01-01&end_date=2024-12-31&smoothing=smoothed&avg_days=7", rawQuery)
	assert.Equal(t, core.Series{{Date: "2024-01-01", Amount: -12.5}, {Date: "2024-01-02", Amount: 0}}, got)
}

func TestTransactions_EmptyArrayIsNotNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, time.Second)

	got, err := c.Transactions(context.Background(), core.DefaultFilterState())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		malformed  bool
		message    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
			wantStatus: http.StatusInternalServerError,
			message:    "boom",
		},
		{
			name: "validation envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(`{"error":{"code":"invalid_parameter","message":"start_date must be YYYY-MM-DD"}}`))
			},
			wantStatus: http.StatusUnprocessableEntity,
			message:    "start_date must be YYYY-MM-DD",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{not json`))
			},
			malformed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.handler, time.Second)
			_, err := c.Transactions(context.Background(), core.FilterState{})
			require.Error(t, err)

			var ne *core.NetworkError
			require.True(t, errors.As(err, &ne))
			assert.Equal(t, "transactions", ne.Op)
			assert.Equal(t, tt.wantStatus, ne.StatusCode)
			assert.Equal(t, tt.malformed, errors.Is(err, core.ErrMalformedResponse))
			if tt.message != "" {
				assert.Contains(t, ne.Err.Error(), tt.message)
			}
		})
	}
}

func TestOversizedBodyIsNotMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("["))
		w.Write(bytes.Repeat([]byte(`{"date":"2024-01-01","amount":1},`), maxBodySize/32+1))
		w.Write([]byte(`{"date":"2024-01-01","amount":1}]`))
	}, 5*time.Second)

	_, err := c.Transactions(context.Background(), core.FilterState{})
	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err))
	assert.ErrorIs(t, err, core.ErrResponseTooLarge)
	assert.NotErrorIs(t, err, core.ErrMalformedResponse)
}

func TestBodyAtLimitIsRead(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := []byte(`["Groceries"]`)
		w.Write(body)
		w.Write(bytes.Repeat([]byte(" "), maxBodySize-len(body)))
	}, 5*time.Second)

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries"}, cats)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := c.Categories(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCallerCancellationIsNotNetworkError(t *testing.T) {
	started := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Categories(ctx)
	require.Error(t, err)
	assert.False(t, core.IsNetworkError(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(addr, time.Second)
	require.NoError(t, err)
	_, err = c.Categories(context.Background())
	assert.True(t, core.IsNetworkError(err))
}

func TestURL(t *testing.T) {
	c, err := New("http://api.local:8000/v1/", time.Second)
	require.NoError(t, err)
	q := core.FilterState{Category: "public transport"}.Query()
	assert.Equal(t, "http://api.local:8000/v1/transactions?category=public+transport", c.URL("/transactions", q))
}
