package publicip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "nodectl/pkg/errors"
)

func echoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// hangingServer blocks until the client gives up and counts cancellations.
func hangingServer(t *testing.T, cancelled *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			if cancelled != nil {
				cancelled.Add(1)
			}
		case <-time.After(5 * time.Second):
			fmt.Fprint(w, "198.51.100.1")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver(Config{})

	assert.Equal(t, DefaultServices, r.Services())
	assert.Equal(t, 600*time.Millisecond, r.timeout)
	assert.Len(t, DefaultServices, 4)
}

func TestResolve_FirstSuccessCancelsRest(t *testing.T) {
	var cancelled atomic.Int32
	slow := hangingServer(t, &cancelled)
	fast := echoServer(t, "203.0.113.7\n")

	r := NewResolver(Config{
		Services: []string{slow.URL, fast.URL},
		Timeout:  3 * time.Second,
	})

	start := time.Now()
	answer, err := r.ResolveDetailed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", answer.IP)
	assert.Equal(t, fast.URL, answer.Service)
	assert.Less(t, time.Since(start), 2*time.Second, "losing request must be cancelled, not awaited")
	assert.Eventually(t, func() bool { return cancelled.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestResolve_SeveralAnswersKeepsFirst(t *testing.T) {
	var cancelled atomic.Int32
	a := echoServer(t, "203.0.113.7")
	b := echoServer(t, "203.0.113.8")
	slow := hangingServer(t, &cancelled)

	r := NewResolver(Config{
		Services: []string{a.URL, b.URL, slow.URL},
		Timeout:  3 * time.Second,
	})

	answer, err := r.ResolveDetailed(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []string{"203.0.113.7", "203.0.113.8"}, answer.IP)
	assert.Contains(t, []string{a.URL, b.URL}, answer.Service)
	assert.Eventually(t, func() bool { return cancelled.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestResolve_SomeFail(t *testing.T) {
	broken := statusServer(t, http.StatusBadGateway)
	garbage := echoServer(t, "<html>rate limited</html>")
	good := echoServer(t, "  2001:db8::1 \n")

	r := NewResolver(Config{Services: []string{broken.URL, garbage.URL, good.URL}})

	ip, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", ip)
}

func TestResolve_AllFail(t *testing.T) {
	broken := statusServer(t, http.StatusInternalServerError)
	garbage := echoServer(t, "not an ip")
	slow := hangingServer(t, nil)

	r := NewResolver(Config{
		Services: []string{broken.URL, garbage.URL, slow.URL},
		Timeout:  100 * time.Millisecond,
	})

	ip, err := r.Resolve(context.Background())
	require.Error(t, err)
	assert.Empty(t, ip)

	var lookupErr *pkgerrors.LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Len(t, lookupErr.Errs, 3)

	assert.ErrorIs(t, err, pkgerrors.ErrNoPublicIP)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidIP)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var httpErr *pkgerrors.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestResolve_ParentCancelled(t *testing.T) {
	slow := hangingServer(t, nil)
	r := NewResolver(Config{Services: []string{slow.URL}, Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_NoServices(t *testing.T) {
	r := &Resolver{}

	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrNoServices)
}

func TestLookup_SendsUserAgent(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("User-Agent")
		fmt.Fprint(w, "192.0.2.10")
	}))
	defer srv.Close()

	r := NewResolver(Config{Services: []string{srv.URL}, UserAgent: "nodectl-test"})

	ip, err := r.Lookup(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip)
	assert.Equal(t, "nodectl-test", <-got)
}

func TestLookup_ServiceError(t *testing.T) {
	srv := statusServer(t, http.StatusTooManyRequests)
	r := NewResolver(Config{Services: []string{srv.URL}})

	_, err := r.Lookup(context.Background(), srv.URL)

	var svcErr *pkgerrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, srv.URL, svcErr.URL)
}

func TestParseIP(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"203.0.113.7", "203.0.113.7", false},
		{"203.0.113.7\n", "203.0.113.7", false},
		{"\t2001:DB8::1\r\n", "2001:db8::1", false},
		{"::ffff:192.0.2.1", "192.0.2.1", false},
		{"", "", true},
		{"localhost", "", true},
		{"203.0.113.7 extra", "", true},
		{"999.1.1.1", "", true},
	}

	for _, tt := range tests {
		got, err := ParseIP(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidIP, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
