package publicip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/storage/models"
)

type memRecorder struct {
	mu      sync.Mutex
	lookups []*models.IPLookup
	err     error
}

func (m *memRecorder) RecordIPLookup(ctx context.Context, lookup *models.IPLookup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, lookup)
	return m.err
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lookups)
}

// rotatingServer answers with the addresses in order, repeating the last one.
func rotatingServer(t *testing.T, addrs ...string) *httptest.Server {
	t.Helper()
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(addrs) {
			i = len(addrs) - 1
		}
		fmt.Fprint(w, addrs[i])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewWatcher_InvalidInterval(t *testing.T) {
	_, err := NewWatcher(NewResolver(Config{}), nil, 0, nil)
	assert.Error(t, err)
}

func TestWatcher_CheckReportsChanges(t *testing.T) {
	srv := rotatingServer(t, "203.0.113.1", "203.0.113.1", "203.0.113.2")
	rec := &memRecorder{}

	type change struct{ from, to string }
	var changes []change

	w, err := NewWatcher(NewResolver(Config{Services: []string{srv.URL}}), rec, time.Hour,
		func(previous, current string) {
			changes = append(changes, change{previous, current})
		})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		lookup := w.Check(ctx)
		require.True(t, lookup.Success)
		assert.Equal(t, srv.URL, lookup.Service)
	}

	assert.Equal(t, []change{{"", "203.0.113.1"}, {"203.0.113.1", "203.0.113.2"}}, changes)
	assert.Equal(t, "203.0.113.2", w.Last())
	assert.Equal(t, 3, rec.count())
}

func TestWatcher_CheckFailureIsRecorded(t *testing.T) {
	srv := statusServer(t, http.StatusServiceUnavailable)
	rec := &memRecorder{err: errors.New("disk full")}

	called := false
	w, err := NewWatcher(NewResolver(Config{Services: []string{srv.URL}}), rec, time.Hour,
		func(string, string) { called = true })
	require.NoError(t, err)

	lookup := w.Check(context.Background())

	assert.False(t, lookup.Success)
	assert.Contains(t, lookup.ErrorMessage, "no public IP address resolved")
	assert.Equal(t, 1, rec.count())
	assert.False(t, called)
	assert.Empty(t, w.Last())
}

func TestWatcher_StartStop(t *testing.T) {
	srv := echoServer(t, "192.0.2.44")
	rec := &memRecorder{}

	w, err := NewWatcher(NewResolver(Config{Services: []string{srv.URL}}), rec, time.Hour, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start must fail")

	// The first run is scheduled immediately.
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "192.0.2.44", w.Last())

	require.NoError(t, w.Stop())
	assert.Error(t, w.Stop(), "second stop must fail")
}

func TestNewLookup(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ok := NewLookup(&Answer{IP: "192.0.2.1", Service: "http://x/", Elapsed: 42 * time.Millisecond}, nil, at)
	assert.True(t, ok.Success)
	assert.Equal(t, "192.0.2.1", ok.Address)
	assert.Equal(t, int64(42), ok.ElapsedMS)
	assert.Equal(t, at, ok.ResolvedAt)

	failed := NewLookup(nil, errors.New("boom"), at)
	assert.False(t, failed.Success)
	assert.Equal(t, "boom", failed.ErrorMessage)
	assert.Empty(t, failed.Address)
}
