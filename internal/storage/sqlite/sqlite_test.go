package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/storage/models"
	pkgerrors "nodectl/pkg/errors"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nodectl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_SeedsDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	all, err := db.GetAllSettings(ctx)
	require.NoError(t, err)

	assert.Equal(t, "5s", all["speedtest.max_time"])
	assert.Equal(t, "600ms", all["publicip.timeout"])
	assert.NotContains(t, all, "storage.dir")
}

func TestNew_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodectl.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.SetSetting(ctx, "publicip.timeout", "900ms"))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	v, err := db.GetSetting(ctx, "publicip.timeout")
	require.NoError(t, err)
	assert.Equal(t, "900ms", v, "migrations must not reset existing settings")
}

func TestSettings_SetGetDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetSetting(ctx, "storage.dir")
	assert.ErrorIs(t, err, pkgerrors.ErrSettingNotFound)

	require.NoError(t, db.SetSetting(ctx, "storage.dir", "/srv/a"))
	require.NoError(t, db.SetSetting(ctx, "storage.dir", "/srv/b"))

	v, err := db.GetSetting(ctx, "storage.dir")
	require.NoError(t, err)
	assert.Equal(t, "/srv/b", v)

	require.NoError(t, db.DeleteSetting(ctx, "storage.dir"))
	_, err = db.GetSetting(ctx, "storage.dir")
	assert.ErrorIs(t, err, pkgerrors.ErrSettingNotFound)

	assert.ErrorIs(t, db.DeleteSetting(ctx, "storage.dir"), pkgerrors.ErrSettingNotFound)
}

func TestSpeedTests(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	latest, err := db.GetLatestSpeedTest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		test := &models.SpeedTest{
			RunID:       "run-" + string(rune('a'+i)),
			Success:     true,
			LatencyMS:   12.5,
			DownloadBps: float64(i+1) * 1_000_000,
			ServerColo:  "AMS",
			TestedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.RecordSpeedTest(ctx, test))
		assert.NotZero(t, test.ID)
	}

	failed := &models.SpeedTest{RunID: "run-x", ErrorMessage: "connection refused"}
	require.NoError(t, db.RecordSpeedTest(ctx, failed))
	assert.False(t, failed.TestedAt.IsZero())

	history, err := db.GetSpeedTestHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "run-x", history[0].RunID)
	assert.False(t, history[0].Success)
	assert.Equal(t, "connection refused", history[0].ErrorMessage)
	assert.Equal(t, "run-c", history[1].RunID)
	assert.Equal(t, 3_000_000.0, history[1].DownloadBps)
	assert.True(t, history[1].TestedAt.Equal(base.Add(2*time.Minute)))

	limited, err := db.GetSpeedTestHistory(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err = db.GetLatestSpeedTest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-x", latest.RunID)
}

func TestIPLookups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	latest, err := db.GetLatestIPLookup(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordIPLookup(ctx, &models.IPLookup{
		Address: "203.0.113.7", Service: "http://ident.me/", ElapsedMS: 80, Success: true, ResolvedAt: base,
	}))
	require.NoError(t, db.RecordIPLookup(ctx, &models.IPLookup{
		ErrorMessage: "no public IP address resolved", ResolvedAt: base.Add(time.Minute),
	}))

	latest, err = db.GetLatestIPLookup(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "203.0.113.7", latest.Address, "latest lookup only considers successes")
	assert.Equal(t, "http://ident.me/", latest.Service)
	assert.Equal(t, int64(80), latest.ElapsedMS)

	history, err := db.GetIPHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.True(t, history[1].Success)
}
