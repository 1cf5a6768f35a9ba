package app

import (
	"context"
	"time"

	"nodectl/internal/logger"
	"nodectl/internal/publicip"
	"nodectl/internal/speedtest"
	"nodectl/internal/storage/models"
)

// RunSpeedTest runs a speed test and records the outcome, failed runs
// included. Recording is best-effort.
func (a *App) RunSpeedTest(ctx context.Context, cfg speedtest.Config) (*speedtest.Result, error) {
	started := time.Now()
	result, err := speedtest.Run(ctx, cfg)

	record := speedTestRecord(result, err, started)
	if recErr := a.Storage.RecordSpeedTest(context.WithoutCancel(ctx), record); recErr != nil {
		logger.Warn("failed to record speed test: %v", recErr)
	}
	return result, err
}

func speedTestRecord(result *speedtest.Result, err error, started time.Time) *models.SpeedTest {
	record := &models.SpeedTest{TestedAt: started}
	if err != nil || result == nil {
		if err != nil {
			record.ErrorMessage = err.Error()
		}
		return record
	}

	record.Success = true
	record.RunID = result.RunID
	record.TestedAt = result.Timestamp
	record.LatencyMS = result.Ping.LatencyMS
	record.JitterMS = result.Ping.JitterMS
	record.DownloadBps = result.Download.Bandwidth
	record.UploadBps = result.Upload.Bandwidth
	record.DownloadBytes = result.Download.Bytes
	record.UploadBytes = result.Upload.Bytes
	record.ServerColo = result.Server.Colo
	record.ExternalIP = result.ExternalIP
	return record
}

// ResolveIP resolves the public IP once and records the lookup.
func (a *App) ResolveIP(ctx context.Context, cfg publicip.Config) (*publicip.Answer, error) {
	started := time.Now()
	answer, err := publicip.NewResolver(cfg).ResolveDetailed(ctx)

	if recErr := a.Storage.RecordIPLookup(context.WithoutCancel(ctx), publicip.NewLookup(answer, err, started)); recErr != nil {
		logger.Warn("failed to record ip lookup: %v", recErr)
	}
	return answer, err
}

// NewWatcher creates an IP watcher that records into the application's storage.
func (a *App) NewWatcher(cfg publicip.Config, interval time.Duration, onChange publicip.ChangeFunc) (*publicip.Watcher, error) {
	return publicip.NewWatcher(publicip.NewResolver(cfg), a.Storage, interval, onChange)
}
