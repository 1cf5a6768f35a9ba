package storage

import (
	"context"

	"nodectl/internal/storage/models"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Speed test operations
	RecordSpeedTest(ctx context.Context, test *models.SpeedTest) error
	GetLatestSpeedTest(ctx context.Context) (*models.SpeedTest, error)
	GetSpeedTestHistory(ctx context.Context, limit int) ([]*models.SpeedTest, error)

	// Public IP operations
	RecordIPLookup(ctx context.Context, lookup *models.IPLookup) error
	GetLatestIPLookup(ctx context.Context) (*models.IPLookup, error)
	GetIPHistory(ctx context.Context, limit int) ([]*models.IPLookup, error)

	// Close closes the storage connection
	Close() error
}
