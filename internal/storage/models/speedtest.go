package models

import "time"

// SpeedTest represents a recorded speed test run
type SpeedTest struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	LatencyMS     float64   `json:"latency_ms"`
	JitterMS      float64   `json:"jitter_ms"`
	DownloadBps   float64   `json:"download_bps"` // bytes per second
	UploadBps     float64   `json:"upload_bps"`
	DownloadBytes int64     `json:"download_bytes"`
	UploadBytes   int64     `json:"upload_bytes"`
	ServerColo    string    `json:"server_colo,omitempty"`
	ExternalIP    string    `json:"external_ip,omitempty"`
	TestedAt      time.Time `json:"tested_at"`
}
