package models

import "time"

// IPLookup represents a public IP resolution attempt
type IPLookup struct {
	ID           int64     `json:"id"`
	Address      string    `json:"address,omitempty"` // empty if failed
	Service      string    `json:"service,omitempty"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}
