package models

import "time"

type ApiError struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	SnapshotVersion int64  `json:"snapshot_version"`
}

type RefreshResponse struct {
	Version int64     `json:"version"`
	BuiltAt time.Time `json:"built_at"`
}
