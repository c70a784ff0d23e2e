package model

import "time"

// Device is a sensor endpoint registered by a user. DeviceID is the
// external-facing identifier carried on the bus and in telemetry payloads,
// distinct from the internal serial key, and globally unique.
type Device struct {
	ID       int64      `json:"id"`
	DeviceID string     `json:"device_id"`
	Name     string     `json:"name"`
	Location string     `json:"location,omitempty"`
	Type     string     `json:"type"`
	IsActive bool       `json:"is_active"`
	OwnerID  string     `json:"-"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}
