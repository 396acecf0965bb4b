// Package store persists the desktop tool's deployment history: which
// build was pushed to which device, and when. The CLI consults it to
// tell redundant deployments from real ones.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface for deployment history.
// Implementations must be safe for concurrent use.
type Store interface {
	// RecordDeployment saves one completed build-id push.
	RecordDeployment(ctx context.Context, d *Deployment) error

	// LatestDeployment returns the most recent deployment of appID to
	// deviceSerial, or nil when there has never been one.
	LatestDeployment(ctx context.Context, appID, deviceSerial string) (*Deployment, error)

	// ListDeployments returns all deployments of appID, newest first.
	ListDeployments(ctx context.Context, appID string) ([]*Deployment, error)

	// DeleteDeployments removes all history for appID.
	DeleteDeployments(ctx context.Context, appID string) error

	// Close releases database resources.
	Close() error
}

// Deployment is the persistent record of one build-id push.
type Deployment struct {
	ID           string    `json:"id"`
	AppID        string    `json:"app_id"`
	BuildID      string    `json:"build_id"`
	DeviceSerial string    `json:"device_serial"`
	DeployedAt   time.Time `json:"deployed_at"`
}
