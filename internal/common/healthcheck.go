package common

import "context"

// ComponentStatus is the health report for a single dependency, as returned
// by the healthz endpoint.
type ComponentStatus struct {
	Name    string         `json:"name"`
	Healthy bool           `json:"healthy"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type HealthCheckable interface {
	HealthCheck(ctx context.Context) ComponentStatus
}
