// Package system orders the start and stop of long-running components.
package system

import "context"

// Service is a component the Manager starts and stops. Stop must be safe to
// call on a service that never started.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
