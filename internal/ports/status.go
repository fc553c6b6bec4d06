package ports

import (
	"context"

	"github.com/ghalamif/perfwatch/internal/domain"
)

// StatusSource reads the current device status.
type StatusSource interface {
	ReadStatus(ctx context.Context) (domain.Status, error)
}

// CommandSink forwards operator commands to the device backend. Calls are
// fire-and-forget: success means the backend accepted the request.
type CommandSink interface {
	SetPump(ctx context.Context, on bool) error
	SetMode(ctx context.Context, mode string) error
	SetCooling(ctx context.Context, on bool) error
	EmergencyStop(ctx context.Context) error
}

// Recorder archives readings produced by the update cycle.
type Recorder interface {
	Record(r *domain.Reading) error
}
