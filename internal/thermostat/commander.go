package thermostat

import (
	"context"

	"github.com/julius090/fusion-thermostat/internal/climate"
)

// Commander issues a heating intent to one real thermostat. Commands
// are idempotent at the device: resubmitting the intent a device is
// already in is a no-op.
//
// Implementations own the actual device communication. The group never
// assumes anything about transport.
type Commander interface {
	Command(ctx context.Context, memberID string, intent climate.Intent) error
}
