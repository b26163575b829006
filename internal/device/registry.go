package device

import (
	"context"

	"github.com/nerrad567/ir-relay/internal/hub"
	"github.com/nerrad567/ir-relay/internal/infrastructure/logging"
)

// Source provides live device discovery, implemented by the hub client.
type Source interface {
	Devices(ctx context.Context) ([]hub.Device, error)
}

// builtins are the IR-controlled endpoints the relay exists for. The
// registry owns the only copy; callers get clones.
var builtins = []Device{
	{
		ID:           EndpointTV,
		Type:         string(KindTelevision),
		Name:         "Living Room TV",
		Description:  "Infrared controlled television",
		Manufacturer: "Samsung",
	},
	{
		ID:           EndpointRoku,
		Type:         string(KindStreamingDevice),
		Name:         "Streaming Player",
		Description:  "Infrared controlled streaming device",
		Manufacturer: "Roku",
	},
}

// Registry exposes the endpoint list and routing classification.
type Registry struct {
	source Source
	logger *logging.Logger
}

// NewRegistry creates a registry backed by the given discovery source.
//
// Parameters:
//   - source: Hub client for live discovery (nil disables discovery)
//   - logger: Logger for discovery failures
func NewRegistry(source Source, logger *logging.Logger) *Registry {
	return &Registry{
		source: source,
		logger: logger.With("component", "registry"),
	}
}

// Builtins returns a copy of the built-in descriptors.
func (r *Registry) Builtins() []Device {
	out := make([]Device, len(builtins))
	copy(out, builtins)
	return out
}

// Classify maps an endpoint id to its routing kind.
//
// Unknown ids classify as HubManaged: they are forwarded to the hub
// verbatim and the hub decides whether they exist.
func (r *Registry) Classify(endpointID string) Kind {
	switch endpointID {
	case EndpointTV:
		return KindTelevision
	case EndpointRoku:
		return KindStreamingDevice
	default:
		return KindHubManaged
	}
}

// List returns the built-in descriptors merged with live hub devices.
//
// Hub failure degrades gracefully: the error is logged and the static
// set is returned alone. Callers cannot tell a hub outage from a hub
// with no devices, which is the intended read-only behavior.
//
// Parameters:
//   - ctx: Context for timeout/cancellation of the hub call
//
// Returns:
//   - []Device: Built-ins plus valid, non-colliding hub devices
func (r *Registry) List(ctx context.Context) []Device {
	static := r.Builtins()
	if r.source == nil {
		return static
	}

	discovered, err := r.source.Devices(ctx)
	if err != nil {
		r.logger.Warn("device discovery failed, serving static list", "error", err)
		return static
	}

	return Merge(static, discovered)
}

// Merge appends hub-discovered descriptors to the static set.
//
// Discovered entries are skipped when invalid (missing id, title, or
// type) or when their id collides with a static descriptor; built-ins
// always win.
func Merge(static []Device, discovered []hub.Device) []Device {
	taken := make(map[string]bool, len(static))
	for _, d := range static {
		taken[d.ID] = true
	}

	out := static
	for _, d := range discovered {
		if d.ID == "" || d.Title == "" || d.Type == "" {
			continue
		}
		if taken[d.ID] {
			continue
		}
		taken[d.ID] = true
		out = append(out, Device{
			ID:   d.ID,
			Type: d.Type,
			Name: d.Title,
		})
	}

	return out
}
