package device

// Device is an immutable endpoint descriptor. Descriptors are never
// persisted; built-ins are compiled in and the rest are discovered
// live from the hub.
type Device struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// Kind is the routing classification for an endpoint.
type Kind string

// Endpoint kinds. Television and StreamingDevice map to fixed local IR
// keys; HubManaged endpoints are forwarded verbatim to the hub.
const (
	KindTelevision      Kind = "television"
	KindStreamingDevice Kind = "streaming_device"
	KindHubManaged      Kind = "hub_managed"
)

// IR key identifiers understood by the emitter. Opaque strings; the
// emitter translates them into pulses.
const (
	KeyPower      = "power"
	KeyVolumeUp   = "volume up"
	KeyVolumeDown = "volume down"
	KeyMute       = "mute"
)

// Built-in endpoint ids.
const (
	EndpointTV   = "tv"
	EndpointRoku = "roku"
)
