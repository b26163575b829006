package mqtt

// Topic structure for ir-relay.
//
// All topics live under the irrelay/ prefix:
//
//	irrelay/event/command   - command events (one per dispatched command)
//	irrelay/system/status   - relay online/offline status (retained)
const (
	// TopicCommandEvent carries a JSON CommandEvent for every command
	// the relay dispatches, whether to the IR emitter or the hub.
	TopicCommandEvent = "irrelay/event/command"

	// TopicSystemStatus carries the relay's retained online/offline status.
	// Also used as the LWT topic.
	TopicSystemStatus = "irrelay/system/status"
)
