// Package mqtt provides a publish-only MQTT client for ir-relay events.
//
// The relay publishes two kinds of messages:
//
//   - irrelay/event/command: a CommandEvent for every dispatched command
//   - irrelay/system/status: retained online/offline status with LWT
//
// The client never subscribes. It is optional; when mqtt.enabled is
// false in config.yaml the relay runs without it and command events
// are only written to the audit log.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishCommandEvent(mqtt.CommandEvent{
//	    EndpointID: "tv-lounge",
//	    Resource:   "volume",
//	    Command:    "volume up",
//	    Count:      5,
//	    Target:     "emitter",
//	    Status:     "accepted",
//	})
package mqtt
