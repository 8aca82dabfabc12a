package eventbus

import "context"

// Topics published on the bus.
const (
	TopicDeviceUpdate     = "registry.device.update"
	TopicFirmwareProgress = "firmware.progress"
)

// Event is a keyed message. Events with the same Key are delivered in
// order; ordering across keys is not guaranteed.
type Event struct {
	Topic   string      `json:"topic"`
	Key     string      `json:"key"`
	Payload interface{} `json:"payload"`
}

// Handler consumes events for a topic.
type Handler func(event *Event) error

// partition is one ordered delivery lane.
type partition struct {
	id     int
	queue  chan *Event
	ctx    context.Context
	cancel context.CancelFunc
}
