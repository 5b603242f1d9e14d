package messenger

import (
	"fmt"

	"casehub/core"

	"github.com/vmihailenco/msgpack/v5"
)

// DefaultSelector tags every message published by this application. Channels
// subscribe only to messages carrying their selector.
const DefaultSelector = "casehub-events"

// envelope is the wire form of one event
type envelope struct {
	Selector string             `msgpack:"selector"`
	Sender   string             `msgpack:"sender"`
	Type     string             `msgpack:"type"`
	Payload  msgpack.RawMessage `msgpack:"payload"`
}

func encodeEvent(selector, sender string, event core.Event) ([]byte, error) {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.EventType(), err)
	}
	return msgpack.Marshal(&envelope{
		Selector: selector,
		Sender:   sender,
		Type:     event.EventType(),
		Payload:  payload,
	})
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}
	return &env, nil
}

func decodeEvent(registry *Registry, env *envelope) (core.Event, error) {
	event, err := registry.New(env.Type)
	if err != nil {
		return nil, err
	}
	if err := msgpack.Unmarshal(env.Payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", env.Type, err)
	}
	return event, nil
}
