package queue

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Stream field names besides the headers.
const (
	fieldQueue   = "queue"
	fieldPayload = "payload"
)

// encodeFields flattens msg into the field map stored with a stream entry.
func encodeFields(msg Message) (map[string]any, error) {
	fields := make(map[string]any, 7)
	if err := mapstructure.Decode(msg.Headers, &fields); err != nil {
		return nil, fmt.Errorf("encoding headers: %w", err)
	}

	fields[fieldQueue] = string(msg.Queue)
	fields[fieldPayload] = string(msg.Payload)

	return fields, nil
}

// decodeFields rebuilds a message from stream entry fields. Redis returns
// every value as a string, so headers are decoded weakly.
func decodeFields(fields map[string]any) (Message, error) {
	var headers Headers
	if err := mapstructure.WeakDecode(fields, &headers); err != nil {
		return Message{}, fmt.Errorf("decoding headers: %w", err)
	}

	q, _ := fields[fieldQueue].(string)
	if !Queue(q).Valid() {
		return Message{}, fmt.Errorf("unknown queue %q", q)
	}

	payload, ok := fields[fieldPayload].(string)
	if !ok {
		return Message{}, fmt.Errorf("missing payload")
	}

	return Message{
		Queue:   Queue(q),
		Headers: headers,
		Payload: []byte(payload),
	}, nil
}
