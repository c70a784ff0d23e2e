package telemetry

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Message is one telemetry sample as carried on the bus and on the client
// wire. The payload is an open JSON object: the known sensor fields are
// decoded out of it, everything else lands in Extra. Required: device_id.
type Message struct {
	DeviceID    string   `mapstructure:"device_id"`
	Temperature *float64 `mapstructure:"temperature"`
	Humidity    *float64 `mapstructure:"humidity"`
	Pressure    *float64 `mapstructure:"pressure"`
	Voltage     *float64 `mapstructure:"voltage"`

	Extra map[string]interface{} `mapstructure:",remain"`

	raw []byte
}

// Parse validates raw as a telemetry message. The original bytes are kept
// so forwarding to clients round-trips every attribute losslessly.
func Parse(raw []byte) (*Message, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrap(err, "telemetry: not a JSON object")
	}

	var m Message
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &m,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "telemetry: decoder")
	}
	if err := dec.Decode(obj); err != nil {
		return nil, errors.Wrap(err, "telemetry: decode fields")
	}
	if m.DeviceID == "" {
		return nil, errors.New("telemetry: missing device_id")
	}
	m.raw = raw
	return &m, nil
}

// Raw returns the original payload bytes as published on the bus.
func (m *Message) Raw() []byte { return m.raw }

// Timestamp extracts a client supplied timestamp from the open map, falling
// back to now. Accepts RFC3339 strings and unix seconds.
func (m *Message) Timestamp() time.Time {
	if v, ok := m.Extra["timestamp"]; ok {
		switch t := v.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, t); err == nil {
				return ts
			}
		case float64:
			return time.Unix(int64(t), 0).UTC()
		}
	}
	return time.Now().UTC()
}
