// Package protocol reads Singer messages and drives the per-stream pipeline:
// schemas are flattened and registered, records are validated, flattened and
// appended, and the last confirmed checkpoint is handed back to the caller.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Message types
const (
	TypeSchema          = "SCHEMA"
	TypeRecord          = "RECORD"
	TypeState           = "STATE"
	TypeActivateVersion = "ACTIVATE_VERSION"
)

var (
	// ErrMalformedLine is returned for a line that is not a JSON object
	ErrMalformedLine = errors.New("malformed line")
	// ErrMissingKey is returned when a message lacks a key its type requires
	ErrMissingKey = errors.New("missing required key")
	// ErrUnknownMessageType is returned for a type outside the Singer protocol
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrSchemaMissing is returned for a record whose stream was never announced
	ErrSchemaMissing = errors.New("schema missing for stream")
)

var requiredKeys = map[string][]string{
	TypeSchema:          {"stream", "schema", "key_properties"},
	TypeRecord:          {"stream", "record"},
	TypeState:           {"value"},
	TypeActivateVersion: {},
}

// Message is one parsed input line
type Message struct {
	Type          string
	Stream        string
	Schema        json.RawMessage
	KeyProperties []string
	// Record holds numbers as json.Number
	Record  map[string]any
	Value   json.RawMessage
	Version *int64
}

// ParseMessage decodes one line of input
func ParseMessage(line []byte) (*Message, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrMalformedLine)
	}

	rawType, ok := raw["type"]
	if !ok {
		return nil, fmt.Errorf("%w: type", ErrMissingKey)
	}

	msg := &Message{}
	if err := json.Unmarshal(rawType, &msg.Type); err != nil {
		return nil, fmt.Errorf("%w: type must be a string", ErrMalformedLine)
	}

	required, known := requiredKeys[msg.Type]
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
	for _, key := range required {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("%w: %s message requires %q", ErrMissingKey, msg.Type, key)
		}
	}

	if v, ok := raw["stream"]; ok {
		if err := json.Unmarshal(v, &msg.Stream); err != nil {
			return nil, fmt.Errorf("%w: stream must be a string", ErrMalformedLine)
		}
	}

	switch msg.Type {
	case TypeSchema:
		msg.Schema = raw["schema"]
		if err := json.Unmarshal(raw["key_properties"], &msg.KeyProperties); err != nil {
			return nil, fmt.Errorf("%w: key_properties must be a list of strings", ErrMalformedLine)
		}
	case TypeRecord:
		record, err := decodeRecord(raw["record"])
		if err != nil {
			return nil, err
		}
		msg.Record = record
	case TypeState:
		msg.Value = raw["value"]
	case TypeActivateVersion:
		if v, ok := raw["version"]; ok {
			var version int64
			if err := json.Unmarshal(v, &version); err == nil {
				msg.Version = &version
			}
		}
	}

	return msg, nil
}

func decodeRecord(data json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: record must be an object: %v", ErrMalformedLine, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: record must be an object", ErrMalformedLine)
	}
	return record, nil
}
