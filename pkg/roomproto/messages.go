// Package roomproto is the wire protocol between room clients and the relay.
package roomproto

import (
	"encoding/json"
	"fmt"
)

// Message type constants.
const (
	TypeJoin                = "join"
	TypeSetProperties       = "set_properties"
	TypeSetPlayerProperties = "set_player_properties"
	TypePropertiesChanged   = "properties_changed"
	TypeAck                 = "ack"
	TypeError               = "error"
)

// Envelope wraps all messages sent over the WebSocket. Seq is chosen by the
// client and echoed in the ack.
type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the relay's acknowledgement of one client message.
type AckMessage struct {
	Type  string `json:"type"` // always "ack"
	For   string `json:"for"`  // the message type being acknowledged
	Seq   uint64 `json:"seq"`
	Error string `json:"error,omitempty"`
}

// JoinPayload names the room and the joining participant.
type JoinPayload struct {
	Room        string `json:"room"`
	Participant string `json:"participant"`
}

// PropertiesPayload carries one batch of changed keys. A null value clears
// the key.
type PropertiesPayload struct {
	Properties map[string]any `json:"properties"`
	Writer     string         `json:"writer,omitempty"`
}

// ErrorPayload reports a rejected message that had no sequence number.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, seq uint64, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, Seq: seq}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Ack builds the acknowledgement of env. A non-nil err is reported to the client.
func Ack(env Envelope, err error) ([]byte, error) {
	ack := AckMessage{Type: TypeAck, For: env.Type, Seq: env.Seq}
	if err != nil {
		ack.Error = err.Error()
	}
	return json.Marshal(ack)
}

// DecodePayload unmarshals env's payload into out.
func DecodePayload(env Envelope, out any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("%s payload: %w", env.Type, err)
	}
	return nil
}
