// Package streaming defines the wire protocol spoken by the websocket
// journal relay.
package streaming

import (
	"encoding/json"

	"github.com/roverfleet/console/pkg/core"
)

// Message type constants of the relay protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeFleetEvent   = "fleet_event"
	TypeSnapshot     = "fleet_snapshot"
)

// TypeAck is the Type of every AckMessage.
const TypeAck = "ack"

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"` // the message type being acknowledged
}

// StartSessionPayload announces a console session and the fleet it starts
// from.
type StartSessionPayload struct {
	Session  *core.Session       `json:"session"`
	Snapshot *core.FleetSnapshot `json:"snapshot,omitempty"`
}

// Marshal builds a JSON-encoded Envelope around payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
