// Package hub fans websocket messages out to every connected dashboard
// client. New clients receive the most recent message on connect so they
// start from the current state.
package hub

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/websocket/v2"
)

// MessageType indicates the websocket frame format.
type MessageType int

const (
	// JSONMessage is sent as a text frame.
	JSONMessage MessageType = iota
	// BinaryMessage is sent as a binary frame.
	BinaryMessage
)

// Message is one frame queued for broadcast.
type Message struct {
	Type MessageType
	Data []byte
}

// Event is the JSON envelope for typed broadcasts, e.g. {"type":"session","data":{...}}.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps raw bytes.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// NewEventMessage encodes an Event.
func NewEventMessage(eventType string, data any) (Message, error) {
	b, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return Message{}, err
	}
	return NewJSONMessage(b), nil
}

func (m Message) frameType() int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Command is a request sent by a client, e.g. {"type":"cancel"}.
type Command struct {
	Type string `json:"type"`
}

// ParseCommand decodes a client frame.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, err
	}
	if cmd.Type == "" {
		return Command{}, errors.New("hub: command without type")
	}
	return cmd, nil
}
