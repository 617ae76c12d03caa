/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package hmr

import (
	"encoding/json"
	"fmt"

	"bennypowers.dev/hotswap/graph"
)

// MessageType is the type of a wire message.
type MessageType string

const (
	// MessageUpdate carries code to evaluate in place.
	MessageUpdate MessageType = "update"
	// MessageReload tells the client to reload fully.
	MessageReload MessageType = "reload"
)

// Message is sent to HMR clients as JSON:
//
//	{"type":"update","id":3,"body":"..."}
//	{"type":"reload"}
type Message struct {
	Type MessageType
	// ID is the module whose dispose and accept callbacks frame the update.
	ID   graph.ModuleID
	Body string
}

// UpdateMessage returns an update for base carrying body.
func UpdateMessage(base graph.ModuleID, body string) Message {
	return Message{Type: MessageUpdate, ID: base, Body: body}
}

// ReloadMessage returns a full reload instruction.
func ReloadMessage() Message {
	return Message{Type: MessageReload}
}

type updatePayload struct {
	Type MessageType    `json:"type"`
	ID   graph.ModuleID `json:"id"`
	Body string         `json:"body"`
}

type reloadPayload struct {
	Type MessageType `json:"type"`
}

// MarshalJSON encodes the message in its wire form.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case MessageUpdate:
		return json.Marshal(updatePayload{Type: m.Type, ID: m.ID, Body: m.Body})
	case MessageReload:
		return json.Marshal(reloadPayload{Type: m.Type})
	}
	return nil, fmt.Errorf("unknown message type %q", m.Type)
}

// UnmarshalJSON decodes a wire message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var payload updatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	switch payload.Type {
	case MessageUpdate, MessageReload:
	default:
		return fmt.Errorf("unknown message type %q", payload.Type)
	}
	*m = Message{Type: payload.Type, ID: payload.ID, Body: payload.Body}
	return nil
}

// Delegate delivers messages to connected clients. Sends are fire and
// forget: with no client connected a send does nothing.
type Delegate interface {
	Send(msg Message)
}

// DelegateFunc adapts a function to the Delegate interface.
type DelegateFunc func(msg Message)

// Send calls f.
func (f DelegateFunc) Send(msg Message) { f(msg) }
