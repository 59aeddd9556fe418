package voxws

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Actions understood on the $default route.
const (
	ActionGetConnectionID = "getConnectionId"
)

// Reply message types.
const (
	MsgConnectionID = "connectionId"
)

// Command is the envelope clients send over an established connection.
type Command struct {
	Action string `json:"action"`
}

// ConnectionIDReply answers getConnectionId.
type ConnectionIDReply struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

// ParseCommand decodes a message body. An empty body is an empty command.
// The body must be a JSON object; an action that is not a string decodes as
// no action, which no handler recognizes.
func ParseCommand(body string) (Command, error) {
	if strings.TrimSpace(body) == "" {
		return Command{}, nil
	}
	var raw struct {
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	var cmd Command
	if len(raw.Action) > 0 && raw.Action[0] == '"' {
		if err := json.Unmarshal(raw.Action, &cmd.Action); err != nil {
			return Command{}, fmt.Errorf("invalid command action: %w", err)
		}
	}
	return cmd, nil
}

// ConnectionIDMessage returns the reply pushed for getConnectionId.
func ConnectionIDMessage(connectionID string) []byte {
	b, _ := json.Marshal(ConnectionIDReply{Type: MsgConnectionID, ConnectionID: connectionID})
	return b
}
