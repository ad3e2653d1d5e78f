package core

import "encoding/json"

// CommandKind describes what the participant wants to do.
type CommandKind int

const (
	// CommandJoinSpace places the participant into a space.
	CommandJoinSpace CommandKind = iota
	// CommandMove requests a unit step to a new grid coordinate.
	CommandMove
	// CommandLeaveSpace removes the participant from its current space.
	CommandLeaveSpace
	// CommandSendChat delivers a chat message to space occupants.
	CommandSendChat
	// CommandGetChat requests recent chat history for the current space.
	CommandGetChat
	// CommandLeaveCall explicitly leaves the current proximity call.
	CommandLeaveCall
	// CommandSignal forwards an opaque signaling payload to a participant.
	CommandSignal
)

// Command represents an action requested by a participant.
type Command struct {
	Kind  CommandKind
	Space string

	// Move target (absolute grid coordinate).
	X, Y int

	// Chat text.
	Text string

	// Signaling relay.
	TargetID   string
	SignalType string
	Payload    json.RawMessage
}
