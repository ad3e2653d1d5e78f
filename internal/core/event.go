package core

import (
	"encoding/json"

	"github.com/gridspace/gridspace-server/internal/store"
)

// EventKind is a notification the core emits to participants.
type EventKind int

const (
	// EventSpaceJoined confirms a join with spawn point and current roster.
	EventSpaceJoined EventKind = iota
	// EventUserJoined notifies occupants that a participant entered the space.
	EventUserJoined
	// EventMovement notifies occupants about an accepted move.
	EventMovement
	// EventMovementRejected echoes the last valid coordinate after a bad move.
	EventMovementRejected
	// EventUserLeft notifies occupants that a participant left the space.
	EventUserLeft
	// EventProximityUsers delivers the recomputed proximity set to the mover.
	EventProximityUsers

	// Proximity call events
	// EventCallCreated notifies members of a freshly created call session.
	EventCallCreated
	// EventCallUpdated notifies members that the session roster grew.
	EventCallUpdated
	// EventCallsMerged notifies members that sessions were merged into one.
	EventCallsMerged
	// EventCallLeft notifies remaining members that a participant left a call.
	EventCallLeft

	// EventChatMessage delivers a stored chat message to space occupants.
	EventChatMessage
	// EventChatHistory delivers recent chat history to the requester.
	EventChatHistory
	// EventSignal forwards an opaque signaling payload to its target.
	EventSignal
	// EventError notifies a participant about a domain error.
	EventError
)

// Ref identifies a participant together with its grid position.
type Ref struct {
	ID       string
	Username string
	X, Y     int
}

// CallNotice carries call-session data for call events.
type CallNotice struct {
	CallID       string
	Participants []Ref
	LeftID       string // set for EventCallLeft
}

// Signal carries an opaque signaling payload between two participants.
type Signal struct {
	FromID       string
	FromUsername string
	Type         string
	Payload      json.RawMessage
}

// Event is sent to participants to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Space    string
	User     Ref              // subject of join/move/left events
	Spawn    *Ref             // spawn position for EventSpaceJoined
	Roster   []Ref            // space roster or proximity set
	Message  *store.Message   // for EventChatMessage
	Messages []*store.Message // for EventChatHistory
	Call     *CallNotice      // non-nil for call events
	Signal   *Signal          // non-nil for EventSignal
	Error    *CoreError       // non-nil for EventError
}
