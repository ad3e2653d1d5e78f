package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound frame types. Unknown types are ignored, not rejected, so older
// servers tolerate newer clients.
const (
	InboundTypeJoin               = "join"
	InboundTypeMove               = "move"
	InboundTypeLeave              = "leave"
	InboundTypeSendChatMessage    = "send-chat-message"
	InboundTypeGetChatMessages    = "get-chat-messages"
	InboundTypeLeaveProximityCall = "leave-proximity-call"
	InboundTypeSessionDescription = "session-description"
	InboundTypeICECandidate       = "ice-candidate"
)

// Outbound frame types.
const (
	OutboundTypeSpaceJoined        = "space-joined"
	OutboundTypeUserJoin           = "user-join"
	OutboundTypeMovement           = "movement"
	OutboundTypeMovementRejected   = "movement-rejected"
	OutboundTypeUserLeft           = "user-left"
	OutboundTypeProximityUsers     = "proximity-users"
	OutboundTypeCallCreated        = "proximity-call-created"
	OutboundTypeCallUpdated        = "proximity-call-updated"
	OutboundTypeCallsMerged        = "proximity-calls-merged"
	OutboundTypeUserLeftCall       = "user-left-proximity-call"
	OutboundTypeChatMessage        = "chat-message"
	OutboundTypeChatMessages       = "chat-messages"
	OutboundTypeSessionDescription = "session-description"
	OutboundTypeICECandidate       = "ice-candidate"
	OutboundTypeError              = "error"
)

// JoinData requests to join a space; the token authenticates the connection.
type JoinData struct {
	SpaceID string `json:"spaceId"`
	Token   string `json:"token"`
}

// MoveData is an absolute target coordinate; only unit steps are accepted.
type MoveData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SendChatData carries an outgoing chat message body.
type SendChatData struct {
	Message string `json:"message"`
}

// SignalData is an opaque signaling payload addressed to one participant.
type SignalData struct {
	TargetUserID string          `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// UserInfo describes a participant with its position.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// CallParticipant describes a member of a proximity call.
type CallParticipant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// SpawnPoint is the coordinate assigned on space join.
type SpawnPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SpaceJoinedData confirms a join with the current roster.
type SpaceJoinedData struct {
	UserID string     `json:"userId"`
	Spawn  SpawnPoint `json:"spawn"`
	Users  []UserInfo `json:"users"`
}

// UserJoinData announces a participant entering the space.
type UserJoinData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// MovementData announces an accepted move.
type MovementData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// MovementRejectedData echoes the last valid coordinate after a bad move.
type MovementRejectedData struct {
	Username string `json:"username"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// UserLeftData announces a participant leaving the space.
type UserLeftData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ProximityUsersData delivers the mover's recomputed proximity set.
type ProximityUsersData struct {
	Users []ProximityUser `json:"users"`
}

// ProximityUser describes one member of a proximity set.
type ProximityUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// CallData describes a call session roster after a transition.
type CallData struct {
	CallID       string            `json:"callId"`
	Participants []CallParticipant `json:"participants"`
}

// UserLeftCallData announces a participant leaving a call session.
type UserLeftCallData struct {
	CallID                string            `json:"callId"`
	LeftUserID            string            `json:"leftUserId"`
	RemainingParticipants []CallParticipant `json:"remainingParticipants"`
}

// ChatMessageData is a stored chat message with its server-assigned identity.
type ChatMessageData struct {
	ID        int64  `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	SpaceID   string `json:"spaceId"`
}

// ChatMessagesData delivers recent chat history.
type ChatMessagesData struct {
	Messages []ChatMessageData `json:"messages"`
}

// SignalForwardData is a relayed signaling payload with its sender.
type SignalForwardData struct {
	FromUserID   string          `json:"fromUserId"`
	FromUsername string          `json:"fromUsername"`
	Payload      json.RawMessage `json:"payload"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
