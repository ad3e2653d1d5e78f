package http

import (
	"encoding/json"

	"github.com/gridspace/gridspace-server/internal/core"
	"github.com/gridspace/gridspace-server/internal/proto"
)

// inboundToCommand translates a post-authentication frame into a core
// command. A nil command with a nil error means the frame was ignored
// (unknown types are tolerated for protocol evolution).
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeMove:
		var move proto.MoveData
		if err := json.Unmarshal(inbound.Data, &move); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandMove, X: move.X, Y: move.Y}, nil, nil

	case proto.InboundTypeLeave:
		return &core.Command{Kind: core.CommandLeaveSpace}, nil, nil

	case proto.InboundTypeSendChatMessage:
		var chat proto.SendChatData
		if err := json.Unmarshal(inbound.Data, &chat); err != nil {
			return nil, nil, err
		}
		if chat.Message == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message is required"}, nil
		}
		return &core.Command{Kind: core.CommandSendChat, Text: chat.Message}, nil, nil

	case proto.InboundTypeGetChatMessages:
		return &core.Command{Kind: core.CommandGetChat}, nil, nil

	case proto.InboundTypeLeaveProximityCall:
		return &core.Command{Kind: core.CommandLeaveCall}, nil, nil

	case proto.InboundTypeSessionDescription, proto.InboundTypeICECandidate:
		var sig proto.SignalData
		if err := json.Unmarshal(inbound.Data, &sig); err != nil {
			return nil, nil, err
		}
		if sig.TargetUserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "targetUserId is required"}, nil
		}
		return &core.Command{
			Kind:       core.CommandSignal,
			TargetID:   sig.TargetUserID,
			SignalType: inbound.Type,
			Payload:    sig.Payload,
		}, nil, nil

	default:
		// Unknown frame types are ignored, not rejected.
		return nil, nil, nil
	}
}

// outboundFromEvent serializes a core event into a wire frame. terminal
// reports that the connection must close after the frame is written.
func outboundFromEvent(event *core.Event) (frame proto.Outbound, terminal bool) {
	switch event.Kind {
	case core.EventSpaceJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeSpaceJoined,
			Data: proto.SpaceJoinedData{
				UserID: event.User.ID,
				Spawn:  proto.SpawnPoint{X: event.Spawn.X, Y: event.Spawn.Y},
				Users:  userInfos(event.Roster),
			},
		}, false

	case core.EventUserJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeUserJoin,
			Data: proto.UserJoinData{
				UserID:   event.User.ID,
				Username: event.User.Username,
				X:        event.User.X,
				Y:        event.User.Y,
			},
		}, false

	case core.EventMovement:
		return proto.Outbound{
			Type: proto.OutboundTypeMovement,
			Data: proto.MovementData{
				UserID:   event.User.ID,
				Username: event.User.Username,
				X:        event.User.X,
				Y:        event.User.Y,
			},
		}, false

	case core.EventMovementRejected:
		return proto.Outbound{
			Type: proto.OutboundTypeMovementRejected,
			Data: proto.MovementRejectedData{
				Username: event.User.Username,
				X:        event.User.X,
				Y:        event.User.Y,
			},
		}, false

	case core.EventUserLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeUserLeft,
			Data: proto.UserLeftData{
				UserID:   event.User.ID,
				Username: event.User.Username,
			},
		}, false

	case core.EventProximityUsers:
		users := make([]proto.ProximityUser, 0, len(event.Roster))
		for _, ref := range event.Roster {
			users = append(users, proto.ProximityUser{
				UserID:   ref.ID,
				Username: ref.Username,
				X:        ref.X,
				Y:        ref.Y,
			})
		}
		return proto.Outbound{
			Type: proto.OutboundTypeProximityUsers,
			Data: proto.ProximityUsersData{Users: users},
		}, false

	case core.EventCallCreated:
		return callFrame(proto.OutboundTypeCallCreated, event), false
	case core.EventCallUpdated:
		return callFrame(proto.OutboundTypeCallUpdated, event), false
	case core.EventCallsMerged:
		return callFrame(proto.OutboundTypeCallsMerged, event), false

	case core.EventCallLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeUserLeftCall,
			Data: proto.UserLeftCallData{
				CallID:                event.Call.CallID,
				LeftUserID:            event.Call.LeftID,
				RemainingParticipants: callParticipants(event.Call.Participants),
			},
		}, false

	case core.EventChatMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeChatMessage,
			Data: chatMessageData(event),
		}, false

	case core.EventChatHistory:
		messages := make([]proto.ChatMessageData, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, proto.ChatMessageData{
				ID:        msg.ID,
				UserID:    msg.UserID,
				Username:  msg.Username,
				AvatarURL: msg.AvatarURL,
				Message:   msg.Body,
				Timestamp: msg.CreatedAt.UnixMilli(),
				SpaceID:   msg.SpaceID,
			})
		}
		return proto.Outbound{
			Type: proto.OutboundTypeChatMessages,
			Data: proto.ChatMessagesData{Messages: messages},
		}, false

	case core.EventSignal:
		return proto.Outbound{
			Type: event.Signal.Type,
			Data: proto.SignalForwardData{
				FromUserID:   event.Signal.FromID,
				FromUsername: event.Signal.FromUsername,
				Payload:      event.Signal.Payload,
			},
		}, false

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "unknown", Msg: "unknown error"},
			}, false
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}, event.Error.Terminal()

	default:
		return proto.Outbound{Type: proto.OutboundTypeError,
			Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}, false
	}
}

func callFrame(frameType string, event *core.Event) proto.Outbound {
	return proto.Outbound{
		Type: frameType,
		Data: proto.CallData{
			CallID:       event.Call.CallID,
			Participants: callParticipants(event.Call.Participants),
		},
	}
}

func callParticipants(refs []core.Ref) []proto.CallParticipant {
	out := make([]proto.CallParticipant, 0, len(refs))
	for _, ref := range refs {
		out = append(out, proto.CallParticipant{UserID: ref.ID, Username: ref.Username})
	}
	return out
}

func userInfos(refs []core.Ref) []proto.UserInfo {
	out := make([]proto.UserInfo, 0, len(refs))
	for _, ref := range refs {
		out = append(out, proto.UserInfo{ID: ref.ID, Username: ref.Username, X: ref.X, Y: ref.Y})
	}
	return out
}

func chatMessageData(event *core.Event) proto.ChatMessageData {
	msg := event.Message
	return proto.ChatMessageData{
		ID:        msg.ID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		AvatarURL: msg.AvatarURL,
		Message:   msg.Body,
		Timestamp: msg.CreatedAt.UnixMilli(),
		SpaceID:   msg.SpaceID,
	}
}
