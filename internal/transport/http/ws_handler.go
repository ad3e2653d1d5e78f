package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/gridspace/gridspace-server/internal/auth"
	"github.com/gridspace/gridspace-server/internal/core"
	"github.com/gridspace/gridspace-server/internal/proto"
	"github.com/gridspace/gridspace-server/internal/store"
)

// WSHandler upgrades HTTP connections and bridges them to core.Participant.
// The first frame on a fresh connection must be a join carrying a valid
// token; everything before that is unauthenticated and rejected.
type WSHandler struct {
	hub   *core.Hub
	auth  *auth.Service
	users store.UserStore
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, users store.UserStore, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, users: users, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	participant, joinCmd, err := h.authenticate(ctx, conn)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws authentication failed")
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	h.hub.RegisterParticipant(participant)
	defer h.hub.UnregisterParticipant(participant)
	defer close(participant.Commands)

	participant.Commands <- joinCmd

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, participant)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, participant)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user_id", participant.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate consumes the first frame, which must be a join with a valid
// token, and resolves the connected identity. The participant and its call
// bookkeeping only come into existence once this succeeds.
func (h *WSHandler) authenticate(ctx context.Context, conn *websocket.Conn) (*core.Participant, *core.Command, error) {
	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, nil, fmt.Errorf("read first frame: %w", err)
	}

	if inbound.Type != proto.InboundTypeJoin {
		h.writeAuthError(ctx, conn, "join with a token first")
		return nil, nil, fmt.Errorf("first frame %q is not join", inbound.Type)
	}

	var join proto.JoinData
	if err := json.Unmarshal(inbound.Data, &join); err != nil {
		h.writeAuthError(ctx, conn, "malformed join frame")
		return nil, nil, fmt.Errorf("unmarshal join: %w", err)
	}
	if join.Token == "" || join.SpaceID == "" {
		h.writeAuthError(ctx, conn, "spaceId and token are required")
		return nil, nil, errors.New("missing spaceId or token")
	}

	claims, err := h.auth.ValidateToken(join.Token)
	if err != nil {
		h.writeAuthError(ctx, conn, "invalid token")
		return nil, nil, fmt.Errorf("validate token: %w", err)
	}

	participant := core.NewParticipant(claims.UserID, claims.Username)
	if user, lookupErr := h.users.GetUserByID(ctx, claims.UserID); lookupErr == nil {
		participant.AvatarURL = user.AvatarURL
	}

	return participant, &core.Command{Kind: core.CommandJoinSpace, Space: join.SpaceID}, nil
}

func (h *WSHandler) writeAuthError(ctx context.Context, conn *websocket.Conn, msg string) {
	_ = wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: core.ErrCodeAuthenticationFailed, Msg: msg},
	})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, participant *core.Participant) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		// A second join means switching spaces; the token must verify again.
		if inbound.Type == proto.InboundTypeJoin {
			var join proto.JoinData
			if err := json.Unmarshal(inbound.Data, &join); err != nil {
				return err
			}
			if _, err := h.auth.ValidateToken(join.Token); err != nil {
				h.writeAuthError(ctx, conn, "invalid token")
				return fmt.Errorf("validate rejoin token: %w", err)
			}
			participant.Commands <- &core.Command{Kind: core.CommandJoinSpace, Space: join.SpaceID}
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("user_id", participant.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd != nil {
			participant.Commands <- cmd
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, participant *core.Participant) error {
	for {
		select {
		case event, ok := <-participant.Events:
			if !ok {
				return nil
			}
			frame, terminal := outboundFromEvent(event)
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("user_id", participant.ID).Msg("write ws event")
				return err
			}
			if terminal {
				return fmt.Errorf("terminal error frame: %s", frame.Error.Code)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
