package core

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/gridspace/gridspace-server/internal/store"
)

// Directory is the slice of external storage the hub depends on: space
// existence checks and chat persistence. Accounts, avatars and space CRUD
// live behind the REST API and are not the hub's concern.
type Directory interface {
	GetSpaceByID(ctx context.Context, id string) (*store.Space, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListRecentMessages(ctx context.Context, spaceID string, limit int) ([]*store.Message, error)
}

// Options tune hub behavior.
type Options struct {
	// ProximityRadius is the Chebyshev distance for proximity detection.
	ProximityRadius int
	// ChatHistoryLimit caps replayed chat history.
	ChatHistoryLimit int
	// Spawn picks the coordinate assigned on space join. Defaults to a
	// uniformly random in-bounds cell.
	Spawn func(space *store.Space) (x, y int)
}

type participantCommand struct {
	participant *Participant
	command     *Command
}

// Hub coordinates presence, proximity and call sessions for all connected
// participants. A single run loop serializes every registry mutation; the
// call coordinator additionally guards its own tables so it can be
// constructed and tested independently.
type Hub struct {
	log         *zerolog.Logger
	directory   Directory
	registry    *Registry
	coordinator *Coordinator
	radius      int
	historyCap  int
	spawn       func(space *store.Space) (x, y int)

	register   chan *Participant
	unregister chan *Participant
	commands   chan participantCommand
}

// NewHub creates a hub backed by the given directory. A nil logger disables
// logging.
func NewHub(directory Directory, logger *zerolog.Logger, opts Options) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	radius := opts.ProximityRadius
	if radius <= 0 {
		radius = DefaultProximityRadius
	}
	historyCap := opts.ChatHistoryLimit
	if historyCap <= 0 {
		historyCap = 50
	}
	spawn := opts.Spawn
	if spawn == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		spawn = func(space *store.Space) (int, int) {
			if space.Width <= 0 || space.Height <= 0 {
				return 0, 0
			}
			return rng.Intn(space.Width), rng.Intn(space.Height)
		}
	}

	return &Hub{
		log:         logger,
		directory:   directory,
		registry:    NewRegistry(),
		coordinator: NewCoordinator(),
		radius:      radius,
		historyCap:  historyCap,
		spawn:       spawn,
		register:    make(chan *Participant, 16),
		unregister:  make(chan *Participant, 16),
		commands:    make(chan participantCommand, 64),
	}
}

// Registry exposes the space occupancy registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Coordinator exposes the call session coordinator.
func (h *Hub) Coordinator() *Coordinator {
	return h.coordinator
}

// RegisterParticipant hands an authenticated participant to the hub.
func (h *Hub) RegisterParticipant(p *Participant) {
	h.register <- p
}

// UnregisterParticipant tears down a participant after its connection
// closed. Abrupt disconnects and explicit leaves are handled identically.
func (h *Hub) UnregisterParticipant(p *Participant) {
	h.unregister <- p
}

// Run processes registrations and commands until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-h.register:
			go h.pump(ctx, p)
		case p := <-h.unregister:
			h.handleLeave(p)
		case pc := <-h.commands:
			h.handleCommand(ctx, pc.participant, pc.command)
		}
	}
}

// pump forwards one participant's command stream into the hub loop.
func (h *Hub) pump(ctx context.Context, p *Participant) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-p.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- participantCommand{participant: p, command: cmd}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, p *Participant, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinSpace:
		h.handleJoin(ctx, p, cmd.Space)
	case CommandMove:
		h.handleMove(p, cmd.X, cmd.Y)
	case CommandLeaveSpace:
		h.handleLeave(p)
	case CommandSendChat:
		h.handleSendChat(ctx, p, cmd.Text)
	case CommandGetChat:
		h.handleGetChat(ctx, p)
	case CommandLeaveCall:
		h.fanOutCallUpdates(p.SpaceID, h.updates(h.coordinator.Leave(p.ID)))
	case CommandSignal:
		h.handleSignal(p, cmd)
	}
}

func (h *Hub) handleJoin(ctx context.Context, p *Participant, spaceID string) {
	space, err := h.directory.GetSpaceByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeSpaceNotFound, "space not found")})
			return
		}
		h.log.Error().Err(err).Str("space_id", spaceID).Msg("space lookup failed")
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "space lookup failed")})
		return
	}

	// Rejoining while already in a space is a leave-then-join.
	if p.SpaceID != "" {
		h.handleLeave(p)
	}

	p.SpaceID = space.ID
	p.X, p.Y = h.spawn(space)

	roster := h.registry.Add(space.ID, p)
	h.coordinator.Track(p.ID, space.ID)

	p.notify(&Event{
		Kind:   EventSpaceJoined,
		Space:  space.ID,
		User:   p.Ref(),
		Spawn:  &Ref{X: p.X, Y: p.Y},
		Roster: refs(roster),
	})
	h.registry.BroadcastExcept(space.ID, p.ID, &Event{
		Kind:  EventUserJoined,
		Space: space.ID,
		User:  p.Ref(),
	})

	h.log.Debug().Str("user_id", p.ID).Str("space_id", space.ID).
		Int("x", p.X).Int("y", p.Y).Msg("participant joined space")

	h.recomputeProximity(p)
}

func (h *Hub) handleMove(p *Participant, x, y int) {
	if p.SpaceID == "" {
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeNotInSpace, "join a space first")})
		return
	}

	// Only unit steps are accepted: exactly one axis changes by exactly one
	// cell. Anything else echoes the last valid coordinate back.
	dx, dy := abs(x-p.X), abs(y-p.Y)
	if dx+dy != 1 {
		p.notify(&Event{
			Kind:  EventMovementRejected,
			Space: p.SpaceID,
			User:  p.Ref(),
		})
		return
	}

	p.X, p.Y = x, y
	h.registry.BroadcastExcept(p.SpaceID, p.ID, &Event{
		Kind:  EventMovement,
		Space: p.SpaceID,
		User:  p.Ref(),
	})

	h.recomputeProximity(p)
}

// recomputeProximity refreshes the mover's proximity view and feeds it to
// the call coordinator. Only the moving or joining participant's set is
// recomputed per event; see ProximityOf.
func (h *Hub) recomputeProximity(p *Participant) {
	near := ProximityOf(p, h.registry.Occupants(p.SpaceID), h.radius)

	p.notify(&Event{
		Kind:   EventProximityUsers,
		Space:  p.SpaceID,
		Roster: refs(near),
	})

	ids := make([]string, 0, len(near))
	for _, other := range near {
		ids = append(ids, other.ID)
	}
	h.fanOutCallUpdates(p.SpaceID, h.coordinator.Apply(p.ID, ids))
}

func (h *Hub) handleLeave(p *Participant) {
	if p.SpaceID == "" {
		return
	}
	spaceID := p.SpaceID

	h.fanOutCallUpdates(spaceID, h.updates(h.coordinator.Cleanup(p.ID)))

	h.registry.Remove(spaceID, p.ID)
	p.SpaceID = ""

	h.registry.Broadcast(spaceID, &Event{
		Kind:  EventUserLeft,
		Space: spaceID,
		User:  p.Ref(),
	})

	h.log.Debug().Str("user_id", p.ID).Str("space_id", spaceID).Msg("participant left space")
}

func (h *Hub) handleSendChat(ctx context.Context, p *Participant, text string) {
	if p.SpaceID == "" {
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeNotInSpace, "join a space first")})
		return
	}
	if text == "" {
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "message is required")})
		return
	}

	msg := &store.Message{
		SpaceID:   p.SpaceID,
		UserID:    p.ID,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		Body:      text,
	}
	if err := h.directory.SaveMessage(ctx, msg); err != nil {
		h.log.Error().Err(err).Str("user_id", p.ID).Msg("failed to persist chat message")
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "failed to store message")})
		return
	}

	// The stored, server-assigned version goes to everyone including the
	// sender, who reconciles its optimistic local echo against it.
	h.registry.Broadcast(p.SpaceID, &Event{
		Kind:    EventChatMessage,
		Space:   p.SpaceID,
		Message: msg,
	})
}

func (h *Hub) handleGetChat(ctx context.Context, p *Participant) {
	if p.SpaceID == "" {
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeNotInSpace, "join a space first")})
		return
	}

	messages, err := h.directory.ListRecentMessages(ctx, p.SpaceID, h.historyCap)
	if err != nil {
		h.log.Error().Err(err).Str("space_id", p.SpaceID).Msg("failed to load chat history")
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "failed to load history")})
		return
	}

	p.notify(&Event{
		Kind:     EventChatHistory,
		Space:    p.SpaceID,
		Messages: messages,
	})
}

// handleSignal forwards an opaque session-description or candidate payload
// to the named participant. The payload is never inspected.
func (h *Hub) handleSignal(p *Participant, cmd *Command) {
	if p.SpaceID == "" {
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeNotInSpace, "join a space first")})
		return
	}

	target := h.registry.Get(p.SpaceID, cmd.TargetID)
	if target == nil {
		p.notify(&Event{Kind: EventError, Error: coreError(ErrCodeUnknownRecipient, "recipient not reachable")})
		return
	}

	target.notify(&Event{
		Kind:  EventSignal,
		Space: p.SpaceID,
		Signal: &Signal{
			FromID:       p.ID,
			FromUsername: p.Username,
			Type:         cmd.SignalType,
			Payload:      cmd.Payload,
		},
	})
}

// fanOutCallUpdates delivers coordinator transitions as explicit per-recipient
// sends looked up through the space registry.
func (h *Hub) fanOutCallUpdates(spaceID string, updates []*CallUpdate) {
	for _, up := range updates {
		roster := make([]Ref, 0, len(up.Participants))
		for _, id := range up.Participants {
			if member := h.registry.Get(spaceID, id); member != nil {
				roster = append(roster, member.Ref())
			} else {
				roster = append(roster, Ref{ID: id, Username: id})
			}
		}

		notice := &CallNotice{CallID: up.CallID, Participants: roster, LeftID: up.LeftID}
		ev := &Event{Kind: eventKindFor(up.Kind), Space: spaceID, Call: notice}

		for _, id := range up.Recipients {
			if member := h.registry.Get(spaceID, id); member != nil {
				member.notify(ev)
			}
		}

		h.log.Debug().Str("call_id", up.CallID).Str("space_id", spaceID).
			Int("participants", len(up.Participants)).
			Int("kind", int(up.Kind)).Msg("call session transition")
	}
}

func (h *Hub) updates(up *CallUpdate) []*CallUpdate {
	if up == nil {
		return nil
	}
	return []*CallUpdate{up}
}

func eventKindFor(kind UpdateKind) EventKind {
	switch kind {
	case CallCreated:
		return EventCallCreated
	case CallUpdated:
		return EventCallUpdated
	case CallsMerged:
		return EventCallsMerged
	default:
		return EventCallLeft
	}
}

func refs(participants []*Participant) []Ref {
	out := make([]Ref, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.Ref())
	}
	return out
}
