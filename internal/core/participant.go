package core

// Participant is one live connection as seen by the core layer. It owns the
// connected user's identity and current grid coordinate; it has no knowledge
// of other participants.
type Participant struct {
	ID        string
	Username  string
	AvatarURL string

	// SpaceID is empty until the participant joins a space.
	SpaceID string
	X, Y    int

	Commands chan *Command
	Events   chan *Event
}

// NewParticipant constructs a participant with initialized channels.
func NewParticipant(id, username string) *Participant {
	if username == "" {
		username = id
	}
	return &Participant{
		ID:       id,
		Username: username,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}

// Ref returns the participant's identity and position snapshot.
func (p *Participant) Ref() Ref {
	return Ref{ID: p.ID, Username: p.Username, X: p.X, Y: p.Y}
}

// notify delivers an event without blocking the caller.
func (p *Participant) notify(ev *Event) {
	select {
	case p.Events <- ev:
	default:
		// Drop if slow consumer.
	}
}
