package core

import "sync"

// Registry maps space identifiers to the participants currently occupying
// them. A participant appears in at most one space at a time. Space entries
// are created lazily on first occupant and removed when empty.
type Registry struct {
	mu     sync.RWMutex
	spaces map[string]map[string]*Participant // spaceID -> participantID -> participant
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{spaces: make(map[string]map[string]*Participant)}
}

// Add inserts a participant into a space's occupancy set and returns the
// roster as it was before the insert, for initial sync to the joiner.
func (r *Registry) Add(spaceID string, p *Participant) []*Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	occupants, ok := r.spaces[spaceID]
	if !ok {
		occupants = make(map[string]*Participant)
		r.spaces[spaceID] = occupants
	}

	roster := make([]*Participant, 0, len(occupants))
	for id, other := range occupants {
		if id == p.ID {
			continue
		}
		roster = append(roster, other)
	}

	occupants[p.ID] = p
	return roster
}

// Remove deletes a participant from a space. Idempotent: removing an absent
// participant is a no-op.
func (r *Registry) Remove(spaceID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	occupants, ok := r.spaces[spaceID]
	if !ok {
		return
	}
	delete(occupants, participantID)
	if len(occupants) == 0 {
		delete(r.spaces, spaceID)
	}
}

// Get returns the participant with the given id in the given space, or nil.
func (r *Registry) Get(spaceID, participantID string) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.spaces[spaceID][participantID]
}

// Occupants returns all participants currently in the space.
func (r *Registry) Occupants(spaceID string) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupants := r.spaces[spaceID]
	out := make([]*Participant, 0, len(occupants))
	for _, p := range occupants {
		out = append(out, p)
	}
	return out
}

// Broadcast sends an event to every occupant of the space, including the
// sender. Unknown spaces are a silent no-op.
func (r *Registry) Broadcast(spaceID string, ev *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.spaces[spaceID] {
		p.notify(ev)
	}
}

// BroadcastExcept sends an event to every occupant of the space other than
// senderID. Unknown spaces are a silent no-op.
func (r *Registry) BroadcastExcept(spaceID, senderID string, ev *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, p := range r.spaces[spaceID] {
		if id == senderID {
			continue
		}
		p.notify(ev)
	}
}
