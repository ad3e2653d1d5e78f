package core

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CallSession is a group of participants connected for signaling purposes.
// Sessions are created, grown, merged and torn down purely by proximity
// transitions; there is no explicit "start call" action.
type CallSession struct {
	ID           string
	SpaceID      string
	CreatorID    string
	CreatedAt    time.Time
	Participants map[string]struct{}
}

// callState is the per-participant record of call membership.
type callState struct {
	callID    string // empty means Idle
	spaceID   string
	proximity []string // most recently observed proximity set
}

// UpdateKind describes a call-session transition that must be fanned out.
type UpdateKind int

const (
	// CallCreated announces a freshly created session.
	CallCreated UpdateKind = iota
	// CallUpdated announces that the session roster grew.
	CallUpdated
	// CallsMerged announces that several sessions were merged into one.
	CallsMerged
	// CallLeft announces that a participant left a session.
	CallLeft
)

// CallUpdate is the outcome of a coordinator transition. Notifications are
// computed while the state mutation is still locked and delivered by the
// caller afterwards, so no network send ever happens under the lock.
type CallUpdate struct {
	Kind         UpdateKind
	CallID       string
	SpaceID      string
	Participants []string // session roster after the transition, sorted
	LeftID       string   // set for CallLeft
	Recipients   []string // participant ids to notify
}

// Coordinator owns the call-session table (call id -> session) and the
// participant call-state table (participant id -> state). The two tables are
// kept in lock-step: a participant's callID is non-empty iff some session's
// participant set contains it. Every multi-step transition holds the mutex
// for its whole duration so concurrent transitions over overlapping
// participant sets cannot interleave.
type Coordinator struct {
	mu     sync.Mutex
	calls  map[string]*CallSession
	states map[string]*callState

	newID func() string
	now   func() time.Time
}

// NewCoordinator constructs an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		calls:  make(map[string]*CallSession),
		states: make(map[string]*callState),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Track registers call-state bookkeeping for a participant that joined a
// space. The participant starts Idle.
func (c *Coordinator) Track(participantID, spaceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[participantID] = &callState{spaceID: spaceID}
}

// Apply processes a proximity recomputation for a participant and performs
// the resulting create/join/merge/leave transition. proximity holds the ids
// of the participants currently within the proximity radius.
func (c *Coordinator) Apply(participantID string, proximity []string) []*CallUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.states[participantID]
	if st == nil {
		// Raced with cleanup; nothing to coordinate.
		return nil
	}
	st.proximity = append(st.proximity[:0], proximity...)

	if len(proximity) == 0 {
		if up := c.leaveLocked(participantID); up != nil {
			return []*CallUpdate{up}
		}
		return nil
	}

	// Distinct call ids held by proximate members, in observation order. The
	// participant's own call (if any) counts toward the set so that stepping
	// from one cluster into another merges instead of double-booking.
	var ids []string
	seen := make(map[string]struct{})
	for _, id := range proximity {
		ms := c.states[id]
		if ms == nil || ms.callID == "" {
			continue
		}
		if _, ok := seen[ms.callID]; !ok {
			seen[ms.callID] = struct{}{}
			ids = append(ids, ms.callID)
		}
	}
	if st.callID != "" {
		if _, ok := seen[st.callID]; !ok {
			ids = append(ids, st.callID)
		}
	}

	switch len(ids) {
	case 0:
		return []*CallUpdate{c.createLocked(participantID, st, proximity)}
	case 1:
		if up := c.joinLocked(participantID, st, ids[0], proximity); up != nil {
			return []*CallUpdate{up}
		}
		return nil
	default:
		return []*CallUpdate{c.mergeLocked(participantID, st, ids, proximity)}
	}
}

// Leave removes the participant from its current call, if any. Bookkeeping
// is retained in Idle state for a still-connected participant. Leaving while
// Idle is a no-op and produces no notification.
func (c *Coordinator) Leave(participantID string) *CallUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.leaveLocked(participantID)
}

// Cleanup performs the leave transition and then removes all call-state
// bookkeeping for the participant. Called when a connection closes or the
// participant leaves the space; disconnects are treated identically to
// explicit leaves.
func (c *Coordinator) Cleanup(participantID string) *CallUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	up := c.leaveLocked(participantID)
	delete(c.states, participantID)
	return up
}

// CallOf returns the call id the participant currently belongs to.
func (c *Coordinator) CallOf(participantID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.states[participantID]
	if st == nil || st.callID == "" {
		return "", false
	}
	return st.callID, true
}

// SessionParticipants returns the sorted roster of a call session.
func (c *Coordinator) SessionParticipants(callID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.calls[callID]
	if !ok {
		return nil, false
	}
	return sortedIDs(sess.Participants), true
}

// SessionCount returns the number of live call sessions.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.calls)
}

// createLocked allocates a new session containing the participant and every
// proximate member, and moves them all out of Idle.
func (c *Coordinator) createLocked(participantID string, st *callState, proximity []string) *CallUpdate {
	sess := &CallSession{
		ID:           c.newID(),
		SpaceID:      st.spaceID,
		CreatorID:    participantID,
		CreatedAt:    c.now(),
		Participants: make(map[string]struct{}, len(proximity)+1),
	}

	sess.Participants[participantID] = struct{}{}
	st.callID = sess.ID
	for _, id := range proximity {
		c.enrollLocked(sess, id, st.spaceID)
	}

	c.calls[sess.ID] = sess
	roster := sortedIDs(sess.Participants)
	return &CallUpdate{
		Kind:         CallCreated,
		CallID:       sess.ID,
		SpaceID:      sess.SpaceID,
		Participants: roster,
		Recipients:   roster,
	}
}

// joinLocked adds the participant and any still-Idle proximate member to the
// single call the neighborhood already holds. Returns nil when nothing
// changed (everyone was already enrolled).
func (c *Coordinator) joinLocked(participantID string, st *callState, callID string, proximity []string) *CallUpdate {
	sess := c.calls[callID]
	if sess == nil {
		// The call vanished between observation and transition; clear the
		// stale reference and start over with a fresh session.
		st.callID = ""
		return c.createLocked(participantID, st, proximity)
	}

	changed := false
	if _, ok := sess.Participants[participantID]; !ok {
		sess.Participants[participantID] = struct{}{}
		st.callID = sess.ID
		changed = true
	}
	// Members of the proximity set whose own view hasn't converged yet are
	// pulled in as well.
	for _, id := range proximity {
		if _, ok := sess.Participants[id]; ok {
			continue
		}
		c.enrollLocked(sess, id, sess.SpaceID)
		changed = true
	}

	if !changed {
		return nil
	}
	roster := sortedIDs(sess.Participants)
	return &CallUpdate{
		Kind:         CallUpdated,
		CallID:       sess.ID,
		SpaceID:      sess.SpaceID,
		Participants: roster,
		Recipients:   roster,
	}
}

// mergeLocked folds every session in ids into the first observed one, then
// enrolls the participant and any Idle proximate member. The surviving id is
// arbitrary; the resulting participant set is the union regardless of order.
func (c *Coordinator) mergeLocked(participantID string, st *callState, ids []string, proximity []string) *CallUpdate {
	var survivor *CallSession
	for _, id := range ids {
		if sess := c.calls[id]; sess != nil {
			survivor = sess
			break
		}
	}
	if survivor == nil {
		st.callID = ""
		return c.createLocked(participantID, st, proximity)
	}

	for _, id := range ids {
		sess := c.calls[id]
		if sess == nil || sess == survivor {
			continue
		}
		for member := range sess.Participants {
			survivor.Participants[member] = struct{}{}
			if ms := c.states[member]; ms != nil {
				ms.callID = survivor.ID
			}
		}
		delete(c.calls, sess.ID)
	}

	if _, ok := survivor.Participants[participantID]; !ok {
		survivor.Participants[participantID] = struct{}{}
	}
	st.callID = survivor.ID
	for _, id := range proximity {
		if _, ok := survivor.Participants[id]; !ok {
			c.enrollLocked(survivor, id, survivor.SpaceID)
		}
	}

	roster := sortedIDs(survivor.Participants)
	return &CallUpdate{
		Kind:         CallsMerged,
		CallID:       survivor.ID,
		SpaceID:      survivor.SpaceID,
		Participants: roster,
		Recipients:   roster,
	}
}

// leaveLocked removes the participant from its session. The notification is
// computed before the session is deleted so it fires even when the roster
// becomes empty. Acting on an already-deleted call id is a silent no-op.
func (c *Coordinator) leaveLocked(participantID string) *CallUpdate {
	st := c.states[participantID]
	if st == nil || st.callID == "" {
		return nil
	}

	sess := c.calls[st.callID]
	st.callID = ""
	if sess == nil {
		return nil
	}

	delete(sess.Participants, participantID)
	remaining := sortedIDs(sess.Participants)
	up := &CallUpdate{
		Kind:         CallLeft,
		CallID:       sess.ID,
		SpaceID:      sess.SpaceID,
		Participants: remaining,
		LeftID:       participantID,
		Recipients:   remaining,
	}

	if len(sess.Participants) == 0 {
		delete(c.calls, sess.ID)
	}
	return up
}

// enrollLocked adds a participant to a session and updates its state,
// creating the state record if the participant is not yet tracked.
func (c *Coordinator) enrollLocked(sess *CallSession, participantID, spaceID string) {
	sess.Participants[participantID] = struct{}{}
	ms := c.states[participantID]
	if ms == nil {
		ms = &callState{spaceID: spaceID}
		c.states[participantID] = ms
	}
	ms.callID = sess.ID
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
