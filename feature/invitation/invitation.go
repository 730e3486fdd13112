// Package invitation tracks the attendee invitation lifecycle:
// candidate -> invited -> accepted | rejected.
package invitation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StatusCandidate = "candidate"
	StatusInvited   = "invited"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
)

const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

var (
	ErrInvalidTransition = errors.New("invalid invitation transition")
	ErrInvalidDecision   = errors.New("decision must be accept or reject")
	ErrEventExpired      = errors.New("event has expired")
)

type Invitation struct {
	EventSlug string    `json:"event_slug"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether no transition can leave the invitation's state.
func (i Invitation) Terminal() bool {
	return IsTerminal(i.Status)
}

func IsTerminal(status string) bool {
	return status == StatusAccepted || status == StatusRejected
}

// ParseDecision normalizes a decision string.
func ParseDecision(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case DecisionAccept, "accepted":
		return DecisionAccept, nil
	case DecisionReject, "rejected":
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
	}
}

// Invite moves a candidate to invited. expired must be the freshest known
// expiration state of the target event.
func Invite(inv Invitation, expired bool, now time.Time) (Invitation, error) {
	if expired {
		return inv, ErrEventExpired
	}
	if inv.Status != StatusCandidate && inv.Status != "" {
		return inv, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, StatusInvited)
	}
	inv.Status = StatusInvited
	inv.UpdatedAt = now.UTC()
	return inv, nil
}

// Decide applies the invitee's decision to an invited invitation.
func Decide(inv Invitation, decision string, now time.Time) (Invitation, error) {
	d, err := ParseDecision(decision)
	if err != nil {
		return inv, err
	}
	next := StatusAccepted
	if d == DecisionReject {
		next = StatusRejected
	}
	if inv.Status != StatusInvited {
		return inv, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, next)
	}
	inv.Status = next
	inv.UpdatedAt = now.UTC()
	return inv, nil
}

// Ledger is the client's local record of invitations per event. It only
// ever moves entries forward through the lifecycle.
type Ledger struct {
	mu  sync.Mutex
	now func() time.Time
	// event slug -> user id -> invitation
	entries map[string]map[string]Invitation
}

// SelfID keys the current user's own invitation in the ledger.
const SelfID = "self"

func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now, entries: map[string]map[string]Invitation{}}
}

// Get returns the recorded invitation, if any.
func (l *Ledger) Get(slug, userID string) (Invitation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.entries[slug][userID]
	return inv, ok
}

// MarkCandidates records users listed as invitable. Users already past the
// candidate state are left untouched.
func (l *Ledger) MarkCandidates(slug string, userIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	m := l.eventLocked(slug)
	for _, id := range userIDs {
		if _, ok := m[id]; ok {
			continue
		}
		m[id] = Invitation{EventSlug: slug, UserID: id, Status: StatusCandidate, UpdatedAt: now}
	}
}

// CanInvite checks every user before anything is recorded.
func (l *Ledger) CanInvite(slug string, userIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range userIDs {
		inv, ok := l.entries[slug][id]
		if !ok {
			continue
		}
		if _, err := Invite(inv, false, l.now()); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
	}
	return nil
}

// MarkInvited records a successful invite for every user.
func (l *Ledger) MarkInvited(slug string, userIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.eventLocked(slug)
	for _, id := range userIDs {
		inv, ok := m[id]
		if !ok {
			inv = Invitation{EventSlug: slug, UserID: id, Status: StatusCandidate}
		}
		next, err := Invite(inv, false, l.now())
		if err != nil {
			continue
		}
		m[id] = next
	}
}

// CanDecide refuses a decision on an invitation already recorded as terminal.
// An unknown invitation is allowed through; the server is authoritative.
func (l *Ledger) CanDecide(slug, userID string) error {
	inv, ok := l.Get(slug, userID)
	if ok && inv.Terminal() {
		return fmt.Errorf("%w: invitation to %s is already %s", ErrInvalidTransition, slug, inv.Status)
	}
	return nil
}

// RecordDecision stores the outcome of a decision confirmed by the server.
func (l *Ledger) RecordDecision(slug, userID, decision string) (Invitation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.eventLocked(slug)
	inv, ok := m[userID]
	if !ok || inv.Status == StatusCandidate || inv.Status == "" {
		inv = Invitation{EventSlug: slug, UserID: userID, Status: StatusInvited}
	}
	next, err := Decide(inv, decision, l.now())
	if err != nil {
		return inv, err
	}
	m[userID] = next
	return next, nil
}

// List returns the event's invitations ordered by user id.
func (l *Ledger) List(slug string) []Invitation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Invitation, 0, len(l.entries[slug]))
	for _, inv := range l.entries[slug] {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Forget drops every record for an event, e.g. after it is deleted.
func (l *Ledger) Forget(slug string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, slug)
}

func (l *Ledger) eventLocked(slug string) map[string]Invitation {
	m, ok := l.entries[slug]
	if !ok {
		m = map[string]Invitation{}
		l.entries[slug] = m
	}
	return m
}
