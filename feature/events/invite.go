package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/domain"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
	"github.com/ganjinghwan/erecipehub/core/store"
	"github.com/ganjinghwan/erecipehub/feature/invitation"
)

// InviteResult describes a successful invite submission.
type InviteResult struct {
	EventSlug string
	Invited   []string
	// Inbox is the server's inviteInboxRequired payload, passed through untouched.
	Inbox json.RawMessage
}

// CheckExpired asks the server whether the event's end date has passed and
// caches the answer. When the check cannot be completed the store's
// ExpirationCheckPolicy decides the outcome: FailOpen reports false with no
// error (the failure is still recorded in the snapshot), FailClosed reports
// true with the normalized error.
func (s *Store) CheckExpired(ctx context.Context, eventID string) (bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, remoteerr.FromValidation(domain.NewValidationError("eventId", "required"))
	}
	var expired bool
	err := s.state.Run(ctx, "checkExpired", func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Expired bool `json:"expired"`
		}
		if err := s.api.Get(ctx, fmt.Sprintf(pathIsExpired, url.PathEscape(eventID)), &out); err != nil {
			return nil, err
		}
		expired = out.Expired
		return func(prev State) State {
			next := prev.clone()
			next.Expired[eventID] = expired
			return next
		}, nil
	})
	if err == nil {
		return expired, nil
	}
	if s.policy == FailClosed {
		return true, err
	}
	s.log.WithFields(logrus.Fields{
		"event_id": eventID,
		"messages": remoteerr.Messages(err),
	}).Warn("expiration check failed, treating event as not expired")
	return false, nil
}

// ListInvitable fetches the users the server considers invitable. The list
// is trusted verbatim.
func (s *Store) ListInvitable(ctx context.Context, slug string) ([]Candidate, error) {
	slug, err := requireSlug(slug)
	if err != nil {
		return nil, err
	}
	var cands []Candidate
	err = s.state.Run(ctx, "listInvitable", func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Users []Candidate `json:"invitableUserInfo"`
		}
		if err := s.api.Get(ctx, fmt.Sprintf(pathInvitable, url.PathEscape(slug)), &out); err != nil {
			return nil, err
		}
		cands = out.Users
		if cands == nil {
			cands = []Candidate{}
		}
		return func(prev State) State {
			next := prev.clone()
			next.Invitable = append([]Candidate(nil), cands...)
			return next
		}, nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ID)
	}
	s.ledger.MarkCandidates(slug, ids)
	return cands, nil
}

// SendInvite invites candidates to the event. The event's expiration is
// re-queried by id first; an expired event is refused without issuing the
// invite. An event missing from the snapshot is fetched to learn its id.
func (s *Store) SendInvite(ctx context.Context, slug string, candidateIDs []string) (InviteResult, error) {
	slug, err := requireSlug(slug)
	if err != nil {
		return InviteResult{}, err
	}
	ids := uniqueIDs(candidateIDs)
	if len(ids) == 0 {
		return InviteResult{}, remoteerr.FromValidation(domain.NewValidationError("invitedAttendeesID", "at least one attendee required"))
	}
	if err := s.ledger.CanInvite(slug, ids); err != nil {
		return InviteResult{}, remoteerr.FromValidation(err)
	}

	eventID, err := s.resolveEventID(ctx, slug)
	if err != nil {
		return InviteResult{}, err
	}
	expired, err := s.CheckExpired(ctx, eventID)
	if err != nil {
		return InviteResult{}, err
	}
	if expired {
		s.log.WithField("slug", slug).Info("invite refused, event expired")
		return InviteResult{}, remoteerr.Validationf(invitation.ErrEventExpired, "cannot invite attendees to %s", slug)
	}

	var inbox json.RawMessage
	err = s.state.Run(ctx, "sendInvite", func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Inbox json.RawMessage `json:"inviteInboxRequired"`
		}
		body := struct {
			IDs []string `json:"invitedAttendeesID"`
		}{IDs: ids}
		if err := s.api.Post(ctx, fmt.Sprintf(pathInvite, url.PathEscape(slug)), body, &out); err != nil {
			return nil, err
		}
		inbox = out.Inbox
		return func(prev State) State {
			next := prev.clone()
			next.Invitable = withoutCandidates(next.Invitable, ids)
			return next
		}, nil
	})
	if err != nil {
		return InviteResult{}, err
	}
	s.ledger.MarkInvited(slug, ids)
	s.log.WithFields(logrus.Fields{"slug": slug, "count": len(ids)}).Info("invites sent")
	return InviteResult{EventSlug: slug, Invited: ids, Inbox: inbox}, nil
}

// RespondToInvite records the current user's decision on an invitation.
// Repeating a decision the client has no record of is forwarded to the
// server as is; a decision on an invitation already recorded as accepted or
// rejected is refused locally.
func (s *Store) RespondToInvite(ctx context.Context, slug, decision string) (invitation.Invitation, error) {
	slug, err := requireSlug(slug)
	if err != nil {
		return invitation.Invitation{}, err
	}
	d, err := invitation.ParseDecision(decision)
	if err != nil {
		return invitation.Invitation{}, remoteerr.FromValidation(err)
	}
	if err := s.ledger.CanDecide(slug, invitation.SelfID); err != nil {
		return invitation.Invitation{}, remoteerr.FromValidation(err)
	}

	path := pathAcceptInvite
	if d == invitation.DecisionReject {
		path = pathRejectInvite
	}
	err = s.state.Run(ctx, d+"Invite", func(ctx context.Context) (store.Commit[State], error) {
		if err := s.api.Post(ctx, fmt.Sprintf(path, url.PathEscape(slug)), nil, nil); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return invitation.Invitation{}, err
	}
	inv, err := s.ledger.RecordDecision(slug, invitation.SelfID, d)
	if err != nil {
		return inv, remoteerr.FromValidation(err)
	}
	s.log.WithFields(logrus.Fields{"slug": slug, "status": inv.Status}).Info("invitation answered")
	return inv, nil
}

// resolveEventID maps a slug to its backing id, fetching the event when no
// snapshot of it is held. The expiration check is keyed by id only.
func (s *Store) resolveEventID(ctx context.Context, slug string) (string, error) {
	if ev, ok := s.lastFetched(slug); ok && ev.ID != "" {
		return ev.ID, nil
	}
	ev, err := s.Get(ctx, slug)
	if err != nil {
		return "", err
	}
	if ev.ID == "" {
		return "", remoteerr.FromValidation(domain.NewValidationError("eventId", "unknown for event "+slug))
	}
	return ev.ID, nil
}

func uniqueIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func withoutCandidates(list []Candidate, ids []string) []Candidate {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := list[:0]
	for _, c := range list {
		if _, ok := drop[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
