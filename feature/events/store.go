// Package events implements the Event Store: event CRUD plus the attendee
// invitation subsystem layered on the same snapshot.
package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/domain"
	"github.com/ganjinghwan/erecipehub/core/logging"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
	"github.com/ganjinghwan/erecipehub/core/store"
	"github.com/ganjinghwan/erecipehub/feature/invitation"
)

const (
	pathGetEvent      = "/events/%s"
	pathAllEvents     = "/events/get-all-events"
	pathOrgEvents     = "/events/get-EventOrgRelated-events"
	pathNewEvent      = "/events/new-event"
	pathUpdateEvent   = "/events/update-event/%s"
	pathDeleteEvent   = "/events/delete-event/%s"
	pathIsExpired     = "/events/is-expired/%s"
	pathInvitable     = "/events/get-event-attendeesList/%s"
	pathInvite        = "/events/invite/%s"
	pathAcceptInvite  = "/events/invite/acceptInvite/%s"
	pathRejectInvite  = "/events/invite/rejectInvite/%s"
	snapshotStoreName = "events"
)

type apiClient interface {
	Get(ctx context.Context, path string, dst any) error
	Post(ctx context.Context, path string, body, dst any) error
	Delete(ctx context.Context, path string, dst any) error
}

// State is the Event Store snapshot data.
type State struct {
	Event     *Event          `json:"event,omitempty"`
	Events    []Event         `json:"events"`
	Invitable []Candidate     `json:"invitable"`
	Expired   map[string]bool `json:"expired"`
}

func (s State) clone() State {
	next := State{
		Events:    append([]Event(nil), s.Events...),
		Invitable: append([]Candidate(nil), s.Invitable...),
		Expired:   make(map[string]bool, len(s.Expired)),
	}
	if s.Event != nil {
		ev := *s.Event
		next.Event = &ev
	}
	for k, v := range s.Expired {
		next.Expired[k] = v
	}
	return next
}

// ExpirationCheckPolicy decides what CheckExpired reports when the remote
// check cannot be completed.
type ExpirationCheckPolicy int

const (
	// FailOpen treats an unknown expiration state as not expired.
	FailOpen ExpirationCheckPolicy = iota
	// FailClosed treats an unknown expiration state as expired.
	FailClosed
)

func ParseExpirationPolicy(s string) (ExpirationCheckPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_open":
		return FailOpen, nil
	case "fail_closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("unknown expiration policy %q", s)
	}
}

type Store struct {
	api    apiClient
	state  *store.Store[State]
	ledger *invitation.Ledger
	policy ExpirationCheckPolicy
	log    logrus.FieldLogger
}

type Option func(*config)

type config struct {
	policy    ExpirationCheckPolicy
	now       func() time.Time
	log       logrus.FieldLogger
	storeOpts []store.Option
}

func WithExpirationPolicy(p ExpirationCheckPolicy) Option {
	return func(c *config) { c.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.log = l }
}

// WithStoreOptions forwards options to the underlying snapshot container.
func WithStoreOptions(opts ...store.Option) Option {
	return func(c *config) { c.storeOpts = append(c.storeOpts, opts...) }
}

func NewStore(api apiClient, opts ...Option) *Store {
	c := config{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	log := c.log.WithField("component", "events")
	storeOpts := append([]store.Option{store.WithLogger(log)}, c.storeOpts...)
	return &Store{
		api:    api,
		state:  store.New(snapshotStoreName, State{Expired: map[string]bool{}}, storeOpts...),
		ledger: invitation.NewLedger(c.now),
		policy: c.policy,
		log:    log,
	}
}

// Snapshot returns the current observable state.
func (s *Store) Snapshot() store.Snapshot[State] {
	return s.state.Snapshot()
}

// Hydrate restores persisted event data.
func (s *Store) Hydrate(ctx context.Context) error {
	return s.state.Hydrate(ctx)
}

// Invitations returns the local invitation ledger for an event.
func (s *Store) Invitations(slug string) []invitation.Invitation {
	return s.ledger.List(slug)
}

// Get fetches one event by slug.
func (s *Store) Get(ctx context.Context, slug string) (Event, error) {
	slug, err := requireSlug(slug)
	if err != nil {
		return Event{}, err
	}
	var ev Event
	err = s.state.Run(ctx, "get", func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Event Event `json:"allEventInfo"`
		}
		if err := s.api.Get(ctx, fmt.Sprintf(pathGetEvent, url.PathEscape(slug)), &out); err != nil {
			return nil, err
		}
		ev = out.Event
		return func(prev State) State {
			next := prev.clone()
			next.Event = &ev
			return next
		}, nil
	})
	return ev, err
}

// ListAll fetches every event.
func (s *Store) ListAll(ctx context.Context) ([]Event, error) {
	return s.list(ctx, "listAll", pathAllEvents, func(raw listResponse) []Event { return raw.All })
}

// ListMine fetches the events owned by the current organizer.
func (s *Store) ListMine(ctx context.Context) ([]Event, error) {
	return s.list(ctx, "listMine", pathOrgEvents, func(raw listResponse) []Event { return raw.Mine })
}

type listResponse struct {
	All  []Event `json:"Allevents"`
	Mine []Event `json:"events"`
}

func (s *Store) list(ctx context.Context, verb, path string, pick func(listResponse) []Event) ([]Event, error) {
	var evs []Event
	err := s.state.Run(ctx, verb, func(ctx context.Context) (store.Commit[State], error) {
		var out listResponse
		if err := s.api.Get(ctx, path, &out); err != nil {
			return nil, err
		}
		evs = pick(out)
		if evs == nil {
			evs = []Event{}
		}
		return func(prev State) State {
			next := prev.clone()
			next.Events = append([]Event(nil), evs...)
			if next.Event != nil {
				for _, ev := range evs {
					if ev.Slug == next.Event.Slug {
						cur := ev
						next.Event = &cur
						break
					}
				}
			}
			return next
		}, nil
	})
	return evs, err
}

// Create submits a new event owned by the current organizer.
func (s *Store) Create(ctx context.Context, in Input) (Event, error) {
	if err := in.Validate(); err != nil {
		return Event{}, remoteerr.FromValidation(err)
	}
	var ev Event
	err := s.state.Run(ctx, "create", func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Event Event `json:"newEventInfo"`
		}
		if err := s.api.Post(ctx, pathNewEvent, in.createRequest(), &out); err != nil {
			return nil, err
		}
		ev = out.Event
		return func(prev State) State {
			next := prev.clone()
			next.Event = &ev
			next.Events = upsert(next.Events, ev)
			return next
		}, nil
	})
	if err == nil {
		s.log.WithFields(logrus.Fields{"slug": ev.Slug, "event_id": ev.ID}).Info("event created")
	}
	return ev, err
}

// Update replaces the mutable fields of the event identified by slug. A
// submission identical to the last-fetched snapshot is refused locally.
func (s *Store) Update(ctx context.Context, slug string, in Input) (Event, error) {
	slug, err := requireSlug(slug)
	if err != nil {
		return Event{}, err
	}
	if err := in.Validate(); err != nil {
		return Event{}, remoteerr.FromValidation(err)
	}
	if prev, ok := s.lastFetched(slug); ok && in.Unchanged(prev) {
		return Event{}, remoteerr.Validationf(domain.ErrNoChanges, "event %s", slug)
	}

	var ev Event
	err = s.state.Run(ctx, "update", func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Event Event `json:"updatedEventInfo"`
		}
		if err := s.api.Post(ctx, fmt.Sprintf(pathUpdateEvent, url.PathEscape(slug)), in.updateRequest(), &out); err != nil {
			return nil, err
		}
		ev = out.Event
		return func(prev State) State {
			next := prev.clone()
			next.Event = &ev
			next.Events = upsert(next.Events, ev)
			return next
		}, nil
	})
	if err == nil {
		s.log.WithField("slug", slug).Info("event updated")
	}
	return ev, err
}

// Delete removes the event and clears it from the snapshot.
func (s *Store) Delete(ctx context.Context, slug string) error {
	slug, err := requireSlug(slug)
	if err != nil {
		return err
	}
	err = s.state.Run(ctx, "delete", func(ctx context.Context) (store.Commit[State], error) {
		if err := s.api.Delete(ctx, fmt.Sprintf(pathDeleteEvent, url.PathEscape(slug)), nil); err != nil {
			return nil, err
		}
		return func(prev State) State {
			next := prev.clone()
			next.Event = nil
			kept := next.Events[:0]
			for _, ev := range next.Events {
				if ev.Slug == slug {
					delete(next.Expired, ev.ID)
					continue
				}
				kept = append(kept, ev)
			}
			next.Events = kept
			next.Invitable = nil
			return next
		}, nil
	})
	if err != nil {
		return err
	}
	s.ledger.Forget(slug)
	s.log.WithField("slug", slug).Info("event deleted")
	return nil
}

// lastFetched finds the most recent snapshot of the event with this slug.
// List verbs refresh Event when they carry the same slug, so Event is never
// older than its entry in Events.
func (s *Store) lastFetched(slug string) (Event, bool) {
	st := s.state.Data()
	if st.Event != nil && st.Event.Slug == slug {
		return *st.Event, true
	}
	for _, ev := range st.Events {
		if ev.Slug == slug {
			return ev, true
		}
	}
	return Event{}, false
}

func upsert(list []Event, ev Event) []Event {
	for i := range list {
		if (ev.ID != "" && list[i].ID == ev.ID) || (ev.ID == "" && list[i].Slug == ev.Slug) {
			list[i] = ev
			return list
		}
	}
	return append(list, ev)
}

func requireSlug(slug string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", remoteerr.FromValidation(domain.NewValidationError("eventSpecificEndUrl", "required"))
	}
	return slug, nil
}
