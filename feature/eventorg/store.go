// Package eventorg implements the Event-Organizer Store.
package eventorg

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/domain"
	"github.com/ganjinghwan/erecipehub/core/logging"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
	"github.com/ganjinghwan/erecipehub/core/store"
)

const (
	pathGetOrg    = "/eventorg/get-eventOrg-info"
	pathNewOrg    = "/eventorg/new-eventOrg-info"
	pathUpdateOrg = "/eventorg/update-eventOrg-info"
)

type apiClient interface {
	Get(ctx context.Context, path string, dst any) error
	Post(ctx context.Context, path string, body, dst any) error
}

type Organizer struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"organizationName"`
	Description string `json:"organizationDescription"`
	Contact     string `json:"contact"`
	Location    string `json:"location"`
}

type Input struct {
	Name        string `json:"organizationName"`
	Description string `json:"organizationDescription"`
	Contact     string `json:"contact"`
	Location    string `json:"location"`
}

func (i Input) normalized() Input {
	return Input{
		Name:        strings.TrimSpace(i.Name),
		Description: strings.TrimSpace(i.Description),
		Contact:     strings.TrimSpace(i.Contact),
		Location:    strings.TrimSpace(i.Location),
	}
}

func (i Input) Validate() error {
	var errs []domain.FieldError
	if strings.TrimSpace(i.Name) == "" {
		errs = append(errs, domain.FieldError{Field: "organizationName", Message: "required"})
	}
	errs = domain.CheckDescription(errs, "organizationDescription", i.Description)
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// Unchanged reports whether every field equals the stored organizer.
func (i Input) Unchanged(o Organizer) bool {
	n := i.normalized()
	return n.Name == strings.TrimSpace(o.Name) &&
		n.Description == strings.TrimSpace(o.Description) &&
		n.Contact == strings.TrimSpace(o.Contact) &&
		n.Location == strings.TrimSpace(o.Location)
}

type State struct {
	Organizer *Organizer `json:"eventOrganizer,omitempty"`
}

type Store struct {
	api   apiClient
	state *store.Store[State]
	log   logrus.FieldLogger
}

func NewStore(api apiClient, log logrus.FieldLogger, opts ...store.Option) *Store {
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("component", "eventorg")
	return &Store{
		api:   api,
		state: store.New("eventorg", State{}, append([]store.Option{store.WithLogger(log)}, opts...)...),
		log:   log,
	}
}

func (s *Store) Snapshot() store.Snapshot[State] { return s.state.Snapshot() }

func (s *Store) Hydrate(ctx context.Context) error { return s.state.Hydrate(ctx) }

func (s *Store) Get(ctx context.Context) (Organizer, error) {
	return s.call(ctx, "get", pathGetOrg, nil)
}

func (s *Store) New(ctx context.Context, in Input) (Organizer, error) {
	if err := in.Validate(); err != nil {
		return Organizer{}, remoteerr.FromValidation(err)
	}
	o, err := s.call(ctx, "new", pathNewOrg, in.normalized())
	if err == nil {
		s.log.WithField("organization", o.Name).Info("organizer profile created")
	}
	return o, err
}

// Update replaces the organizer profile, refusing a submission identical to
// the stored one.
func (s *Store) Update(ctx context.Context, in Input) (Organizer, error) {
	if err := in.Validate(); err != nil {
		return Organizer{}, remoteerr.FromValidation(err)
	}
	if prev := s.state.Data().Organizer; prev != nil && in.Unchanged(*prev) {
		return Organizer{}, remoteerr.Validationf(domain.ErrNoChanges, "organizer profile")
	}
	o, err := s.call(ctx, "update", pathUpdateOrg, in.normalized())
	if err == nil {
		s.log.WithField("organization", o.Name).Info("organizer profile updated")
	}
	return o, err
}

// call GETs path when body is nil and POSTs body otherwise.
func (s *Store) call(ctx context.Context, verb, path string, body any) (Organizer, error) {
	var o Organizer
	err := s.state.Run(ctx, verb, func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Organizer Organizer `json:"eventOrganizer"`
		}
		var err error
		if body == nil {
			err = s.api.Get(ctx, path, &out)
		} else {
			err = s.api.Post(ctx, path, body, &out)
		}
		if err != nil {
			return nil, err
		}
		o = out.Organizer
		return func(State) State {
			cp := o
			return State{Organizer: &cp}
		}, nil
	})
	return o, err
}
