// Package cooks implements the Cook Store: the current user's cook profile.
package cooks

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
	pathGetCook    = "/cooks/get-cook-info"
	pathNewCook    = "/cooks/new-cook-info"
	pathUpdateCook = "/cooks/update-cook-info"
)

type apiClient interface {
	Get(ctx context.Context, path string, dst any) error
	Post(ctx context.Context, path string, body, dst any) error
}

type Cook struct {
	ID         string `json:"_id,omitempty"`
	Specialty  string `json:"specialty"`
	Experience int    `json:"experience"`
}

// Input carries the mutable cook fields.
type Input struct {
	Specialty  string `json:"specialty"`
	Experience int    `json:"experience"`
}

func (i Input) normalized() Input {
	i.Specialty = strings.TrimSpace(i.Specialty)
	return i
}

func (i Input) Validate() error {
	var errs []domain.FieldError
	if strings.TrimSpace(i.Specialty) == "" {
		errs = append(errs, domain.FieldError{Field: "specialty", Message: "required"})
	}
	if i.Experience < 0 {
		errs = append(errs, domain.FieldError{Field: "experience", Message: "must be zero or more years"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

func (i Input) Unchanged(c Cook) bool {
	return strings.TrimSpace(i.Specialty) == strings.TrimSpace(c.Specialty) && i.Experience == c.Experience
}

// State is the Cook Store snapshot data. Cook is nil until fetched.
type State struct {
	Cook *Cook `json:"cook,omitempty"`
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
	log = log.WithField("component", "cooks")
	return &Store{
		api:   api,
		state: store.New("cooks", State{}, append([]store.Option{store.WithLogger(log)}, opts...)...),
		log:   log,
	}
}

func (s *Store) Snapshot() store.Snapshot[State] { return s.state.Snapshot() }

func (s *Store) Hydrate(ctx context.Context) error { return s.state.Hydrate(ctx) }

// Get fetches the current user's cook profile.
func (s *Store) Get(ctx context.Context) (Cook, error) {
	return s.call(ctx, "get", pathGetCook, nil)
}

// New creates the cook profile.
func (s *Store) New(ctx context.Context, in Input) (Cook, error) {
	if err := in.Validate(); err != nil {
		return Cook{}, remoteerr.FromValidation(err)
	}
	c, err := s.call(ctx, "new", pathNewCook, in.normalized())
	if err == nil {
		s.log.WithField("cook_id", c.ID).Info("cook profile created")
	}
	return c, err
}

// Update replaces the cook profile. A submission equal to the stored
// profile is refused locally.
func (s *Store) Update(ctx context.Context, in Input) (Cook, error) {
	if err := in.Validate(); err != nil {
		return Cook{}, remoteerr.FromValidation(err)
	}
	if prev := s.state.Data().Cook; prev != nil && in.Unchanged(*prev) {
		return Cook{}, remoteerr.Validationf(domain.ErrNoChanges, "cook profile")
	}
	c, err := s.call(ctx, "update", pathUpdateCook, in.normalized())
	if err == nil {
		s.log.WithField("cook_id", c.ID).Info("cook profile updated")
	}
	return c, err
}

// call GETs path when body is nil and POSTs body otherwise.
func (s *Store) call(ctx context.Context, verb, path string, body any) (Cook, error) {
	var c Cook
	err := s.state.Run(ctx, verb, func(ctx context.Context) (store.Commit[State], error) {
		var out struct {
			Cook Cook `json:"cook"`
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
		c = out.Cook
		return func(State) State {
			cp := c
			return State{Cook: &cp}
		}, nil
	})
	return c, err
}
