package events

import (
	"errors"
	"strings"
	"time"

	"github.com/ganjinghwan/erecipehub/core/domain"
)

var (
	ErrDatePair  = errors.New("start and end date must both be set or both be empty")
	ErrDateOrder = errors.New("end date must not be before start date")
)

type Event struct {
	ID          string     `json:"_id"`
	Slug        string     `json:"eventSpecificEndUrl"`
	Name        string     `json:"event_name"`
	Description string     `json:"event_description"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Image       string     `json:"event_image,omitempty"`
	OrganizerID string     `json:"eventOrgID,omitempty"`
}

// Expired reports whether now is past the event's end date. Events without
// an end date never expire.
func (e Event) Expired(now time.Time) bool {
	return e.EndDate != nil && now.After(*e.EndDate)
}

// Candidate is a user the server lists as invitable to an event.
type Candidate struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Input carries the five mutable event fields.
type Input struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Image       string
}

// Validate checks the cross-field invariants and collects all errors.
func (i Input) Validate() error {
	var errs []domain.FieldError

	if (i.StartDate == nil) != (i.EndDate == nil) {
		errs = append(errs, domain.FieldError{Field: "start_date", Message: ErrDatePair.Error()})
	} else if i.StartDate != nil && i.EndDate.Before(*i.StartDate) {
		errs = append(errs, domain.FieldError{Field: "end_date", Message: ErrDateOrder.Error()})
	}
	errs = domain.CheckDescription(errs, "event_description", i.Description)

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// Unchanged reports whether the input matches the event on every mutable field.
func (i Input) Unchanged(e Event) bool {
	return strings.TrimSpace(i.Name) == strings.TrimSpace(e.Name) &&
		strings.TrimSpace(i.Description) == strings.TrimSpace(e.Description) &&
		sameTime(i.StartDate, e.StartDate) &&
		sameTime(i.EndDate, e.EndDate) &&
		i.Image == e.Image
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

type createRequest struct {
	Name        string     `json:"event_name"`
	Description string     `json:"event_description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Image       string     `json:"event_image"`
}

type updateRequest struct {
	Name        string     `json:"newEvent_name"`
	Description string     `json:"newEvent_description"`
	StartDate   *time.Time `json:"newStart_date"`
	EndDate     *time.Time `json:"newEnd_date"`
	Image       string     `json:"newEvent_image"`
}

func (i Input) createRequest() createRequest {
	return createRequest{
		Name:        strings.TrimSpace(i.Name),
		Description: strings.TrimSpace(i.Description),
		StartDate:   i.StartDate,
		EndDate:     i.EndDate,
		Image:       i.Image,
	}
}

func (i Input) updateRequest() updateRequest {
	return updateRequest{
		Name:        strings.TrimSpace(i.Name),
		Description: strings.TrimSpace(i.Description),
		StartDate:   i.StartDate,
		EndDate:     i.EndDate,
		Image:       i.Image,
	}
}
