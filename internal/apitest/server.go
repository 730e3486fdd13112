// Package apitest serves an in-memory fake of the remote E-Recipe Hub API.
// It mirrors the request/response contract the stores depend on and lets
// tests count calls and inject failures per route.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Route names used by Calls and Fail.
const (
	RouteGetEvent     = "GET /events/{slug}"
	RouteAllEvents    = "GET /events/get-all-events"
	RouteOrgEvents    = "GET /events/get-EventOrgRelated-events"
	RouteNewEvent     = "POST /events/new-event"
	RouteUpdateEvent  = "POST /events/update-event/{slug}"
	RouteDeleteEvent  = "DELETE /events/delete-event/{slug}"
	RouteIsExpired    = "GET /events/is-expired/{eventId}"
	RouteInvitable    = "GET /events/get-event-attendeesList/{slug}"
	RouteInvite       = "POST /events/invite/{slug}"
	RouteAcceptInvite = "POST /events/invite/acceptInvite/{slug}"
	RouteRejectInvite = "POST /events/invite/rejectInvite/{slug}"
	RouteGetCook      = "GET /cooks/get-cook-info"
	RouteNewCook      = "POST /cooks/new-cook-info"
	RouteUpdateCook   = "POST /cooks/update-cook-info"
	RouteGetOrg       = "GET /eventorg/get-eventOrg-info"
	RouteNewOrg       = "POST /eventorg/new-eventOrg-info"
	RouteUpdateOrg    = "POST /eventorg/update-eventOrg-info"
)

// OrganizerID owns every event created through the fake.
const OrganizerID = "org1"

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

type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type Cook struct {
	ID         string `json:"_id,omitempty"`
	Specialty  string `json:"specialty"`
	Experience int    `json:"experience"`
}

type Organizer struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"organizationName"`
	Description string `json:"organizationDescription"`
	Contact     string `json:"contact"`
	Location    string `json:"location"`
}

// Fault replaces a route's normal response. A zero Status drops the
// connection without any response.
type Fault struct {
	Status int
	Body   string
}

type Server struct {
	*httptest.Server

	// Token, when set, is required as a bearer token on every request.
	Token string
	// Now drives expiration checks for events without an explicit override.
	Now func() time.Time

	mu         sync.Mutex
	seq        int
	events     map[string]Event
	expired    map[string]bool
	candidates map[string][]User
	invited    map[string]map[string]bool
	decisions  map[string]string
	cook       *Cook
	org        *Organizer
	calls      map[string]int
	faults     map[string]Fault
}

// New starts a fake API server on a loopback port. Close it when done.
func New() *Server {
	s := NewUnstarted()
	s.Server = httptest.NewServer(s.Handler())
	return s
}

// NewUnstarted returns the fake without a listener, for serving Handler
// from a regular http.Server.
func NewUnstarted() *Server {
	return &Server{
		Now:        time.Now,
		events:     map[string]Event{},
		expired:    map[string]bool{},
		candidates: map[string][]User{},
		invited:    map[string]map[string]bool{},
		decisions:  map[string]string{},
		calls:      map[string]int{},
		faults:     map[string]Fault{},
	}
}

// Handler returns the router, for serving the fake outside httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.auth)

	r.Route("/events", func(r chi.Router) {
		r.Get("/get-all-events", s.route(RouteAllEvents, s.listAll))
		r.Get("/get-EventOrgRelated-events", s.route(RouteOrgEvents, s.listMine))
		r.Get("/is-expired/{eventId}", s.route(RouteIsExpired, s.isExpired))
		r.Get("/get-event-attendeesList/{slug}", s.route(RouteInvitable, s.invitable))
		r.Post("/new-event", s.route(RouteNewEvent, s.newEvent))
		r.Post("/update-event/{slug}", s.route(RouteUpdateEvent, s.updateEvent))
		r.Delete("/delete-event/{slug}", s.route(RouteDeleteEvent, s.deleteEvent))
		r.Post("/invite/acceptInvite/{slug}", s.route(RouteAcceptInvite, s.decide("accepted")))
		r.Post("/invite/rejectInvite/{slug}", s.route(RouteRejectInvite, s.decide("rejected")))
		r.Post("/invite/{slug}", s.route(RouteInvite, s.invite))
		r.Get("/{slug}", s.route(RouteGetEvent, s.getEvent))
	})
	r.Route("/cooks", func(r chi.Router) {
		r.Get("/get-cook-info", s.route(RouteGetCook, s.getCook))
		r.Post("/new-cook-info", s.route(RouteNewCook, s.saveCook(true)))
		r.Post("/update-cook-info", s.route(RouteUpdateCook, s.saveCook(false)))
	})
	r.Route("/eventorg", func(r chi.Router) {
		r.Get("/get-eventOrg-info", s.route(RouteGetOrg, s.getOrg))
		r.Post("/new-eventOrg-info", s.route(RouteNewOrg, s.saveOrg(true)))
		r.Post("/update-eventOrg-info", s.route(RouteUpdateOrg, s.saveOrg(false)))
	})
	return r
}

// Calls returns how many requests reached a route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Fail makes every following request to route return the fault.
func (s *Server) Fail(route string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = f
}

// Heal removes an injected fault.
func (s *Server) Heal(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, route)
}

// AddEvent seeds an event, filling in id and slug when empty.
func (s *Server) AddEvent(ev Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putEventLocked(ev)
}

// SetExpired overrides the expiration answer for an event id.
func (s *Server) SetExpired(eventID string, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired[eventID] = expired
}

// AddCandidates seeds invitable users for an event.
func (s *Server) AddCandidates(slug string, users ...User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[slug] = append(s.candidates[slug], users...)
}

// Invited reports whether the user was invited to the event.
func (s *Server) Invited(slug, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invited[slug][userID]
}

func (s *Server) SetCook(c Cook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cook = &c
}

func (s *Server) SetOrganizer(o Organizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.org = &o
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized - no token provided"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		f, faulty := s.faults[name]
		s.mu.Unlock()

		if !faulty {
			h(w, r)
			return
		}
		if f.Status == 0 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.Status)
		w.Write([]byte(f.Body))
	}
}

func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.sortedEventsLocked("")
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"Allevents": out})
}

func (s *Server) listMine(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.sortedEventsLocked(OrganizerID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ev, ok := s.events[chi.URLParam(r, "slug")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"allEventInfo": ev})
}

type eventBody struct {
	Name        string     `json:"event_name"`
	Description string     `json:"event_description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Image       string     `json:"event_image"`

	NewName        string     `json:"newEvent_name"`
	NewDescription string     `json:"newEvent_description"`
	NewStartDate   *time.Time `json:"newStart_date"`
	NewEndDate     *time.Time `json:"newEnd_date"`
	NewImage       string     `json:"newEvent_image"`
}

func (s *Server) newEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		return
	}
	var missing []string
	if strings.TrimSpace(body.Name) == "" {
		missing = append(missing, "Event name is required")
	}
	if strings.TrimSpace(body.Description) == "" {
		missing = append(missing, "Event description is required")
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"messages": missing})
		return
	}
	s.mu.Lock()
	ev := s.putEventLocked(Event{
		Name:        body.Name,
		Description: body.Description,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
		Image:       body.Image,
		OrganizerID: OrganizerID,
	})
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"newEventInfo": ev})
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[slug]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Event not found"})
		return
	}
	ev.Name = body.NewName
	ev.Description = body.NewDescription
	ev.StartDate = body.NewStartDate
	ev.EndDate = body.NewEndDate
	ev.Image = body.NewImage
	s.events[slug] = ev
	writeJSON(w, http.StatusOK, map[string]any{"updatedEventInfo": ev})
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[slug]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Event not found"})
		return
	}
	delete(s.events, slug)
	delete(s.candidates, slug)
	delete(s.invited, slug)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Event deleted successfully"})
}

func (s *Server) isExpired(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventId")
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"expired": s.expiredLocked(id)})
}

func (s *Server) invitable(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []User{}
	for _, u := range s.candidates[slug] {
		if s.invited[slug][u.ID] {
			continue
		}
		out = append(out, u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitableUserInfo": out})
}

func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var body struct {
		IDs []string `json:"invitedAttendeesID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "No attendees selected"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[slug]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Event not found"})
		return
	}
	if s.expiredLocked(ev.ID) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Event has expired"})
		return
	}
	if s.invited[slug] == nil {
		s.invited[slug] = map[string]bool{}
	}
	inbox := make([]map[string]string, 0, len(body.IDs))
	for _, id := range body.IDs {
		s.invited[slug][id] = true
		inbox = append(inbox, map[string]string{"eventId": ev.ID, "userId": id, "status": "pending"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"inviteInboxRequired": inbox})
}

func (s *Server) decide(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.events[slug]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Event not found"})
			return
		}
		if prev, ok := s.decisions[slug]; ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invitation already " + prev})
			return
		}
		s.decisions[slug] = status
		writeJSON(w, http.StatusOK, map[string]any{"message": "Invitation " + status})
	}
}

func (s *Server) getCook(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	c := s.cook
	s.mu.Unlock()
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Cook info not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cook": c})
}

func (s *Server) saveCook(create bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Cook
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if create && s.cook != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Cook info already exists"})
			return
		}
		if !create && s.cook == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Cook info not found"})
			return
		}
		body.ID = "cook1"
		s.cook = &body
		writeJSON(w, http.StatusOK, map[string]any{"cook": body})
	}
}

func (s *Server) getOrg(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	o := s.org
	s.mu.Unlock()
	if o == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Event organizer info not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"eventOrganizer": o})
}

func (s *Server) saveOrg(create bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Organizer
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if create && s.org != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Event organizer info already exists"})
			return
		}
		if !create && s.org == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Event organizer info not found"})
			return
		}
		body.ID = OrganizerID
		s.org = &body
		writeJSON(w, http.StatusOK, map[string]any{"eventOrganizer": body})
	}
}

func (s *Server) putEventLocked(ev Event) Event {
	if ev.ID == "" {
		s.seq++
		ev.ID = fmt.Sprintf("evt%d", s.seq)
	}
	if ev.Slug == "" {
		ev.Slug = slugify(ev.Name) + "-" + ev.ID
	}
	s.events[ev.Slug] = ev
	return ev
}

func (s *Server) expiredLocked(eventID string) bool {
	if v, ok := s.expired[eventID]; ok {
		return v
	}
	for _, ev := range s.events {
		if ev.ID == eventID {
			return ev.EndDate != nil && s.Now().After(*ev.EndDate)
		}
	}
	return false
}

func (s *Server) sortedEventsLocked(owner string) []Event {
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if owner != "" && ev.OrganizerID != owner {
			continue
		}
		out = append(out, ev)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
