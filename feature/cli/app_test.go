package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganjinghwan/erecipehub/core/config"
	"github.com/ganjinghwan/erecipehub/core/logging"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
	"github.com/ganjinghwan/erecipehub/internal/apitest"
)

type harness struct {
	app *App
	out *bytes.Buffer
	srv *apitest.Server
	cfg *config.Config
	tok string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":   "u42",
		"username": "ana",
		"role":     "eventOrganizer",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.Token = tok

	cfg := &config.Config{
		API: config.APIConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, RateLimitBurst: 1, UserAgent: "erecipehub-test"},
		Store: config.StoreConfig{
			ResumePolicy:     "last_write_wins",
			ExpirationPolicy: "fail_open",
			CachePath:        filepath.Join(dir, "cache.db"),
		},
		Session: config.SessionConfig{
			Path:         filepath.Join(dir, "session.toml"),
			IdentityPath: filepath.Join(dir, "identity.agekey"),
		},
		Log: config.LogConfig{Level: "info", Format: "text"},
	}
	out := &bytes.Buffer{}
	return &harness{app: New(cfg, logging.Discard(), out), out: out, srv: srv, cfg: cfg, tok: tok}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()
	return h.app.Run(context.Background(), args)
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	require.NoError(t, h.run(t, "login", "--server", h.srv.URL, "--token", h.tok))
}

func TestLoginWhoamiLogout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.login(t)
	assert.Contains(t, h.out.String(), "Logged in to "+h.srv.URL)
	assert.Contains(t, h.out.String(), "User: ana")

	require.NoError(t, h.run(t, "whoami"))
	assert.Contains(t, h.out.String(), "User ID: u42")
	assert.Contains(t, h.out.String(), "Role: eventOrganizer")

	require.NoError(t, h.run(t, "logout"))
	assert.Contains(t, h.out.String(), "Logged out")

	err := h.run(t, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLogin_EncryptedSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.cfg.Session.Encrypt = true

	h.login(t)
	raw, err := os.ReadFile(h.cfg.Session.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), h.tok)

	require.NoError(t, h.run(t, "whoami"))
	assert.Contains(t, h.out.String(), "Username: ana")
}

func TestEventsLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)

	require.NoError(t, h.run(t, "events", "create",
		"--name", "Chili Cookoff", "--description", "Bring a pot",
		"--start", "2099-05-01", "--end", "2099-05-02"))
	assert.Contains(t, h.out.String(), "Created chili-cookoff-evt1")

	require.NoError(t, h.run(t, "events", "ls", "--mine"))
	assert.Contains(t, h.out.String(), "chili-cookoff-evt1")
	assert.Contains(t, h.out.String(), "2099-05-01")

	require.NoError(t, h.run(t, "events", "update", "chili-cookoff-evt1", "--description", "Bring two pots"))
	assert.Contains(t, h.out.String(), "Description: Bring two pots")

	err := h.run(t, "events", "update", "chili-cookoff-evt1")
	require.Error(t, err)
	assert.Equal(t, 1, h.srv.Calls(apitest.RouteUpdateEvent))

	var printed bytes.Buffer
	PrintError(&printed, err)
	assert.Equal(t, "error: no changes to update: event chili-cookoff-evt1\n", printed.String())

	require.NoError(t, h.run(t, "events", "delete", "chili-cookoff-evt1"))
	require.NoError(t, h.run(t, "events", "ls"))
	assert.Contains(t, h.out.String(), "No events")
}

func TestEventsInvite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)

	past := time.Now().Add(-48 * time.Hour)
	ended := h.srv.AddEvent(apitest.Event{Name: "Last Year", OrganizerID: apitest.OrganizerID, EndDate: &past})
	err := h.run(t, "events", "invite", ended.Slug, "user1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "event has expired")
	assert.Zero(t, h.srv.Calls(apitest.RouteInvite))

	open := h.srv.AddEvent(apitest.Event{Name: "Next Year", OrganizerID: apitest.OrganizerID})
	h.srv.AddCandidates(open.Slug, apitest.User{ID: "user1", Username: "ben"})
	require.NoError(t, h.run(t, "events", "invitable", open.Slug))
	assert.Contains(t, h.out.String(), "ben")

	require.NoError(t, h.run(t, "events", "invite", open.Slug, "user1"))
	assert.Contains(t, h.out.String(), "Invited 1 user(s)")
	assert.True(t, h.srv.Invited(open.Slug, "user1"))

	require.NoError(t, h.run(t, "events", "accept", open.Slug))
	assert.Contains(t, h.out.String(), "accepted")
}

func TestProfiles(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t)

	require.NoError(t, h.run(t, "cook", "new", "--specialty", "Pastry", "--experience", "3"))
	require.NoError(t, h.run(t, "cook", "update", "--experience", "4"))
	assert.Contains(t, h.out.String(), "Experience: 4 years")

	err := h.run(t, "cook", "new", "--specialty", "Pastry", "--experience", "-1")
	require.Error(t, err)
	assert.True(t, remoteerr.IsKind(err, remoteerr.KindValidation))

	require.NoError(t, h.run(t, "org", "new", "--name", "Kitchen Guild", "--location", "Penang"))
	require.NoError(t, h.run(t, "org", "update", "--contact", "guild@example.com"))
	assert.Contains(t, h.out.String(), "Contact: guild@example.com")
	assert.Contains(t, h.out.String(), "Location: Penang")

	require.NoError(t, h.run(t, "refresh"))
	assert.Contains(t, h.out.String(), "Cook: Pastry (4 years)")
	assert.Contains(t, h.out.String(), "Organizer: Kitchen Guild")
}

func TestUnauthenticatedRequestShowsServerMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	err := h.run(t, "events", "ls")
	require.Error(t, err)
	var printed bytes.Buffer
	PrintError(&printed, err)
	assert.Equal(t, "error: Unauthorized - no token provided\n", printed.String())
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	assert.Error(t, h.run(t, "bake"))

	require.NoError(t, h.run(t))
	assert.Contains(t, h.out.String(), "Usage:")
}
