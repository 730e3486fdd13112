// Package cli is the terminal front end. It parses commands, calls store
// verbs through a Hub and prints results; every failure is printed as one
// line per message.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/sirupsen/logrus"

	"github.com/ganjinghwan/erecipehub/core/config"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
	"github.com/ganjinghwan/erecipehub/core/session"
	"github.com/ganjinghwan/erecipehub/core/vault"
	"github.com/ganjinghwan/erecipehub/feature/hub"
)

type App struct {
	cfg *config.Config
	log logrus.FieldLogger
	out io.Writer
	now func() time.Time
}

func New(cfg *config.Config, log logrus.FieldLogger, out io.Writer) *App {
	return &App{cfg: cfg, log: log, out: out, now: time.Now}
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return nil
	}

	switch args[0] {
	case "login":
		return a.runLogin(args[1:])
	case "logout":
		return a.runLogout(ctx, args[1:])
	case "whoami":
		return a.runWhoami(args[1:])
	case "events":
		return a.runEvents(ctx, args[1:])
	case "cook":
		return a.runCook(ctx, args[1:])
	case "org":
		return a.runOrg(ctx, args[1:])
	case "refresh":
		return a.runRefresh(ctx, args[1:])
	case "help", "--help", "-h":
		a.printUsage()
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// PrintError writes one line per message carried by err.
func PrintError(w io.Writer, err error) {
	for _, msg := range remoteerr.Messages(err) {
		fmt.Fprintf(w, "error: %s\n", msg)
	}
}

func (a *App) printUsage() {
	fmt.Fprintln(a.out, "erecipehub - events, cooks and organizers")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Usage:")
	fmt.Fprintln(a.out, "  erecipehub <command> [args]")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Session:")
	fmt.Fprintln(a.out, "  login --server <url> --token <jwt>   Store an access token")
	fmt.Fprintln(a.out, "  logout                               Forget the session and cached snapshots")
	fmt.Fprintln(a.out, "  whoami                               Show the stored user")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Events:")
	fmt.Fprintln(a.out, "  events ls [--mine]                   List all events or your own")
	fmt.Fprintln(a.out, "  events show <slug>                   Show one event")
	fmt.Fprintln(a.out, "  events create --name --description [--start --end --image]")
	fmt.Fprintln(a.out, "  events update <slug> [--name --description --start --end --image]")
	fmt.Fprintln(a.out, "  events delete <slug>")
	fmt.Fprintln(a.out, "  events expired <eventId>             Ask whether the event has ended")
	fmt.Fprintln(a.out, "  events invitable <slug>              List users you can invite")
	fmt.Fprintln(a.out, "  events invite <slug> <userId>...     Invite users")
	fmt.Fprintln(a.out, "  events accept <slug>                 Accept an invitation")
	fmt.Fprintln(a.out, "  events reject <slug>                 Reject an invitation")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Profiles:")
	fmt.Fprintln(a.out, "  cook show | new | update [--specialty --experience]")
	fmt.Fprintln(a.out, "  org show | new | update [--name --description --contact --location]")
	fmt.Fprintln(a.out, "  refresh                              Reload your events and profiles")
}

func (a *App) runLogin(args []string) error {
	fs := a.flagSet("login")
	server := fs.String("server", "", "API server URL")
	token := fs.String("token", "", "access token (JWT)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("login does not accept positional arguments")
	}

	baseURL := strings.TrimSpace(*server)
	if baseURL == "" {
		baseURL = a.cfg.API.BaseURL
	}
	state, err := session.FromToken(baseURL, *token)
	if err != nil {
		return err
	}
	if state.Expired(a.now()) {
		return errors.New("access token has already expired")
	}

	path, err := a.sessionPath()
	if err != nil {
		return err
	}
	var to age.Recipient
	if a.cfg.Session.Encrypt {
		id, err := a.identity()
		if err != nil {
			return err
		}
		to = id.Recipient()
	}
	if err := session.Write(path, state, to); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in to %s\n", state.ServerURL)
	if state.User.Username != "" {
		fmt.Fprintf(a.out, "User: %s\n", state.User.Username)
	}
	fmt.Fprintf(a.out, "Session saved: %s\n", path)
	return nil
}

func (a *App) runLogout(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errors.New("logout does not accept arguments")
	}
	path, err := a.sessionPath()
	if err != nil {
		return err
	}
	if err := session.Remove(path); err != nil {
		return err
	}
	h, err := hub.New(a.cfg, session.State{}, a.log)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.ClearCache(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) runWhoami(args []string) error {
	if len(args) != 0 {
		return errors.New("whoami does not accept arguments")
	}
	state, path, err := a.loadSession()
	if err != nil {
		return err
	}
	if state.AccessToken == "" {
		return errors.New("not logged in (run `erecipehub login --server <url> --token <jwt>`)")
	}
	fmt.Fprintf(a.out, "Session: %s\n", path)
	fmt.Fprintf(a.out, "Server: %s\n", state.ServerURL)
	if state.User.ID != "" {
		fmt.Fprintf(a.out, "User ID: %s\n", state.User.ID)
	}
	if state.User.Username != "" {
		fmt.Fprintf(a.out, "Username: %s\n", state.User.Username)
	}
	if state.User.Role != "" {
		fmt.Fprintf(a.out, "Role: %s\n", state.User.Role)
	}
	if !state.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "Access token expires at: %s\n", state.ExpiresAt.UTC().Format(time.RFC3339))
		if state.Expired(a.now()) {
			fmt.Fprintln(a.out, "Access token has expired; log in again")
		}
	}
	return nil
}

func (a *App) runRefresh(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errors.New("refresh does not accept arguments")
	}
	h, err := a.openHub(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	err = h.Refresh(ctx)
	fmt.Fprintf(a.out, "Events: %d\n", len(h.Events.Snapshot().Data.Events))
	if c := h.Cooks.Snapshot().Data.Cook; c != nil {
		fmt.Fprintf(a.out, "Cook: %s (%d years)\n", c.Specialty, c.Experience)
	}
	if o := h.EventOrg.Snapshot().Data.Organizer; o != nil {
		fmt.Fprintf(a.out, "Organizer: %s\n", o.Name)
	}
	return err
}

// openHub builds a Hub from the stored session and restores cached snapshots.
func (a *App) openHub(ctx context.Context) (*hub.Hub, error) {
	state, _, err := a.loadSession()
	if err != nil {
		return nil, err
	}
	if state.Expired(a.now()) {
		a.log.Warn("access token has expired; requests will likely be refused")
	}
	h, err := hub.New(a.cfg, state, a.log)
	if err != nil {
		return nil, err
	}
	h.Hydrate(ctx)
	return h, nil
}

// loadSession returns the stored session, or an empty one when none exists.
func (a *App) loadSession() (session.State, string, error) {
	path, err := a.sessionPath()
	if err != nil {
		return session.State{}, "", err
	}
	var id age.Identity
	if a.cfg.Session.Encrypt {
		x, err := a.identity()
		if err != nil {
			return session.State{}, "", err
		}
		id = x
	}
	state, err := session.Load(path, id)
	if errors.Is(err, session.ErrNotFound) {
		return session.State{}, path, nil
	}
	return state, path, err
}

func (a *App) sessionPath() (string, error) {
	if p := strings.TrimSpace(a.cfg.Session.Path); p != "" {
		return p, nil
	}
	return session.DefaultPath()
}

func (a *App) identity() (*age.X25519Identity, error) {
	path := strings.TrimSpace(a.cfg.Session.IdentityPath)
	if path == "" {
		var err error
		if path, err = vault.DefaultIdentityPath(); err != nil {
			return nil, err
		}
	}
	return vault.LoadOrCreateIdentity(path)
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

// parseArgs parses flags that may appear before, between or after positional
// arguments and returns the positional ones.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// flagsSet reports which flags were given explicitly.
func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
