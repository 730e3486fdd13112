package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ganjinghwan/erecipehub/feature/events"
	"github.com/ganjinghwan/erecipehub/feature/hub"
)

func (a *App) runEvents(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return nil
	}
	h, err := a.openHub(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	switch args[0] {
	case "ls", "list":
		return a.runEventsList(ctx, h, args[1:])
	case "show":
		return a.runEventsShow(ctx, h, args[1:])
	case "create":
		return a.runEventsCreate(ctx, h, args[1:])
	case "update":
		return a.runEventsUpdate(ctx, h, args[1:])
	case "delete":
		slug, err := oneArg("events delete <slug>", args[1:])
		if err != nil {
			return err
		}
		if err := h.Events.Delete(ctx, slug); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deleted %s\n", slug)
		return nil
	case "expired":
		id, err := oneArg("events expired <eventId>", args[1:])
		if err != nil {
			return err
		}
		expired, err := h.Events.CheckExpired(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Expired: %t\n", expired)
		return nil
	case "invitable":
		return a.runEventsInvitable(ctx, h, args[1:])
	case "invite":
		return a.runEventsInvite(ctx, h, args[1:])
	case "accept", "reject":
		slug, err := oneArg("events "+args[0]+" <slug>", args[1:])
		if err != nil {
			return err
		}
		inv, err := h.Events.RespondToInvite(ctx, slug, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Invitation to %s %s\n", slug, inv.Status)
		return nil
	default:
		return fmt.Errorf("unknown events command %q", args[0])
	}
}

func (a *App) runEventsList(ctx context.Context, h *hub.Hub, args []string) error {
	fs := a.flagSet("events ls")
	mine := fs.Bool("mine", false, "only events you organize")
	if err := fs.Parse(args); err != nil {
		return err
	}
	list := h.Events.ListAll
	if *mine {
		list = h.Events.ListMine
	}
	evs, err := list(ctx)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		fmt.Fprintln(a.out, "No events")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tSTART\tEND")
	for _, ev := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Slug, ev.Name, formatDate(ev.StartDate), formatDate(ev.EndDate))
	}
	return tw.Flush()
}

func (a *App) runEventsShow(ctx context.Context, h *hub.Hub, args []string) error {
	slug, err := oneArg("events show <slug>", args)
	if err != nil {
		return err
	}
	ev, err := h.Events.Get(ctx, slug)
	if err != nil {
		return err
	}
	a.printEvent(ev)
	return nil
}

type eventFlags struct {
	name, description, start, end, image *string
}

func (a *App) eventFlagSet(name string) (*flag.FlagSet, eventFlags) {
	fs := a.flagSet(name)
	f := eventFlags{
		name:        fs.String("name", "", "event name"),
		description: fs.String("description", "", "event description (max 250 characters)"),
		start:       fs.String("start", "", "start date, YYYY-MM-DD or RFC 3339"),
		end:         fs.String("end", "", "end date, YYYY-MM-DD or RFC 3339"),
		image:       fs.String("image", "", "image file path or data URI"),
	}
	return fs, f
}

func (a *App) runEventsCreate(ctx context.Context, h *hub.Hub, args []string) error {
	fs, f := a.eventFlagSet("events create")
	if pos, err := parseArgs(fs, args); err != nil {
		return err
	} else if len(pos) != 0 {
		return errors.New("events create does not accept positional arguments")
	}
	in, err := f.apply(events.Input{}, nil)
	if err != nil {
		return err
	}
	ev, err := h.Events.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s\n", ev.Slug)
	a.printEvent(ev)
	return nil
}

// runEventsUpdate fetches the event first so unset flags keep their current
// values and an identical submission is caught locally.
func (a *App) runEventsUpdate(ctx context.Context, h *hub.Hub, args []string) error {
	fs, f := a.eventFlagSet("events update")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: events update <slug> [flags]")
	}
	slug := pos[0]
	cur, err := h.Events.Get(ctx, slug)
	if err != nil {
		return err
	}
	in, err := f.apply(events.Input{
		Name:        cur.Name,
		Description: cur.Description,
		StartDate:   cur.StartDate,
		EndDate:     cur.EndDate,
		Image:       cur.Image,
	}, flagsSet(fs))
	if err != nil {
		return err
	}
	ev, err := h.Events.Update(ctx, slug, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", ev.Slug)
	a.printEvent(ev)
	return nil
}

// apply overlays flags onto in. With a nil set every flag is applied.
func (f eventFlags) apply(in events.Input, set map[string]bool) (events.Input, error) {
	use := func(name string) bool { return set == nil || set[name] }
	if use("name") {
		in.Name = *f.name
	}
	if use("description") {
		in.Description = *f.description
	}
	if use("start") {
		t, err := parseDate(*f.start)
		if err != nil {
			return in, fmt.Errorf("--start: %w", err)
		}
		in.StartDate = t
	}
	if use("end") {
		t, err := parseDate(*f.end)
		if err != nil {
			return in, fmt.Errorf("--end: %w", err)
		}
		in.EndDate = t
	}
	if use("image") {
		img, err := imageDataURI(*f.image)
		if err != nil {
			return in, fmt.Errorf("--image: %w", err)
		}
		in.Image = img
	}
	return in, nil
}

func (a *App) runEventsInvitable(ctx context.Context, h *hub.Hub, args []string) error {
	slug, err := oneArg("events invitable <slug>", args)
	if err != nil {
		return err
	}
	cands, err := h.Events.ListInvitable(ctx, slug)
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		fmt.Fprintln(a.out, "No invitable users")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Username, c.Email)
	}
	return tw.Flush()
}

func (a *App) runEventsInvite(ctx context.Context, h *hub.Hub, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: events invite <slug> <userId>...")
	}
	res, err := h.Events.SendInvite(ctx, args[0], args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Invited %d user(s) to %s\n", len(res.Invited), res.EventSlug)
	return nil
}

func (a *App) printEvent(ev events.Event) {
	fmt.Fprintf(a.out, "ID: %s\n", ev.ID)
	fmt.Fprintf(a.out, "Slug: %s\n", ev.Slug)
	fmt.Fprintf(a.out, "Name: %s\n", ev.Name)
	if ev.Description != "" {
		fmt.Fprintf(a.out, "Description: %s\n", ev.Description)
	}
	if ev.StartDate != nil {
		fmt.Fprintf(a.out, "Dates: %s to %s\n", formatDate(ev.StartDate), formatDate(ev.EndDate))
		if ev.Expired(a.now()) {
			fmt.Fprintln(a.out, "Status: ended")
		}
	}
}

func oneArg(usage string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return args[0], nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

// imageDataURI returns v unchanged when it already is a data URI, otherwise
// reads the file at v and encodes it as one.
func imageDataURI(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "data:") {
		return v, nil
	}
	raw, err := os.ReadFile(v)
	if err != nil {
		return "", err
	}
	return "data:" + http.DetectContentType(raw) + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
