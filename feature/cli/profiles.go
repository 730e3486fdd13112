package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/ganjinghwan/erecipehub/feature/cooks"
	"github.com/ganjinghwan/erecipehub/feature/eventorg"
)

func (a *App) runCook(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return nil
	}
	h, err := a.openHub(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	fs := a.flagSet("cook " + args[0])
	specialty := fs.String("specialty", "", "cooking specialty")
	experience := fs.Int("experience", 0, "years of experience")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("cook %s does not accept positional arguments", args[0])
	}

	var c cooks.Cook
	switch args[0] {
	case "show":
		c, err = h.Cooks.Get(ctx)
	case "new":
		c, err = h.Cooks.New(ctx, cooks.Input{Specialty: *specialty, Experience: *experience})
	case "update":
		cur, gerr := h.Cooks.Get(ctx)
		if gerr != nil {
			return gerr
		}
		in := cooks.Input{Specialty: cur.Specialty, Experience: cur.Experience}
		set := flagsSet(fs)
		if set["specialty"] {
			in.Specialty = *specialty
		}
		if set["experience"] {
			in.Experience = *experience
		}
		c, err = h.Cooks.Update(ctx, in)
	default:
		return fmt.Errorf("unknown cook command %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Specialty: %s\n", c.Specialty)
	fmt.Fprintf(a.out, "Experience: %d years\n", c.Experience)
	return nil
}

func (a *App) runOrg(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return nil
	}
	h, err := a.openHub(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	fs := a.flagSet("org " + args[0])
	name := fs.String("name", "", "organization name")
	description := fs.String("description", "", "organization description (max 250 characters)")
	contact := fs.String("contact", "", "contact details")
	location := fs.String("location", "", "location")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("org commands do not accept positional arguments")
	}

	var o eventorg.Organizer
	switch args[0] {
	case "show":
		o, err = h.EventOrg.Get(ctx)
	case "new":
		o, err = h.EventOrg.New(ctx, eventorg.Input{
			Name: *name, Description: *description, Contact: *contact, Location: *location,
		})
	case "update":
		cur, gerr := h.EventOrg.Get(ctx)
		if gerr != nil {
			return gerr
		}
		in := eventorg.Input{Name: cur.Name, Description: cur.Description, Contact: cur.Contact, Location: cur.Location}
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				in.Name = *name
			case "description":
				in.Description = *description
			case "contact":
				in.Contact = *contact
			case "location":
				in.Location = *location
			}
		})
		o, err = h.EventOrg.Update(ctx, in)
	default:
		return fmt.Errorf("unknown org command %q", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Organization: %s\n", o.Name)
	if o.Description != "" {
		fmt.Fprintf(a.out, "Description: %s\n", o.Description)
	}
	fmt.Fprintf(a.out, "Contact: %s\n", o.Contact)
	fmt.Fprintf(a.out, "Location: %s\n", o.Location)
	return nil
}
