// Package hub wires the request envelope and the resource stores together.
// One Hub is built per process and passed to whatever drives the stores.
package hub

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ganjinghwan/erecipehub/core/apiclient"
	"github.com/ganjinghwan/erecipehub/core/config"
	"github.com/ganjinghwan/erecipehub/core/session"
	"github.com/ganjinghwan/erecipehub/core/snapcache"
	"github.com/ganjinghwan/erecipehub/core/store"
	"github.com/ganjinghwan/erecipehub/feature/cooks"
	"github.com/ganjinghwan/erecipehub/feature/eventorg"
	"github.com/ganjinghwan/erecipehub/feature/events"
)

type Hub struct {
	Events   *events.Store
	Cooks    *cooks.Store
	EventOrg *eventorg.Store

	cache *snapcache.Cache
	log   logrus.FieldLogger
}

// New builds the stores from configuration and the current session. The
// session's server URL, when set, takes precedence over api.base_url.
func New(cfg *config.Config, sess session.State, log logrus.FieldLogger) (*Hub, error) {
	resume, err := store.ParseResumePolicy(cfg.Store.ResumePolicy)
	if err != nil {
		return nil, err
	}
	expiration, err := events.ParseExpirationPolicy(cfg.Store.ExpirationPolicy)
	if err != nil {
		return nil, err
	}

	baseURL := sess.ServerURL
	if baseURL == "" {
		baseURL = cfg.API.BaseURL
	}
	token := sess.AccessToken
	client, err := apiclient.New(baseURL,
		apiclient.WithTimeout(cfg.API.Timeout),
		apiclient.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst),
		apiclient.WithUserAgent(cfg.API.UserAgent),
		apiclient.WithTokenSource(func() string { return token }),
		apiclient.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("build api client: %w", err)
	}

	h := &Hub{log: log.WithField("component", "hub")}
	storeOpts := []store.Option{store.WithResumePolicy(resume)}
	if cfg.Store.CachePath != "" {
		cache, err := snapcache.Open(cfg.Store.CachePath)
		if err != nil {
			return nil, err
		}
		h.cache = cache
		storeOpts = append(storeOpts, store.WithPersister(cache))
	}

	h.Events = events.NewStore(client,
		events.WithExpirationPolicy(expiration),
		events.WithLogger(log),
		events.WithStoreOptions(storeOpts...),
	)
	h.Cooks = cooks.NewStore(client, log, storeOpts...)
	h.EventOrg = eventorg.NewStore(client, log, storeOpts...)
	return h, nil
}

// Hydrate restores cached snapshots. Failures are logged and skipped.
func (h *Hub) Hydrate(ctx context.Context) {
	for name, hydrate := range map[string]func(context.Context) error{
		"events":   h.Events.Hydrate,
		"cooks":    h.Cooks.Hydrate,
		"eventorg": h.EventOrg.Hydrate,
	} {
		if err := hydrate(ctx); err != nil {
			h.log.WithError(err).WithField("store", name).Warn("hydrate failed")
		}
	}
}

// Refresh reloads the organizer's events and both profiles concurrently.
// Every store settles on its own; the first error is returned.
func (h *Hub) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := h.Events.ListMine(ctx)
		return err
	})
	g.Go(func() error {
		_, err := h.Cooks.Get(ctx)
		return err
	})
	g.Go(func() error {
		_, err := h.EventOrg.Get(ctx)
		return err
	})
	return g.Wait()
}

// ClearCache drops persisted snapshots, if a cache is configured.
func (h *Hub) ClearCache(ctx context.Context) error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Clear(ctx)
}

func (h *Hub) Close() error {
	if h.cache == nil {
		return nil
	}
	return h.cache.Close()
}
