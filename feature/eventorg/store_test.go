package eventorg

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ganjinghwan/erecipehub/core/apiclient"
	"github.com/ganjinghwan/erecipehub/core/domain"
	"github.com/ganjinghwan/erecipehub/core/remoteerr"
	"github.com/ganjinghwan/erecipehub/internal/apitest"
)

func newTestStore(t *testing.T) (*Store, *apitest.Server) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	client, err := apiclient.New(srv.URL)
	require.NoError(t, err)
	return NewStore(client, nil), srv
}

func kitchenGuild() Input {
	return Input{
		Name:        "Kitchen Guild",
		Description: "Monthly cook-offs.",
		Contact:     "guild@example.com",
		Location:    "Penang",
	}
}

func TestGetAfterNew(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx)
	require.Error(t, err)
	assert.Equal(t, "Event organizer info not found", s.Snapshot().Error)

	created, err := s.New(ctx, kitchenGuild())
	require.NoError(t, err)
	assert.Equal(t, apitest.OrganizerID, created.ID)

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	snap := s.Snapshot()
	assert.False(t, snap.IsLoading)
	assert.Empty(t, snap.Error)
	assert.Equal(t, &got, snap.Data.Organizer)
}

func TestUpdate_Guard(t *testing.T) {
	t.Parallel()
	s, srv := newTestStore(t)
	ctx := context.Background()
	srv.SetOrganizer(apitest.Organizer{
		ID: "org1", Name: "Kitchen Guild", Description: "Monthly cook-offs.",
		Contact: "guild@example.com", Location: "Penang",
	})

	_, err := s.Get(ctx)
	require.NoError(t, err)

	in := kitchenGuild()
	in.Location = " Penang "
	_, err = s.Update(ctx, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoChanges)
	assert.Zero(t, srv.Calls(apitest.RouteUpdateOrg))

	in.Location = "Ipoh"
	updated, err := s.Update(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Ipoh", updated.Location)
	assert.Equal(t, "Ipoh", s.Snapshot().Data.Organizer.Location)
}

func TestValidate_DescriptionLength(t *testing.T) {
	t.Parallel()
	s, srv := newTestStore(t)

	in := kitchenGuild()
	in.Description = strings.Repeat("é", domain.MaxDescriptionLen)
	require.NoError(t, in.Validate())

	in.Description += "é"
	_, err := s.New(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, []string{"organizationDescription: max 250 characters"}, remoteerr.Messages(err))
	assert.Zero(t, srv.Calls(apitest.RouteNewOrg))
}

func TestServerFailureKeepsData(t *testing.T) {
	t.Parallel()
	s, srv := newTestStore(t)
	ctx := context.Background()

	_, err := s.New(ctx, kitchenGuild())
	require.NoError(t, err)
	before := s.Snapshot().Data

	srv.Fail(apitest.RouteUpdateOrg, apitest.Fault{Status: 500, Body: `{"messages":["db down","retry later"]}`})
	in := kitchenGuild()
	in.Contact = "new@example.com"
	_, err = s.Update(ctx, in)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, before, snap.Data)
	assert.Equal(t, "db down; retry later", snap.Error)
	assert.False(t, snap.IsLoading)
}
