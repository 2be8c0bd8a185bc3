package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/smallbiznis/orgkeys/internal/dbtest"
	"github.com/smallbiznis/orgkeys/internal/identity"
	"github.com/smallbiznis/orgkeys/internal/invitation/domain"
	"github.com/smallbiznis/orgkeys/internal/invitation/repository"
	orgdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
	orgrepository "github.com/smallbiznis/orgkeys/internal/organization/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	orgID   snowflake.ID = 42
	adminID snowflake.ID = 1
	guestID snowflake.ID = 2
)

type fixture struct {
	svc     domain.Service
	clock   *clock.FakeClock
	members orgdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	members := orgrepository.NewRepository(db)
	enforcer, err := authorization.NewEnforcer(config.Config{}, nil, log)
	require.NoError(t, err)

	now := clk.Now()
	require.NoError(t, members.CreateOrganization(context.Background(), orgdomain.Organization{
		ID: orgID, Name: "Acme", Slug: "acme", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, members.AddMember(context.Background(), orgdomain.OrganizationMember{
		ID:          100,
		OrgID:       orgID,
		UserID:      adminID,
		Email:       "admin@example.com",
		Permissions: datatypes.NewJSONSlice([]string{string(permission.ManageOrganizationMembers)}),
		Accepted:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	svc := NewService(Params{
		DB:      db,
		Log:     log,
		GenID:   dbtest.Node(t),
		Repo:    repository.Provide(),
		Members: members,
		Authz:   authorization.NewService(authorization.Params{Log: log, Members: members, Enforcer: enforcer}),
		Clock:   clk,
		Config:  config.Config{InvitationTTL: 7 * 24 * time.Hour},
	})
	return &fixture{svc: svc, clock: clk, members: members}
}

func admin() context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{ID: adminID, Email: "admin@example.com"})
}

func guest(email string) context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{ID: guestID, Email: email})
}

func TestInviteAndAccept(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.Create(admin(), orgID, domain.CreateRequest{
		Email:       " Guest@Example.com ",
		Permissions: []string{"read_organization_members"},
	})
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", invite.Email)
	assert.Len(t, invite.Code, 26)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), invite.ExpiresAt)

	mine, err := f.svc.ListForPrincipal(guest("guest@example.com"))
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = f.svc.Accept(guest("someone@example.com"), invite.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	accepted, err := f.svc.Accept(guest("GUEST@example.com"), invite.Code)
	require.NoError(t, err)
	assert.Equal(t, orgID.String(), accepted.OrganizationID)
	assert.Equal(t, []string{"READ_ORGANIZATION_MEMBERS"}, accepted.Permissions)

	member, err := f.members.FindMembership(context.Background(), orgID, guestID)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.True(t, member.Accepted)

	_, err = f.svc.Accept(guest("guest@example.com"), invite.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "guest@example.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)
}

func TestDuplicateInvitation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "guest@example.com"})
	require.NoError(t, err)
	_, err = f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "GUEST@example.com"})
	assert.ErrorIs(t, err, domain.ErrAlreadyInvited)

	// An expired invitation no longer blocks a new one.
	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "guest@example.com"})
	require.NoError(t, err)

	list, err := f.svc.ListForOrganization(admin(), orgID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExpiredInvitationCannotBeAccepted(t *testing.T) {
	f := newFixture(t)
	invite, err := f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "guest@example.com"})
	require.NoError(t, err)

	f.clock.Advance(7 * 24 * time.Hour)
	_, err = f.svc.Accept(guest("guest@example.com"), invite.Code)
	assert.ErrorIs(t, err, domain.ErrExpired)

	mine, err := f.svc.ListForPrincipal(guest("guest@example.com"))
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestUpdateReplacesInvitation(t *testing.T) {
	f := newFixture(t)
	invite, err := f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "guest@example.com"})
	require.NoError(t, err)

	updated, err := f.svc.Update(admin(), orgID, invite.ID, domain.UpdateRequest{
		Permissions: []string{string(permission.CreatePersonalAPIKeys)},
	})
	require.NoError(t, err)
	assert.NotEqual(t, invite.ID, updated.ID)
	assert.NotEqual(t, invite.Code, updated.Code)
	assert.Equal(t, []string{"CREATE_PERSONAL_API_KEYS"}, updated.Permissions)

	_, err = f.svc.Accept(guest("guest@example.com"), invite.Code)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Update(admin(), orgID, invite.ID, domain.UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Update(admin(), orgID, "abc", domain.UpdateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestRevokeAndDecline(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "a@example.com"})
	require.NoError(t, err)
	second, err := f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "b@example.com"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(admin(), orgID, first.ID))
	assert.ErrorIs(t, f.svc.Revoke(admin(), orgID, first.ID), domain.ErrNotFound)

	assert.ErrorIs(t, f.svc.Decline(guest("a@example.com"), second.Code), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Decline(guest("b@example.com"), "not-a-code"), domain.ErrInvalidCode)
	require.NoError(t, f.svc.Decline(guest("b@example.com"), second.Code))

	list, err := f.svc.ListForOrganization(admin(), orgID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInvitationRequiresManagePermission(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	require.NoError(t, f.members.AddMember(context.Background(), orgdomain.OrganizationMember{
		ID:          101,
		OrgID:       orgID,
		UserID:      guestID,
		Email:       "reader@example.com",
		Permissions: datatypes.NewJSONSlice([]string{string(permission.ReadOrganizationMembers)}),
		Accepted:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
	reader := guest("reader@example.com")

	_, err := f.svc.Create(reader, orgID, domain.CreateRequest{Email: "x@example.com"})
	assert.ErrorIs(t, err, authorization.ErrInsufficientPermission)

	_, err = f.svc.ListForOrganization(reader, orgID)
	require.NoError(t, err)

	outsider := identity.WithPrincipal(context.Background(), identity.Principal{ID: 77, Email: "o@example.com"})
	_, err = f.svc.ListForOrganization(outsider, orgID)
	assert.ErrorIs(t, err, authorization.ErrNotAMember)

	_, err = f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "not an email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "X <x@example.com>"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Create(admin(), orgID, domain.CreateRequest{Email: "x@example.com", Permissions: []string{"ROOT"}})
	assert.ErrorIs(t, err, permission.ErrInvalidPermission)
}
