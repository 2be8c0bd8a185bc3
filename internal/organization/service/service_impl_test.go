package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepository "github.com/smallbiznis/orgkeys/internal/audit/repository"
	auditservice "github.com/smallbiznis/orgkeys/internal/audit/service"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/config"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
	credentialrepository "github.com/smallbiznis/orgkeys/internal/credential/repository"
	"github.com/smallbiznis/orgkeys/internal/dbtest"
	"github.com/smallbiznis/orgkeys/internal/identity"
	invitationdomain "github.com/smallbiznis/orgkeys/internal/invitation/domain"
	invitationrepository "github.com/smallbiznis/orgkeys/internal/invitation/repository"
	"github.com/smallbiznis/orgkeys/internal/organization/domain"
	"github.com/smallbiznis/orgkeys/internal/organization/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	repo  domain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	node := dbtest.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	repo := repository.NewRepository(db)
	enforcer, err := authorization.NewEnforcer(config.Config{}, nil, log)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Members: repo, Enforcer: enforcer})

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Repo:        repo,
		Credentials: credentialrepository.Provide(),
		Invitations: invitationrepository.Provide(),
		Authz:       authz,
		Clock:       clk,
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB: db, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: clk,
		}),
	})
	return &fixture{svc: svc, db: db, node: node, clock: clk, repo: repo}
}

func as(userID snowflake.ID) context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{ID: userID, Email: "owner@example.com"})
}

func (f *fixture) join(t *testing.T, orgID, userID snowflake.ID, perms ...permission.Permission) {
	t.Helper()
	granted := []string{}
	for _, p := range perms {
		granted = append(granted, string(p))
	}
	now := f.clock.Now()
	require.NoError(t, f.repo.AddMember(context.Background(), domain.OrganizationMember{
		ID:          f.node.Generate(),
		OrgID:       orgID,
		UserID:      userID,
		Email:       "member@example.com",
		Permissions: datatypes.NewJSONSlice(granted),
		Accepted:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

func (f *fixture) issueCredential(t *testing.T, orgID, userID snowflake.ID, hash string) {
	t.Helper()
	require.NoError(t, credentialrepository.Provide().Insert(context.Background(), f.db, &credentialdomain.APIToken{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Name:      "k",
		TokenHash: hash,
		Suffix:    "abcd",
		Scopes:    datatypes.NewJSONSlice([]string{"SERVICE_OCR"}),
		CreatedAt: f.clock.Now(),
	}))
}

func (f *fixture) count(t *testing.T, table string, orgID snowflake.ID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Where("org_id = ?", orgID).Count(&n).Error)
	return n
}

func TestCreateGrantsCreatorAllPermissions(t *testing.T) {
	f := newFixture(t)
	const owner snowflake.ID = 10

	org, err := f.svc.Create(as(owner), domain.CreateOrganizationRequest{Name: "Acme Labs"})
	require.NoError(t, err)
	assert.Equal(t, "acme-labs", org.Slug)

	orgID, err := snowflake.ParseString(org.ID)
	require.NoError(t, err)
	member, err := f.repo.FindMembership(context.Background(), orgID, owner)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.True(t, member.Accepted)
	assert.ElementsMatch(t, permission.All(), []string(member.Permissions))

	second, err := f.svc.Create(as(owner), domain.CreateOrganizationRequest{Name: "Acme Labs"})
	require.NoError(t, err)
	assert.NotEqual(t, org.Slug, second.Slug)

	list, err := f.svc.ListForUser(as(owner))
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.Create(as(owner), domain.CreateOrganizationRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestGetRequiresMembership(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)

	got, err := f.svc.Get(as(10), orgID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)

	_, err = f.svc.Get(as(99), orgID)
	assert.ErrorIs(t, err, authorization.ErrNotAMember)
}

func TestMembershipWithoutPermissionsCannotManageMembers(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)
	f.join(t, orgID, 11)

	_, err = f.svc.UpdateMemberPermissions(as(11), orgID, 10, domain.UpdateMemberRequest{Permissions: []string{}})
	assert.ErrorIs(t, err, authorization.ErrInsufficientPermission)

	_, err = f.svc.ListMembers(as(11), orgID)
	assert.ErrorIs(t, err, authorization.ErrInsufficientPermission)

	err = f.svc.RemoveMember(as(11), orgID, 10)
	assert.ErrorIs(t, err, authorization.ErrInsufficientPermission)

	owner, err := f.repo.FindMembership(context.Background(), orgID, 10)
	require.NoError(t, err)
	assert.Len(t, owner.Permissions, len(permission.All()))
	assert.Equal(t, int64(2), f.count(t, "organization_members", orgID))
}

func TestUpdateMemberPermissions(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)
	f.join(t, orgID, 11)

	updated, err := f.svc.UpdateMemberPermissions(as(10), orgID, 11, domain.UpdateMemberRequest{
		Permissions: []string{"read_organization_members", "READ_ORGANIZATION_MEMBERS"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"READ_ORGANIZATION_MEMBERS"}, updated.Permissions)

	members, err := f.svc.ListMembers(as(11), orgID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = f.svc.UpdateMemberPermissions(as(10), orgID, 11, domain.UpdateMemberRequest{Permissions: []string{"ROOT"}})
	assert.ErrorIs(t, err, permission.ErrInvalidPermission)

	_, err = f.svc.UpdateMemberPermissions(as(10), orgID, 12345, domain.UpdateMemberRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeaveOrganization(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)

	err = f.svc.RemoveMember(as(10), orgID, 10)
	assert.ErrorIs(t, err, authorization.ErrLastMember)
	assert.Equal(t, int64(1), f.count(t, "organization_members", orgID))

	// A member with no permission flags may still leave.
	f.join(t, orgID, 11)
	require.NoError(t, f.svc.RemoveMember(as(11), orgID, 11))
	assert.Equal(t, int64(1), f.count(t, "organization_members", orgID))

	f.join(t, orgID, 12)
	require.NoError(t, f.svc.RemoveMember(as(10), orgID, 10))
	assert.Equal(t, int64(1), f.count(t, "organization_members", orgID))
}

func TestConcurrentLeaveKeepsOneMember(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)
	f.join(t, orgID, 11)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, userID := range []snowflake.ID{10, 11} {
		wg.Add(1)
		go func(i int, userID snowflake.ID) {
			defer wg.Done()
			<-start
			errs[i] = f.svc.RemoveMember(as(userID), orgID, userID)
		}(i, userID)
	}
	close(start)
	wg.Wait()

	var left, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			left++
		case assert.ErrorIs(t, err, authorization.ErrLastMember):
			refused++
		}
	}
	assert.Equal(t, 1, left)
	assert.Equal(t, 1, refused)
	assert.Equal(t, int64(1), f.count(t, "organization_members", orgID))
}

func TestRemoveMemberDeletesTheirCredentials(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)
	f.join(t, orgID, 11, permission.CreatePersonalAPIKeys)
	f.issueCredential(t, orgID, 11, "hash-member")
	f.issueCredential(t, orgID, 10, "hash-owner")

	require.NoError(t, f.svc.RemoveMember(as(10), orgID, 11))

	var remaining []string
	require.NoError(t, f.db.Table("api_tokens").Where("org_id = ?", orgID).Pluck("token_hash", &remaining).Error)
	assert.Equal(t, []string{"hash-owner"}, remaining)

	err = f.svc.RemoveMember(as(10), orgID, 11)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	org, err := f.svc.Create(as(10), domain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)
	orgID, _ := snowflake.ParseString(org.ID)
	f.join(t, orgID, 11, permission.ReadOrganizationSettings)
	f.issueCredential(t, orgID, 10, "hash-1")
	require.NoError(t, invitationrepository.Provide().Insert(context.Background(), f.db, &invitationdomain.Invitation{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		Email:     "new@example.com",
		Code:      "01J00000000000000000000000",
		InvitedBy: 10,
		ExpiresAt: f.clock.Now().Add(time.Hour),
		CreatedAt: f.clock.Now(),
	}))

	err = f.svc.Delete(as(11), orgID)
	assert.ErrorIs(t, err, authorization.ErrInsufficientPermission)
	assert.Equal(t, int64(1), f.count(t, "api_tokens", orgID))

	require.NoError(t, f.svc.Delete(as(10), orgID))
	for _, table := range []string{"organization_members", "organization_invites", "api_tokens"} {
		assert.Zero(t, f.count(t, table, orgID), table)
	}
	_, err = f.svc.Get(as(10), orgID)
	assert.ErrorIs(t, err, authorization.ErrNotAMember)
}
