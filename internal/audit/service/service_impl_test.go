package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/audit/domain"
	"github.com/smallbiznis/orgkeys/internal/audit/repository"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/dbtest"
	"github.com/smallbiznis/orgkeys/internal/identity"
	obscontext "github.com/smallbiznis/orgkeys/internal/observability/context"
	"github.com/smallbiznis/orgkeys/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    dbtest.Open(t),
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  repository.Provide(),
		Clock: clk,
	})
	return svc, clk
}

func TestAuditLogResolvesActorAndScrubsMetadata(t *testing.T) {
	svc, _ := newTestService(t)
	orgID := snowflake.ID(42)

	ctx := identity.WithPrincipal(context.Background(), identity.Principal{ID: 7, Email: "a@example.com"})
	ctx = obscontext.WithRequestID(ctx, "req-1")
	ctx = obscontext.WithClient(ctx, "10.0.0.1", "curl/8")

	target := "99"
	require.NoError(t, svc.AuditLog(ctx, &orgID, "", nil, domain.ActionAPITokenCreated, "api_token", &target, map[string]any{
		"token":        "eyJhbGciOi.secret.sig",
		"token_suffix": "abcd",
	}))

	resp, err := svc.List(context.Background(), orgID, domain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, string(domain.ActorTypeUser), entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "7", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "abcd", entry.Metadata["token_suffix"])
	assert.NotEqual(t, "eyJhbGciOi.secret.sig", entry.Metadata["token"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
}

func TestAuditLogSystemActorAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	orgID := snowflake.ID(42)

	require.NoError(t, svc.AuditLog(context.Background(), &orgID, "", nil, domain.ActionOrganizationDeleted, "", nil, nil))
	resp, err := svc.List(context.Background(), orgID, domain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, string(domain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)

	assert.ErrorIs(t, svc.AuditLog(context.Background(), &orgID, "", nil, " ", "x", nil, nil), domain.ErrInvalidAction)

	_, err = svc.List(context.Background(), 0, domain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, clk := newTestService(t)
	orgID := snowflake.ID(42)
	other := snowflake.ID(43)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AuditLog(context.Background(), &orgID, "", nil, domain.ActionInvitationCreated, "invitation", nil, nil))
		clk.Advance(time.Second)
	}
	require.NoError(t, svc.AuditLog(context.Background(), &orgID, "", nil, domain.ActionMemberRemoved, "organization_member", nil, nil))
	require.NoError(t, svc.AuditLog(context.Background(), &other, "", nil, domain.ActionInvitationCreated, "invitation", nil, nil))

	req := domain.ListAuditLogRequest{Action: domain.ActionInvitationCreated}
	req.PageSize = 2

	var seen []domain.AuditLog
	for page := 0; page < 5; page++ {
		resp, err := svc.List(context.Background(), orgID, req)
		require.NoError(t, err)
		seen = append(seen, resp.AuditLogs...)
		if !resp.HasMore {
			assert.Empty(t, resp.NextPageToken)
			break
		}
		req.PageToken = resp.NextPageToken
	}

	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i-1].CreatedAt.After(seen[i].CreatedAt))
	}
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)

	req := domain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "garbage"}}
	_, err := svc.List(context.Background(), 42, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)

	start := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.List(context.Background(), 42, domain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}
