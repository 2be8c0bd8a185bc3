package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/orgkeys/internal/audit/domain"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/smallbiznis/orgkeys/internal/identity"
	"github.com/smallbiznis/orgkeys/internal/invitation/domain"
	orgdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
	"github.com/smallbiznis/orgkeys/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Members  orgdomain.Repository
	Authz    authorization.Service
	Clock    clock.Clock
	Config   config.Config
	AuditSvc auditdomain.Service `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	members  orgdomain.Repository
	authz    authorization.Service
	clock    clock.Clock
	cfg      config.Config
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("invitation.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		members:  p.Members,
		authz:    p.Authz,
		clock:    p.Clock,
		cfg:      p.Config,
		auditSvc: p.AuditSvc,
	}
}

func (s *service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Response, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	email := identity.NormalizeEmail(req.Email)
	if !identity.ValidEmail(email) {
		return nil, domain.ErrInvalidEmail
	}
	perms, err := permission.Normalize(req.Permissions)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectInvitation, authorization.ActionInvitationCreate); err != nil {
		return nil, err
	}

	member, err := s.members.FindMembershipByEmail(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if member != nil {
		return nil, domain.ErrAlreadyMember
	}

	now := s.clock.Now().UTC()
	existing, err := s.repo.FindByOrgEmail(ctx, s.db, orgID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Expired(now) {
			return nil, domain.ErrAlreadyInvited
		}
		if _, err := s.repo.DeleteByID(ctx, s.db, existing.ID); err != nil {
			return nil, err
		}
	}

	invite := domain.Invitation{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		Email:       email,
		Permissions: datatypes.NewJSONSlice(perms),
		Code:        ulid.Make().String(),
		InvitedBy:   principal.ID,
		ExpiresAt:   now.Add(s.cfg.InvitationTTL),
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &invite); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyInvited
		}
		return nil, err
	}

	s.audit(ctx, orgID, auditdomain.ActionInvitationCreated, invite.ID.String(), map[string]any{
		"email":       email,
		"permissions": perms,
	})
	resp := toResponse(&invite)
	return &resp, nil
}

func (s *service) ListForOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.Response, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectInvitation, authorization.ActionInvitationList); err != nil {
		return nil, err
	}

	invites, err := s.repo.ListByOrganization(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(invites))
	for i := range invites {
		resp = append(resp, toResponse(&invites[i]))
	}
	return resp, nil
}

// ListForPrincipal returns the caller's pending, unexpired invitations.
func (s *service) ListForPrincipal(ctx context.Context) ([]domain.Response, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if principal.Email == "" {
		return []domain.Response{}, nil
	}

	invites, err := s.repo.ListByEmail(ctx, s.db, identity.NormalizeEmail(principal.Email))
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	resp := make([]domain.Response, 0, len(invites))
	for i := range invites {
		if invites[i].Expired(now) {
			continue
		}
		resp = append(resp, toResponse(&invites[i]))
	}
	return resp, nil
}

// Update replaces the invitation; the old code stops working.
func (s *service) Update(ctx context.Context, orgID snowflake.ID, id string, req domain.UpdateRequest) (*domain.Response, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	inviteID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	perms, err := permission.Normalize(req.Permissions)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectInvitation, authorization.ActionInvitationUpdate); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var replaced domain.Invitation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, orgID, inviteID)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrNotFound
		}
		if _, err := s.repo.DeleteByID(ctx, tx, existing.ID); err != nil {
			return err
		}
		replaced = domain.Invitation{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			Email:       existing.Email,
			Permissions: datatypes.NewJSONSlice(perms),
			Code:        ulid.Make().String(),
			InvitedBy:   principal.ID,
			ExpiresAt:   now.Add(s.cfg.InvitationTTL),
			CreatedAt:   now,
		}
		return s.repo.Insert(ctx, tx, &replaced)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, orgID, auditdomain.ActionInvitationUpdated, replaced.ID.String(), map[string]any{
		"replaces":    inviteID.String(),
		"permissions": perms,
	})
	resp := toResponse(&replaced)
	return &resp, nil
}

func (s *service) Revoke(ctx context.Context, orgID snowflake.ID, id string) error {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return err
	}
	inviteID, err := parseID(id)
	if err != nil {
		return err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectInvitation, authorization.ActionInvitationRevoke); err != nil {
		return err
	}

	existing, err := s.repo.FindByID(ctx, s.db, orgID, inviteID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}
	deleted, err := s.repo.DeleteByID(ctx, s.db, existing.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.audit(ctx, orgID, auditdomain.ActionInvitationRevoked, inviteID.String(), map[string]any{
		"email": existing.Email,
	})
	return nil
}

// Accept turns the invitation into an accepted membership. Only the invited
// email may accept; anyone else sees ErrNotFound.
func (s *service) Accept(ctx context.Context, code string) (*domain.AcceptResponse, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	invite, err := s.lookup(ctx, principal, code)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if invite.Expired(now) {
		return nil, domain.ErrExpired
	}

	perms := []string(invite.Permissions)
	if perms == nil {
		perms = []string{}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := s.members.WithTx(tx)
		existing, err := members.FindMembership(ctx, invite.OrgID, principal.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyMember
		}
		deleted, err := s.repo.DeleteByID(ctx, tx, invite.ID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		err = members.AddMember(ctx, orgdomain.OrganizationMember{
			ID:          s.genID.Generate(),
			OrgID:       invite.OrgID,
			UserID:      principal.ID,
			Email:       invite.Email,
			Permissions: datatypes.NewJSONSlice(perms),
			Accepted:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrAlreadyMember
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, invite.OrgID, auditdomain.ActionInvitationAccepted, invite.ID.String(), map[string]any{
		"permissions": perms,
	})
	return &domain.AcceptResponse{
		OrganizationID: invite.OrgID.String(),
		Permissions:    perms,
	}, nil
}

func (s *service) Decline(ctx context.Context, code string) error {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return err
	}
	invite, err := s.lookup(ctx, principal, code)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteByID(ctx, s.db, invite.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.audit(ctx, invite.OrgID, auditdomain.ActionInvitationDeclined, invite.ID.String(), nil)
	return nil
}

func (s *service) lookup(ctx context.Context, principal identity.Principal, code string) (*domain.Invitation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, err := ulid.ParseStrict(code); err != nil {
		return nil, domain.ErrInvalidCode
	}
	invite, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if invite == nil || principal.Email == "" || !strings.EqualFold(invite.Email, principal.Email) {
		return nil, domain.ErrNotFound
	}
	return invite, nil
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "invitation", &targetID, metadata)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func toResponse(invite *domain.Invitation) domain.Response {
	perms := []string(invite.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return domain.Response{
		ID:             invite.ID.String(),
		OrganizationID: invite.OrgID.String(),
		Email:          invite.Email,
		Permissions:    perms,
		Code:           invite.Code,
		InvitedBy:      invite.InvitedBy.String(),
		ExpiresAt:      invite.ExpiresAt,
		CreatedAt:      invite.CreatedAt,
	}
}
