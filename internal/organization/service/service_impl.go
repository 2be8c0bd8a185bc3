package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/orgkeys/internal/audit/domain"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	"github.com/smallbiznis/orgkeys/internal/clock"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
	"github.com/smallbiznis/orgkeys/internal/identity"
	invitationdomain "github.com/smallbiznis/orgkeys/internal/invitation/domain"
	"github.com/smallbiznis/orgkeys/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Credentials credentialdomain.Repository
	Invitations invitationdomain.Repository
	Authz       authorization.Service
	Clock       clock.Clock
	AuditSvc    auditdomain.Service `optional:"true"`
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	credentials credentialdomain.Repository
	invitations invitationdomain.Repository
	authz       authorization.Service
	clock       clock.Clock
	auditSvc    auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("organization.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		credentials: p.Credentials,
		invitations: p.Invitations,
		authz:       p.Authz,
		clock:       p.Clock,
		auditSvc:    p.AuditSvc,
	}
}

// Create makes the organization and grants its creator every permission in one transaction.
func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	orgID := s.genID.Generate()
	orgSlug, err := s.uniqueSlug(ctx, name, orgID)
	if err != nil {
		return nil, err
	}
	org := domain.Organization{
		ID:        orgID,
		Name:      name,
		Slug:      orgSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, domain.OrganizationMember{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			UserID:      principal.ID,
			Email:       principal.Email,
			Permissions: datatypes.NewJSONSlice(permission.All()),
			Accepted:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, orgID, auditdomain.ActionOrganizationCreated, "organization", orgID.String(), map[string]any{
		"name": name,
		"slug": orgSlug,
	})
	return toOrganizationResponse(&org), nil
}

func (s *service) ListForUser(ctx context.Context) ([]domain.OrganizationListResponseItem, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:          item.ID.String(),
			Name:        item.Name,
			Slug:        item.Slug,
			Permissions: nonNil(item.Permissions),
			CreatedAt:   item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID) (*domain.OrganizationResponse, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectOrganization, authorization.ActionOrganizationView); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return toOrganizationResponse(org), nil
}

// Delete removes the organization with its memberships, invitations and credentials.
func (s *service) Delete(ctx context.Context, orgID snowflake.ID) error {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectOrganization, authorization.ActionOrganizationDelete); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.credentials.DeleteByOrganization(ctx, tx, orgID); err != nil {
			return err
		}
		if err := s.invitations.DeleteByOrganization(ctx, tx, orgID); err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteMembers(ctx, orgID); err != nil {
			return err
		}
		return repo.DeleteOrganization(ctx, orgID)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, orgID, auditdomain.ActionOrganizationDeleted, "organization", orgID.String(), nil)
	return nil
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberResponse, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectMember, authorization.ActionMemberList); err != nil {
		return nil, err
	}

	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.MemberResponse, 0, len(members))
	for i := range members {
		resp = append(resp, toMemberResponse(&members[i]))
	}
	return resp, nil
}

func (s *service) UpdateMemberPermissions(ctx context.Context, orgID, userID snowflake.ID, req domain.UpdateMemberRequest) (*domain.MemberResponse, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	perms, err := permission.Normalize(req.Permissions)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectMember, authorization.ActionMemberUpdate); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateMemberPermissions(ctx, orgID, userID, perms, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrNotFound
	}

	member, err := s.repo.FindMembership(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotFound
	}

	s.audit(ctx, orgID, auditdomain.ActionMemberUpdated, "organization_member", userID.String(), map[string]any{
		"permissions": perms,
	})
	resp := toMemberResponse(member)
	return &resp, nil
}

// RemoveMember also deletes the member's credentials in the organization.
func (s *service) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return err
	}
	if _, err := s.authz.AuthorizeLeave(ctx, principal.ID, orgID, userID); err != nil {
		return err
	}

	var revoked int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		removed, err := repo.RemoveMember(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if !removed {
			remaining, err := repo.FindMembership(ctx, orgID, userID)
			if err != nil {
				return err
			}
			if remaining == nil {
				return domain.ErrNotFound
			}
			return authorization.ErrLastMember
		}
		revoked, err = s.credentials.DeleteByOwner(ctx, tx, orgID, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.audit(ctx, orgID, auditdomain.ActionMemberRemoved, "organization_member", userID.String(), map[string]any{
		"self":                principal.ID == userID,
		"credentials_deleted": revoked,
	})
	return nil
}

func (s *service) uniqueSlug(ctx context.Context, name string, orgID snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	taken, err := s.repo.SlugExists(ctx, base)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	return base + "-" + strings.ToLower(orgID.Base36()), nil
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, targetType, &targetID, metadata)
}

func toOrganizationResponse(org *domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:        org.ID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		CreatedAt: org.CreatedAt,
	}
}

func toMemberResponse(member *domain.OrganizationMember) domain.MemberResponse {
	return domain.MemberResponse{
		UserID:      member.UserID.String(),
		Email:       member.Email,
		Permissions: nonNil(member.Permissions),
		Accepted:    member.Accepted,
		CreatedAt:   member.CreatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
