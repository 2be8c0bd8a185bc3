package authorization

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
	"github.com/smallbiznis/orgkeys/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Members  orgdomain.Repository
	Enforcer *casbin.SyncedEnforcer
	Metrics  *metrics.Metrics `optional:"true"`
}

// ServiceImpl never caches memberships: every check reads the store.
// Denials are counted and logged; they never write.
type ServiceImpl struct {
	log      *zap.Logger
	members  orgdomain.Repository
	enforcer *casbin.SyncedEnforcer
	metrics  *metrics.Metrics
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		members:  p.Members,
		enforcer: p.Enforcer,
		metrics:  p.Metrics,
	}
}

func (s *ServiceImpl) AuthorizeMembership(ctx context.Context, principalID, orgID snowflake.ID, required permission.Permission) (*orgdomain.OrganizationMember, error) {
	member, err := s.membership(ctx, principalID, orgID)
	if err != nil {
		return nil, err
	}
	if !permission.Has(member.Permissions, required) {
		return nil, s.deny(ErrInsufficientPermission, principalID, orgID, zap.String("permission", string(required)))
	}
	return member, nil
}

func (s *ServiceImpl) AuthorizeLeave(ctx context.Context, principalID, orgID, targetUserID snowflake.ID) (*orgdomain.OrganizationMember, error) {
	if targetUserID == 0 {
		return nil, ErrInvalidActor
	}
	if targetUserID != principalID {
		return s.AuthorizeAction(ctx, principalID, orgID, ObjectMember, ActionMemberRemove)
	}

	member, err := s.membership(ctx, principalID, orgID)
	if err != nil {
		return nil, err
	}
	others, err := s.members.CountAcceptedMembers(ctx, orgID, principalID)
	if err != nil {
		return nil, err
	}
	if others == 0 {
		return nil, s.deny(ErrLastMember, principalID, orgID)
	}
	return member, nil
}

func (s *ServiceImpl) AuthorizeCredential(decoded *credentialdomain.Decoded, required scope.Scope) error {
	if decoded == nil {
		return credentialdomain.ErrInvalidCredential
	}
	if !scope.Has(decoded.Scopes, required) {
		s.metrics.RecordDenial(ErrInsufficientScope.Error())
		s.log.Debug("credential scope denied",
			zap.String("credential_id", decoded.CredentialID.String()),
			zap.String("scope", string(required)),
		)
		return ErrInsufficientScope
	}
	return nil
}

func (s *ServiceImpl) AuthorizeAction(ctx context.Context, principalID, orgID snowflake.ID, object, action string) (*orgdomain.OrganizationMember, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return nil, ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, ErrInvalidAction
	}

	member, err := s.membership(ctx, principalID, orgID)
	if err != nil {
		return nil, err
	}

	subjects := append([]string{subjectMember}, member.Permissions...)
	for _, subject := range subjects {
		allowed, err := s.enforcer.Enforce(subject, object, action)
		if err != nil {
			return nil, err
		}
		if allowed {
			return member, nil
		}
	}
	return nil, s.deny(ErrInsufficientPermission, principalID, orgID,
		zap.String("object", object),
		zap.String("action", action),
	)
}

func (s *ServiceImpl) membership(ctx context.Context, principalID, orgID snowflake.ID) (*orgdomain.OrganizationMember, error) {
	if principalID == 0 {
		return nil, ErrInvalidActor
	}
	if orgID == 0 {
		return nil, ErrInvalidOrganization
	}
	member, err := s.members.FindMembership(ctx, orgID, principalID)
	if err != nil {
		return nil, err
	}
	if member == nil || !member.Accepted {
		return nil, s.deny(ErrNotAMember, principalID, orgID)
	}
	return member, nil
}

func (s *ServiceImpl) deny(err error, principalID, orgID snowflake.ID, fields ...zap.Field) error {
	s.metrics.RecordDenial(err.Error())
	s.log.Debug("authorization denied", append([]zap.Field{
		zap.String("reason", err.Error()),
		zap.String("principal_id", principalID.String()),
		zap.String("org_id", orgID.String()),
	}, fields...)...)
	return err
}
