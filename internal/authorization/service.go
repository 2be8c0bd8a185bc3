package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
	orgdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
)

const (
	ObjectOrganization = "organization"
	ObjectMember       = "member"
	ObjectInvitation   = "invitation"
	ObjectAPIToken     = "api_token"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionOrganizationView   = "organization.view"
	ActionOrganizationDelete = "organization.delete"

	ActionMemberList   = "member.list"
	ActionMemberUpdate = "member.update"
	ActionMemberRemove = "member.remove"

	ActionInvitationList   = "invitation.list"
	ActionInvitationCreate = "invitation.create"
	ActionInvitationUpdate = "invitation.update"
	ActionInvitationRevoke = "invitation.revoke"

	ActionAPITokenView   = "api_token.view"
	ActionAPITokenCreate = "api_token.create"
	ActionAPITokenDelete = "api_token.delete"

	ActionAuditLogView = "audit_log.view"
)

// subjectMember is granted to every accepted member regardless of flags.
const subjectMember = "member"

type Service interface {
	// AuthorizeMembership requires an accepted membership holding required.
	AuthorizeMembership(ctx context.Context, principalID, orgID snowflake.ID, required permission.Permission) (*orgdomain.OrganizationMember, error)
	// AuthorizeLeave decides whether principalID may remove targetUserID.
	AuthorizeLeave(ctx context.Context, principalID, orgID, targetUserID snowflake.ID) (*orgdomain.OrganizationMember, error)
	// AuthorizeCredential checks a verified credential's scope set. It does not touch the store.
	AuthorizeCredential(decoded *credentialdomain.Decoded, required scope.Scope) error
	// AuthorizeAction resolves the permissions that grant (object, action) from the policy.
	AuthorizeAction(ctx context.Context, principalID, orgID snowflake.ID, object, action string) (*orgdomain.OrganizationMember, error)
}

var (
	ErrNotAMember             = errors.New("not_a_member")
	ErrInsufficientPermission = errors.New("insufficient_permission")
	ErrInsufficientScope      = errors.New("insufficient_scope")
	ErrLastMember             = errors.New("last_member")

	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
)

// Reason renders a denial for API callers.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotAMember):
		return "You are not a member of this organization"
	case errors.Is(err, ErrInsufficientPermission):
		return "You do not have permission to perform this action"
	case errors.Is(err, ErrInsufficientScope):
		return "The credential does not grant access to this service"
	case errors.Is(err, ErrLastMember):
		return "You are the last member of this organization; delete it instead"
	default:
		return ""
	}
}
