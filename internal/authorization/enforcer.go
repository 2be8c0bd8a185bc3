package authorization

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// NewEnforcer builds the action policy. Policies are persisted through the
// gorm adapter when configured and kept in memory otherwise.
func NewEnforcer(cfg config.Config, db *gorm.DB, log *zap.Logger) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load authorization model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.Authorization.PersistPolicies && db != nil {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, fmt.Errorf("create policy adapter: %w", err)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	}

	if err := seedPolicies(enforcer); err != nil {
		return nil, fmt.Errorf("seed policies: %w", err)
	}
	if log != nil {
		log.Named("authorization").Debug("authorization policy ready",
			zap.Bool("persisted", cfg.Authorization.PersistPolicies),
		)
	}
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{subjectMember, ObjectOrganization, ActionOrganizationView},
		{string(permission.ManageOrganizationSettings), ObjectOrganization, ActionOrganizationDelete},

		{string(permission.ReadOrganizationMembers), ObjectMember, ActionMemberList},
		{string(permission.ManageOrganizationMembers), ObjectMember, ActionMemberUpdate},
		{string(permission.ManageOrganizationMembers), ObjectMember, ActionMemberRemove},

		{string(permission.ReadOrganizationMembers), ObjectInvitation, ActionInvitationList},
		{string(permission.ManageOrganizationMembers), ObjectInvitation, ActionInvitationCreate},
		{string(permission.ManageOrganizationMembers), ObjectInvitation, ActionInvitationUpdate},
		{string(permission.ManageOrganizationMembers), ObjectInvitation, ActionInvitationRevoke},

		// Members always see and delete their own credentials.
		{subjectMember, ObjectAPIToken, ActionAPITokenView},
		{subjectMember, ObjectAPIToken, ActionAPITokenDelete},
		{string(permission.CreatePersonalAPIKeys), ObjectAPIToken, ActionAPITokenCreate},

		{string(permission.ReadOrganizationSettings), ObjectAuditLog, ActionAuditLogView},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	// A manage flag implies the matching read flag.
	implied := [][2]permission.Permission{
		{permission.ManageOrganizationMembers, permission.ReadOrganizationMembers},
		{permission.ManageOrganizationSettings, permission.ReadOrganizationSettings},
		{permission.ManageOrganizationFiles, permission.ReadOrganizationFiles},
		{permission.WriteBilling, permission.ReadBilling},
	}
	for _, link := range implied {
		if _, err := enforcer.AddGroupingPolicy(string(link[0]), string(link[1])); err != nil {
			return err
		}
	}
	return nil
}
