// Package permission enumerates the organization-scoped actions a member may be granted.
package permission

import (
	"errors"
	"slices"
	"strings"
)

type Permission string

const (
	ReadOrganizationMembers    Permission = "READ_ORGANIZATION_MEMBERS"
	ManageOrganizationMembers  Permission = "MANAGE_ORGANIZATION_MEMBERS"
	ReadOrganizationSettings   Permission = "READ_ORGANIZATION_SETTINGS"
	ManageOrganizationSettings Permission = "MANAGE_ORGANIZATION_SETTINGS"
	ReadOrganizationFiles      Permission = "READ_ORGANIZATION_FILES"
	ManageOrganizationFiles    Permission = "MANAGE_ORGANIZATION_FILES"
	ReadBilling                Permission = "READ_BILLING"
	WriteBilling               Permission = "WRITE_BILLING"
	CreatePersonalAPIKeys      Permission = "CREATE_PERSONAL_API_KEYS"
)

var ErrInvalidPermission = errors.New("invalid_permission")

var all = []Permission{
	ReadOrganizationMembers,
	ManageOrganizationMembers,
	ReadOrganizationSettings,
	ManageOrganizationSettings,
	ReadOrganizationFiles,
	ManageOrganizationFiles,
	ReadBilling,
	WriteBilling,
	CreatePersonalAPIKeys,
}

// All returns the full permission set granted to an organization's creator.
func All() []string {
	out := make([]string, len(all))
	for i, p := range all {
		out[i] = string(p)
	}
	return out
}

func IsValid(value string) bool {
	return slices.Contains(all, Permission(strings.ToUpper(strings.TrimSpace(value))))
}

// Normalize validates and de-duplicates a permission set. An empty set is allowed.
func Normalize(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		p := strings.ToUpper(strings.TrimSpace(value))
		if !IsValid(p) {
			return nil, ErrInvalidPermission
		}
		if slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func Has(granted []string, required Permission) bool {
	return slices.Contains(granted, string(required))
}
