package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	out, err := Normalize([]string{" read_billing", "READ_BILLING", "CREATE_PERSONAL_API_KEYS"})
	require.NoError(t, err)
	assert.Equal(t, []string{"READ_BILLING", "CREATE_PERSONAL_API_KEYS"}, out)

	out, err = Normalize(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)

	_, err = Normalize([]string{"READ_BILLING", "ROOT"})
	assert.ErrorIs(t, err, ErrInvalidPermission)
}

func TestHas(t *testing.T) {
	granted := []string{"READ_ORGANIZATION_MEMBERS"}
	assert.True(t, Has(granted, ReadOrganizationMembers))
	assert.False(t, Has(granted, ManageOrganizationMembers))
	assert.False(t, Has(nil, ReadOrganizationMembers))
}

func TestAllCoversEnumeration(t *testing.T) {
	assert.Len(t, All(), 9)
	for _, p := range All() {
		assert.True(t, IsValid(p), p)
	}
}
