package permission

import (
	"testing"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestForRole(t *testing.T) {
	t.Run("admin holds all capabilities", func(t *testing.T) {
		set := ForRole(models.RoleAdmin)
		for _, p := range []Permission{ViewMembers, InviteMembers, RemoveMembers, EditOrganization, ManageContracts} {
			require.True(t, Has(set, p))
		}
	})

	t.Run("editor can view members and manage contracts only", func(t *testing.T) {
		set := ForRole(models.RoleEditor)
		require.True(t, Has(set, ViewMembers))
		require.True(t, Has(set, ManageContracts))
		require.False(t, Has(set, InviteMembers))
		require.False(t, Has(set, RemoveMembers))
		require.False(t, Has(set, EditOrganization))
	})

	t.Run("viewer can only view members", func(t *testing.T) {
		set := ForRole(models.RoleViewer)
		require.True(t, Has(set, ViewMembers))
		require.False(t, Has(set, InviteMembers))
		require.False(t, Has(set, RemoveMembers))
		require.False(t, Has(set, EditOrganization))
		require.False(t, Has(set, ManageContracts))
	})

	t.Run("unknown role holds nothing", func(t *testing.T) {
		set := ForRole(models.Role("intern"))
		require.Equal(t, Permission(0), set)
		require.False(t, Has(set, ViewMembers))
	})
}

func TestRoleHas(t *testing.T) {
	require.True(t, RoleHas(models.RoleAdmin, RemoveMembers))
	require.False(t, RoleHas(models.RoleViewer, RemoveMembers))
}
