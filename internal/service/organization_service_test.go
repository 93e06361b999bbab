package service

import (
	"context"
	"testing"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestResolveOrg(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit org wins for members", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		org, member, err := env.orgSvc.ResolveOrg(ctx, admin.ID, &orgID)
		require.NoError(t, err)
		require.Equal(t, orgID, org.OrgID)
		require.Equal(t, models.RoleAdmin, member.Role)
	})

	t.Run("explicit org rejected for non-members", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		outsider := env.registerUser(t, "outsider@example.com")

		_, _, err := env.orgSvc.ResolveOrg(ctx, outsider.ID, &orgID)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("falls back to earliest membership", func(t *testing.T) {
		env := newTestEnv(t)
		admin, firstOrg := env.registerBusiness(t, "boss@acme.com", "Acme")

		// Join a second org later.
		_, secondOrg := env.registerBusiness(t, "other@corp.com", "Corp")
		require.NoError(t, env.orgs.AddMember(ctx, &models.OrganizationMember{
			OrgID:    secondOrg,
			UserID:   admin.ID,
			Role:     models.RoleViewer,
			JoinedAt: time.Now().Add(time.Hour),
		}))

		org, _, err := env.orgSvc.ResolveOrg(ctx, admin.ID, nil)
		require.NoError(t, err)
		require.Equal(t, firstOrg, org.OrgID)
	})

	t.Run("no memberships", func(t *testing.T) {
		env := newTestEnv(t)
		loner := env.registerUser(t, "loner@example.com")

		_, _, err := env.orgSvc.ResolveOrg(ctx, loner.ID, nil)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInviteMember(t *testing.T) {
	ctx := context.Background()

	t.Run("admin invites", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		inv, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "New@Example.com", models.RoleEditor)
		require.NoError(t, err)
		require.Equal(t, "new@example.com", inv.Email)
		require.NotEmpty(t, inv.Token)
		require.WithinDuration(t, time.Now().Add(7*24*time.Hour), inv.ExpiresAt, time.Minute)
	})

	t.Run("viewer cannot invite", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		viewer := env.addMember(t, orgID, "viewer@acme.com", models.RoleViewer)

		_, err := env.orgSvc.InviteMember(ctx, viewer.ID, orgID, "x@example.com", models.RoleViewer)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("existing member conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		env.addMember(t, orgID, "member@acme.com", models.RoleViewer)

		_, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "member@acme.com", models.RoleEditor)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("pending invitation conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		_, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleEditor)
		require.NoError(t, err)

		_, err = env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleViewer)
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("unknown role", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		_, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.Role("owner"))
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestAcceptInvitation(t *testing.T) {
	ctx := context.Background()

	t.Run("creates membership with invited role", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		invitee := env.registerUser(t, "new@example.com")

		inv, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleEditor)
		require.NoError(t, err)

		member, err := env.orgSvc.AcceptInvitation(ctx, invitee.ID, inv.Token)
		require.NoError(t, err)
		require.Equal(t, models.RoleEditor, member.Role)
		require.Equal(t, orgID, member.OrgID)
	})

	t.Run("token is single use", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		invitee := env.registerUser(t, "new@example.com")

		inv, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleEditor)
		require.NoError(t, err)

		_, err = env.orgSvc.AcceptInvitation(ctx, invitee.ID, inv.Token)
		require.NoError(t, err)

		// Second redemption fails even after the membership is removed.
		require.NoError(t, env.orgs.RemoveMember(ctx, orgID, invitee.ID))
		_, err = env.orgSvc.AcceptInvitation(ctx, invitee.ID, inv.Token)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong email is forbidden", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		other := env.registerUser(t, "other@example.com")

		inv, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleEditor)
		require.NoError(t, err)

		_, err = env.orgSvc.AcceptInvitation(ctx, other.ID, inv.Token)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("expired invitation", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		invitee := env.registerUser(t, "new@example.com")

		inv, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleEditor)
		require.NoError(t, err)

		stored, err := env.invitations.Get(ctx, inv.ID)
		require.NoError(t, err)
		stored.ExpiresAt = time.Now().Add(-time.Hour)
		require.NoError(t, env.invitations.Delete(ctx, inv.ID))
		require.NoError(t, env.invitations.Create(ctx, stored))

		_, err = env.orgSvc.AcceptInvitation(ctx, invitee.ID, inv.Token)
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestCancelInvitation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
	_, otherOrg := env.registerBusiness(t, "other@corp.com", "Corp")

	inv, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	t.Run("wrong org reads as missing", func(t *testing.T) {
		err := env.orgSvc.CancelInvitation(ctx, admin.ID, otherOrg, inv.ID)
		require.ErrorIs(t, err, ErrForbidden) // admin is not a member of otherOrg
	})

	t.Run("cancel removes it from pending", func(t *testing.T) {
		require.NoError(t, env.orgSvc.CancelInvitation(ctx, admin.ID, orgID, inv.ID))

		pending, err := env.orgSvc.ListInvitations(ctx, admin.ID, orgID)
		require.NoError(t, err)
		require.Empty(t, pending)
	})
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()

	t.Run("admin removes a member", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		target := env.addMember(t, orgID, "member@acme.com", models.RoleViewer)

		require.NoError(t, env.orgSvc.RemoveMember(ctx, admin.ID, orgID, target.ID))

		_, err := env.orgs.GetMember(ctx, orgID, target.ID)
		require.Error(t, err)
	})

	t.Run("self-removal conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		require.ErrorIs(t, env.orgSvc.RemoveMember(ctx, admin.ID, orgID, admin.ID), ErrConflict)
	})

	t.Run("an organization never loses its last admin", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		second := env.addMember(t, orgID, "second@acme.com", models.RoleAdmin)

		// Two admins: removing one is fine.
		require.NoError(t, env.orgSvc.RemoveMember(ctx, admin.ID, orgID, second.ID))

		// The sole remaining admin cannot leave, and no other role holds
		// the remove-members capability to force them out.
		require.ErrorIs(t, env.orgSvc.RemoveMember(ctx, admin.ID, orgID, admin.ID), ErrConflict)

		editor := env.addMember(t, orgID, "editor@acme.com", models.RoleEditor)
		require.ErrorIs(t, env.orgSvc.RemoveMember(ctx, editor.ID, orgID, admin.ID), ErrForbidden)

		member, err := env.orgs.GetMember(ctx, orgID, admin.ID)
		require.NoError(t, err)
		require.Equal(t, models.RoleAdmin, member.Role)
	})

	t.Run("viewer cannot remove", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		viewer := env.addMember(t, orgID, "viewer@acme.com", models.RoleViewer)
		target := env.addMember(t, orgID, "target@acme.com", models.RoleViewer)

		require.ErrorIs(t, env.orgSvc.RemoveMember(ctx, viewer.ID, orgID, target.ID), ErrForbidden)
	})
}

func TestChangeRole(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes and demotes", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		target := env.addMember(t, orgID, "member@acme.com", models.RoleViewer)

		require.NoError(t, env.orgSvc.ChangeRole(ctx, admin.ID, orgID, target.ID, models.RoleEditor))

		member, err := env.orgs.GetMember(ctx, orgID, target.ID)
		require.NoError(t, err)
		require.Equal(t, models.RoleEditor, member.Role)
	})

	t.Run("own role is off limits", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		require.ErrorIs(t, env.orgSvc.ChangeRole(ctx, admin.ID, orgID, admin.ID, models.RoleViewer), ErrConflict)
	})

	t.Run("demoted admin loses role management", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		second := env.addMember(t, orgID, "second@acme.com", models.RoleAdmin)

		// Demote the original; second is now the only admin.
		require.NoError(t, env.orgSvc.ChangeRole(ctx, second.ID, orgID, admin.ID, models.RoleEditor))

		require.ErrorIs(t, env.orgSvc.ChangeRole(ctx, admin.ID, orgID, second.ID, models.RoleViewer), ErrForbidden)
	})

	t.Run("editor cannot change roles", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		editor := env.addMember(t, orgID, "editor@acme.com", models.RoleEditor)
		target := env.addMember(t, orgID, "target@acme.com", models.RoleViewer)

		require.ErrorIs(t, env.orgSvc.ChangeRole(ctx, editor.ID, orgID, target.ID, models.RoleEditor), ErrForbidden)
	})
}

func TestSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("sections merge independently", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		updated, err := env.orgSvc.UpdateSettings(ctx, admin.ID, orgID, SettingsPatch{
			Security: &models.SecuritySettings{RequireTwoFactor: true, SessionTimeoutMins: 30},
		})
		require.NoError(t, err)
		require.True(t, updated.Security.RequireTwoFactor)
		require.Equal(t, 30, updated.Security.SessionTimeoutMins)

		// Untouched sections keep their defaults.
		require.True(t, updated.Notifications.EmailOnInvitation)
		require.Equal(t, float64(5), updated.Storage.LimitGB)
	})

	t.Run("storage limit below usage rejected", func(t *testing.T) {
		env := newTestEnv(t)
		admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")

		org, err := env.orgs.Get(ctx, orgID)
		require.NoError(t, err)
		org.StorageUsed = 3 * bytesPerGB
		require.NoError(t, env.orgs.Update(ctx, org))

		_, err = env.orgSvc.UpdateSettings(ctx, admin.ID, orgID, SettingsPatch{
			Storage: &models.StorageSettings{LimitGB: 2},
		})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("viewer cannot update settings", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		viewer := env.addMember(t, orgID, "viewer@acme.com", models.RoleViewer)

		_, err := env.orgSvc.UpdateSettings(ctx, viewer.ID, orgID, SettingsPatch{
			Notifications: &models.NotificationSettings{},
		})
		require.ErrorIs(t, err, ErrForbidden)

		// Reading settings only needs membership.
		settings, err := env.orgSvc.GetSettings(ctx, viewer.ID, orgID)
		require.NoError(t, err)
		require.NotNil(t, settings)
	})
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	admin, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
	env.addMember(t, orgID, "editor@acme.com", models.RoleEditor)
	env.addMember(t, orgID, "viewer@acme.com", models.RoleViewer)

	_, err := env.orgSvc.InviteMember(ctx, admin.ID, orgID, "new@example.com", models.RoleViewer)
	require.NoError(t, err)

	_, err = env.contractSvc.Create(ctx, admin.ID, CreateContractInput{
		Title:        "Org NDA",
		TemplateType: models.TemplateNDA,
		OrgID:        &orgID,
		Content:      sampleContent("terms"),
	})
	require.NoError(t, err)

	stats, err := env.orgSvc.Dashboard(ctx, admin.ID, orgID)
	require.NoError(t, err)
	require.Equal(t, 3, stats.MemberCount)
	require.Equal(t, 1, stats.MembersByRole[models.RoleAdmin])
	require.Equal(t, 1, stats.MembersByRole[models.RoleEditor])
	require.Equal(t, 1, stats.MembersByRole[models.RoleViewer])
	require.Equal(t, 1, stats.PendingInvitations)
	require.Equal(t, 1, stats.TotalContracts)
	require.Equal(t, 1, stats.ContractsByStatus[models.StatusDraft])
	require.Equal(t, float64(5), stats.LimitGB)
}
