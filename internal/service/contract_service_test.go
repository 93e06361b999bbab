package service

import (
	"context"
	"testing"
	"time"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/store"
	"github.com/stretchr/testify/require"
)

func TestCreateContract(t *testing.T) {
	ctx := context.Background()

	t.Run("creates aggregate with first version", func(t *testing.T) {
		env := newTestEnv(t)
		owner := env.registerUser(t, "owner@example.com")

		contract, err := env.contractSvc.Create(ctx, owner.ID, CreateContractInput{
			Title:        "NDA with Example Corp",
			TemplateType: models.TemplateNDA,
			Content:      sampleContent("confidentiality terms"),
			Parties: []PartyInput{
				{
					Type:              models.PartyIndividual,
					ExternalName:      "Counter Party",
					ExternalEmail:     "counterparty@example.com",
					SignatureRequired: true,
				},
			},
		})
		require.NoError(t, err)
		require.Equal(t, models.StatusDraft, contract.Status)
		require.Equal(t, 1, contract.CurrentVersion)

		detail, err := env.contractSvc.Get(ctx, owner.ID, contract.ContractID)
		require.NoError(t, err)
		require.Len(t, detail.Parties, 1)
		require.Equal(t, "confidentiality terms", detail.Content.Sections[0].Text)

		version, err := env.contracts.GetVersion(ctx, contract.ContractID, 1)
		require.NoError(t, err)
		require.Equal(t, "Initial version", version.ChangeSummary)
	})

	t.Run("org scoping needs membership", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		viewer := env.addMember(t, orgID, "viewer@acme.com", models.RoleViewer)
		outsider := env.registerUser(t, "outsider@example.com")

		_, err := env.contractSvc.Create(ctx, outsider.ID, CreateContractInput{
			Title:        "Org contract",
			TemplateType: models.TemplateCustom,
			OrgID:        &orgID,
			Content:      sampleContent("x"),
		})
		require.ErrorIs(t, err, ErrForbidden)

		// Any membership suffices, viewer included.
		_, err = env.contractSvc.Create(ctx, viewer.ID, CreateContractInput{
			Title:        "Org contract",
			TemplateType: models.TemplateCustom,
			OrgID:        &orgID,
			Content:      sampleContent("x"),
		})
		require.NoError(t, err)
	})

	t.Run("representative with an internal user needs no external identity", func(t *testing.T) {
		env := newTestEnv(t)
		_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
		owner := env.registerUser(t, "owner@example.com")
		rep := env.registerUser(t, "rep@acme.com")

		_, err := env.contractSvc.Create(ctx, owner.ID, CreateContractInput{
			Title:        "Signed by a representative",
			TemplateType: models.TemplateCustom,
			Content:      sampleContent("x"),
			Parties: []PartyInput{
				{Type: models.PartyRepresentative, OrgID: &orgID, UserID: &rep.ID},
			},
		})
		require.NoError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		owner := env.registerUser(t, "owner@example.com")

		effective := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		expiration := effective.Add(-24 * time.Hour)

		cases := []struct {
			name string
			in   CreateContractInput
		}{
			{"empty title", CreateContractInput{TemplateType: models.TemplateNDA}},
			{"bad template type", CreateContractInput{Title: "T", TemplateType: "lease"}},
			{"expiration before effective", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				EffectiveDate: &effective, ExpirationDate: &expiration,
			}},
			{"party without identity", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				Parties: []PartyInput{{Type: models.PartyIndividual}},
			}},
			{"organization party without org reference", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				Parties: []PartyInput{{Type: models.PartyOrganization}},
			}},
			{"representative party without org reference", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				Parties: []PartyInput{{
					Type:          models.PartyRepresentative,
					ExternalName:  "Rep",
					ExternalEmail: "rep@example.com",
				}},
			}},
			{"external individual missing email", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				Parties: []PartyInput{{Type: models.PartyIndividual, ExternalName: "Just A Name"}},
			}},
			{"external individual missing name", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				Parties: []PartyInput{{Type: models.PartyIndividual, ExternalEmail: "nameless@example.com"}},
			}},
			{"bad party type", CreateContractInput{
				Title: "T", TemplateType: models.TemplateNDA,
				Parties: []PartyInput{{Type: "witness"}},
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := env.contractSvc.Create(ctx, owner.ID, tc.in)
				require.ErrorIs(t, err, ErrValidation)
			})
		}
	})
}

func TestContractAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
	editor := env.addMember(t, orgID, "editor@acme.com", models.RoleEditor)
	viewer := env.addMember(t, orgID, "viewer@acme.com", models.RoleViewer)
	party := env.registerUser(t, "party@example.com")
	outsider := env.registerUser(t, "outsider@example.com")

	contract, err := env.contractSvc.Create(ctx, editor.ID, CreateContractInput{
		Title:        "Org freelance agreement",
		TemplateType: models.TemplateFreelance,
		OrgID:        &orgID,
		Content:      sampleContent("scope of work"),
		Parties: []PartyInput{
			{Type: models.PartyIndividual, UserID: &party.ID},
		},
	})
	require.NoError(t, err)

	t.Run("owner sees and edits", func(t *testing.T) {
		_, err := env.contractSvc.Get(ctx, editor.ID, contract.ContractID)
		require.NoError(t, err)
		_, err = env.contractSvc.UpdateMetadata(ctx, editor.ID, contract.ContractID, MetadataPatch{
			Description: strPtr("updated"),
		})
		require.NoError(t, err)
	})

	t.Run("party sees but cannot edit", func(t *testing.T) {
		_, err := env.contractSvc.Get(ctx, party.ID, contract.ContractID)
		require.NoError(t, err)

		_, err = env.contractSvc.UpdateMetadata(ctx, party.ID, contract.ContractID, MetadataPatch{
			Description: strPtr("hijacked"),
		})
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("org viewer sees but cannot edit", func(t *testing.T) {
		_, err := env.contractSvc.Get(ctx, viewer.ID, contract.ContractID)
		require.NoError(t, err)

		_, err = env.contractSvc.AddVersion(ctx, viewer.ID, contract.ContractID, sampleContent("v2"), "edit")
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		_, err := env.contractSvc.Get(ctx, outsider.ID, contract.ContractID)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("missing contract is not found", func(t *testing.T) {
		_, err := env.contractSvc.Get(ctx, editor.ID, party.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateMetadata(t *testing.T) {
	ctx := context.Background()

	newDraft := func(t *testing.T, env *testEnv) (*models.Contract, *models.User) {
		owner := env.registerUser(t, "owner@example.com")
		contract, err := env.contractSvc.Create(ctx, owner.ID, CreateContractInput{
			Title:        "Draft agreement",
			TemplateType: models.TemplateCustom,
			Content:      sampleContent("x"),
		})
		require.NoError(t, err)
		return contract, owner
	}

	t.Run("partial patch leaves other fields alone", func(t *testing.T) {
		env := newTestEnv(t)
		contract, owner := newDraft(t, env)

		updated, err := env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			Description: strPtr("now with a description"),
		})
		require.NoError(t, err)
		require.Equal(t, "Draft agreement", updated.Title)
		require.Equal(t, "now with a description", updated.Description)
		require.Equal(t, models.StatusDraft, updated.Status)
	})

	t.Run("statuses move freely until activation", func(t *testing.T) {
		env := newTestEnv(t)
		contract, owner := newDraft(t, env)

		for _, status := range []models.ContractStatus{
			models.StatusPending,
			models.StatusRejected,
			models.StatusExpired,
			models.StatusTerminated,
			models.StatusDraft,
		} {
			_, err := env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
				Status: statusPtr(status),
			})
			require.NoError(t, err, "move to %s", status)
		}
	})

	t.Run("activation locks the status", func(t *testing.T) {
		env := newTestEnv(t)
		contract, owner := newDraft(t, env)

		_, err := env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			Status: statusPtr(models.StatusActive),
		})
		require.NoError(t, err)

		for _, status := range []models.ContractStatus{
			models.StatusDraft,
			models.StatusPending,
			models.StatusExpired,
			models.StatusTerminated,
			models.StatusRejected,
		} {
			_, err = env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
				Status: statusPtr(status),
			})
			require.ErrorIs(t, err, ErrInvalidTransition, "move to %s", status)
		}

		// Restating the current status is not a transition.
		_, err = env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			Status: statusPtr(models.StatusActive),
		})
		require.NoError(t, err)
	})

	t.Run("rejected transition alters nothing", func(t *testing.T) {
		env := newTestEnv(t)
		contract, owner := newDraft(t, env)

		active, err := env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			Status: statusPtr(models.StatusActive),
		})
		require.NoError(t, err)

		_, err = env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			Title:  strPtr("Sneaky rename"),
			Status: statusPtr(models.StatusDraft),
		})
		require.ErrorIs(t, err, ErrInvalidTransition)

		// The rejected patch changed nothing, activity stamp included.
		stored, err := env.contracts.Get(ctx, contract.ContractID)
		require.NoError(t, err)
		require.Equal(t, "Draft agreement", stored.Title)
		require.Equal(t, models.StatusActive, stored.Status)
		require.Equal(t, active.LastActivityAt, stored.LastActivityAt)
	})

	t.Run("date window validated across patch and stored values", func(t *testing.T) {
		env := newTestEnv(t)
		contract, owner := newDraft(t, env)

		effective := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		_, err := env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			EffectiveDate: &effective,
		})
		require.NoError(t, err)

		early := effective.Add(-time.Hour)
		_, err = env.contractSvc.UpdateMetadata(ctx, owner.ID, contract.ContractID, MetadataPatch{
			ExpirationDate: &early,
		})
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestAddVersion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	owner := env.registerUser(t, "owner@example.com")

	contract, err := env.contractSvc.Create(ctx, owner.ID, CreateContractInput{
		Title:        "Versioned",
		TemplateType: models.TemplateCustom,
		Content:      sampleContent("v1"),
	})
	require.NoError(t, err)

	t.Run("versions number sequentially and advance the pointer", func(t *testing.T) {
		v2, err := env.contractSvc.AddVersion(ctx, owner.ID, contract.ContractID, sampleContent("v2"), "second pass")
		require.NoError(t, err)
		require.Equal(t, 2, v2.Version)

		v3, err := env.contractSvc.AddVersion(ctx, owner.ID, contract.ContractID, sampleContent("v3"), "third pass")
		require.NoError(t, err)
		require.Equal(t, 3, v3.Version)

		stored, err := env.contracts.Get(ctx, contract.ContractID)
		require.NoError(t, err)
		require.Equal(t, 3, stored.CurrentVersion)

		// Old versions stay readable.
		v1, err := env.contractSvc.GetVersion(ctx, owner.ID, contract.ContractID, 1)
		require.NoError(t, err)
		require.Equal(t, "v1", v1.Content.Sections[0].Text)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := env.contractSvc.AddVersion(ctx, owner.ID, contract.ContractID, models.ContractContent{}, "nothing")
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := env.contractSvc.GetVersion(ctx, owner.ID, contract.ContractID, 99)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListContracts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
	editor := env.addMember(t, orgID, "editor@acme.com", models.RoleEditor)
	user := env.registerUser(t, "user@example.com")

	// Owned by user, no org.
	owned, err := env.contractSvc.Create(ctx, user.ID, CreateContractInput{
		Title: "A owned", TemplateType: models.TemplateCustom, Content: sampleContent("x"),
	})
	require.NoError(t, err)

	// Org contract where user is a party.
	viaParty, err := env.contractSvc.Create(ctx, editor.ID, CreateContractInput{
		Title: "B via party", TemplateType: models.TemplateNDA, OrgID: &orgID,
		Content: sampleContent("x"),
		Parties: []PartyInput{{Type: models.PartyIndividual, UserID: &user.ID}},
	})
	require.NoError(t, err)

	// Org contract user cannot see.
	_, err = env.contractSvc.Create(ctx, editor.ID, CreateContractInput{
		Title: "C org only", TemplateType: models.TemplateNDA, OrgID: &orgID,
		Content: sampleContent("x"),
	})
	require.NoError(t, err)

	t.Run("union of owner and party paths", func(t *testing.T) {
		got, err := env.contractSvc.List(ctx, user.ID, ListContractsInput{SortBy: store.SortByTitle})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, owned.ContractID, got[0].ContractID)
		require.Equal(t, viaParty.ContractID, got[1].ContractID)
	})

	t.Run("org member sees every org contract", func(t *testing.T) {
		got, err := env.contractSvc.List(ctx, editor.ID, ListContractsInput{})
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("org filter applies per path", func(t *testing.T) {
		got, err := env.contractSvc.List(ctx, user.ID, ListContractsInput{OrgID: &orgID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, viaParty.ContractID, got[0].ContractID)
	})

	t.Run("status filter", func(t *testing.T) {
		_, err := env.contractSvc.UpdateMetadata(ctx, user.ID, owned.ContractID, MetadataPatch{
			Status: statusPtr(models.StatusActive),
		})
		require.NoError(t, err)

		active := models.StatusActive
		got, err := env.contractSvc.List(ctx, user.ID, ListContractsInput{Status: &active})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, owned.ContractID, got[0].ContractID)
	})

	t.Run("pagination", func(t *testing.T) {
		first, err := env.contractSvc.List(ctx, editor.ID, ListContractsInput{
			SortBy: store.SortByTitle, Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, first, 1)

		rest, err := env.contractSvc.List(ctx, editor.ID, ListContractsInput{
			SortBy: store.SortByTitle, Skip: 1, Limit: 1,
		})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		require.NotEqual(t, first[0].ContractID, rest[0].ContractID)
	})
}

func TestDeleteContract(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, orgID := env.registerBusiness(t, "boss@acme.com", "Acme")
	editor := env.addMember(t, orgID, "editor@acme.com", models.RoleEditor)
	other := env.addMember(t, orgID, "other@acme.com", models.RoleEditor)

	contract, err := env.contractSvc.Create(ctx, editor.ID, CreateContractInput{
		Title: "Disposable", TemplateType: models.TemplateCustom, OrgID: &orgID,
		Content: sampleContent("x"),
	})
	require.NoError(t, err)

	t.Run("only the owner deletes", func(t *testing.T) {
		require.ErrorIs(t, env.contractSvc.Delete(ctx, other.ID, contract.ContractID), ErrForbidden)
		require.NoError(t, env.contractSvc.Delete(ctx, editor.ID, contract.ContractID))

		_, err := env.contracts.Get(ctx, contract.ContractID)
		require.Error(t, err)
	})
}

func strPtr(s string) *string { return &s }

func statusPtr(s models.ContractStatus) *models.ContractStatus { return &s }
