package service

import (
	"context"
	"testing"
	"time"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/models"
	"github.com/contractflow/contractflow/internal/notify"
	"github.com/contractflow/contractflow/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testEnv wires every service against fresh memory stores.
type testEnv struct {
	users       *memory.UserStore
	orgs        *memory.OrganizationStore
	invitations *memory.InvitationStore
	contracts   *memory.ContractStore

	authSvc     *AuthService
	orgSvc      *OrganizationService
	contractSvc *ContractService

	blacklist *auth.MemoryBlacklist
	tokens    *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenIssuer("test-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	dispatcher := notify.NewDispatcher(notify.Discard{})
	t.Cleanup(dispatcher.Stop)

	env := &testEnv{
		users:       memory.NewUserStore(),
		orgs:        memory.NewOrganizationStore(),
		invitations: memory.NewInvitationStore(),
		contracts:   memory.NewContractStore(),
		blacklist:   auth.NewMemoryBlacklist(),
		tokens:      tokens,
	}

	env.authSvc = NewAuthService(env.users, env.orgs, tokens, env.blacklist, dispatcher)
	env.orgSvc = NewOrganizationService(env.orgs, env.users, env.invitations, env.contracts, dispatcher)
	env.contractSvc = NewContractService(env.contracts, env.orgs, env.users, dispatcher)

	return env
}

// registerUser creates a verified personal account and returns it.
func (env *testEnv) registerUser(t *testing.T, email string) *models.User {
	t.Helper()
	ctx := context.Background()

	user, err := env.authSvc.Register(ctx, RegisterInput{
		Email:       email,
		Password:    "password123",
		FullName:    "Test User",
		AccountType: models.AccountTypePersonal,
	})
	require.NoError(t, err)

	require.NoError(t, env.authSvc.VerifyEmail(ctx, email, *user.VerificationCode))

	verified, err := env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	return verified
}

// registerBusiness creates a verified business account and returns the user
// and their organization ID.
func (env *testEnv) registerBusiness(t *testing.T, email, orgName string) (*models.User, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	user, err := env.authSvc.Register(ctx, RegisterInput{
		Email:            email,
		Password:         "password123",
		FullName:         "Business Owner",
		AccountType:      models.AccountTypeBusiness,
		OrganizationName: orgName,
	})
	require.NoError(t, err)
	require.NoError(t, env.authSvc.VerifyEmail(ctx, email, *user.VerificationCode))

	memberships, err := env.orgs.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)

	return user, memberships[0].OrgID
}

// addMember puts a verified user into an org with the given role.
func (env *testEnv) addMember(t *testing.T, orgID uuid.UUID, email string, role models.Role) *models.User {
	t.Helper()

	user := env.registerUser(t, email)
	require.NoError(t, env.orgs.AddMember(context.Background(), &models.OrganizationMember{
		OrgID:    orgID,
		UserID:   user.ID,
		Role:     role,
		JoinedAt: time.Now(),
	}))
	return user
}

func sampleContent(text string) models.ContractContent {
	return models.ContractContent{
		Sections: []models.Section{
			{Title: "Terms", Text: text},
		},
	}
}
