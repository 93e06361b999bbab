package notify

import (
	"context"

	"github.com/contractflow/contractflow/internal/models"
)

// Notifier sends user-facing mail. Implementations must be safe for
// concurrent use; callers fire sends after commit and never depend on the
// outcome.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, fullName, code string) error
	SendPasswordReset(ctx context.Context, email, fullName, token string) error
	SendInvitation(ctx context.Context, email, orgName string, role models.Role, token string) error
	SendInvitationCancelled(ctx context.Context, email, orgName string) error
	SendMemberRemoved(ctx context.Context, email, orgName string) error
	SendRoleChanged(ctx context.Context, email, orgName string, newRole models.Role) error
	SendContractActivated(ctx context.Context, email, contractTitle string) error
	SendWelcome(ctx context.Context, email, fullName string) error
}

// Discard is a Notifier that silently drops every message. Used in tests
// and when no mail transport is configured.
type Discard struct{}

func (Discard) SendVerificationCode(context.Context, string, string, string) error { return nil }

func (Discard) SendPasswordReset(context.Context, string, string, string) error { return nil }

func (Discard) SendInvitation(context.Context, string, string, models.Role, string) error {
	return nil
}

func (Discard) SendInvitationCancelled(context.Context, string, string) error { return nil }

func (Discard) SendMemberRemoved(context.Context, string, string) error { return nil }

func (Discard) SendRoleChanged(context.Context, string, string, models.Role) error { return nil }

func (Discard) SendContractActivated(context.Context, string, string) error { return nil }

func (Discard) SendWelcome(context.Context, string, string) error { return nil }
