package service

import (
	"context"

	"github.com/stepauth/stepauth/pkg/mfasdk"
)

// Provider is what the orchestrator needs from the remote auth provider.
// *mfasdk.Client satisfies it; tests substitute fakes.
type Provider interface {
	Challenge(ctx context.Context, username, email, phone, authType string) (*mfasdk.Response, error)
	Validate(ctx context.Context, username, txID, token, authType string, answers map[string]string) (*mfasdk.Response, error)
	Register(ctx context.Context, r mfasdk.RegisterRequest) (*mfasdk.Response, error)
	RegistrationStatus(ctx context.Context, txID string) (*mfasdk.Response, error)
	AuthStatus(ctx context.Context, txID string) (*mfasdk.Response, error)
	GoogleAuthSecret(ctx context.Context, username, authenticatorName string) (*mfasdk.Response, error)

	CreateUser(ctx context.Context, username, email, phone string) error
	SearchUser(ctx context.Context, username string) (*mfasdk.UserResult, bool, error)
	DeleteUser(ctx context.Context, username string) error
	EnableUser(ctx context.Context, username string) error
	DisableUser(ctx context.Context, username string) error
	FetchLicense(ctx context.Context) (*mfasdk.License, error)
}

var _ Provider = (*mfasdk.Client)(nil)
