// Package memory is an in-process stand-in for the remote MFA provider.
// It backs local development and tests: OTP codes are logged instead of
// sent, and authenticator-app methods run real TOTP verification so the
// pairing flow can be exercised end to end against an actual app.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/pquerna/otp/totp"

	"github.com/stepauth/stepauth/pkg/idx"
	"github.com/stepauth/stepauth/pkg/mfasdk"
)

type user struct {
	email      string
	phone      string
	enabled    bool
	totpSecret string
	answers    map[string]string
}

type challenge struct {
	username string
	code     string
	authType string
}

// Provider implements the orchestrator's provider contract entirely in
// memory. Not safe to share across processes, by construction.
type Provider struct {
	Logger *slog.Logger

	// UserLimit caps CreateUser, mimicking a licensed plan. Zero means
	// unlimited.
	UserLimit int

	// Issuer names the TOTP pairing in authenticator apps.
	Issuer string

	mu            sync.Mutex
	users         map[string]*user
	challenges    map[string]*challenge
	registrations map[string]string // txID -> username, for async registration polls
}

func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		Logger:        logger,
		Issuer:        "stepauth",
		users:         make(map[string]*user),
		challenges:    make(map[string]*challenge),
		registrations: make(map[string]string),
	}
}

func (p *Provider) Challenge(ctx context.Context, username, email, phone, authType string) (*mfasdk.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	code, err := sixDigits()
	if err != nil {
		return nil, &mfasdk.TransportError{Op: "challenge", Err: err}
	}

	txID := idx.New().String()
	p.challenges[txID] = &challenge{username: username, code: code, authType: authType}

	// The whole point of this provider: the code goes to the log, not a
	// phone.
	p.Logger.Info("memory provider issued challenge",
		"username", username, "auth_type", authType, "tx_id", txID, "code", code)

	return &mfasdk.Response{Status: mfasdk.StatusSuccess, TxID: txID, AuthType: authType}, nil
}

func (p *Provider) Validate(ctx context.Context, username, txID, token, authType string, answers map[string]string) (*mfasdk.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := p.users[username]

	// Authenticator-app codes verify against the paired secret, no tx
	// needed.
	if u != nil && u.totpSecret != "" && totp.Validate(token, u.totpSecret) {
		return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil
	}

	if u != nil && len(u.answers) > 0 && len(answers) > 0 {
		ok := true
		for q, a := range answers {
			if u.answers[q] != a {
				ok = false
				break
			}
		}
		if ok {
			return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil
		}
		return &mfasdk.Response{Status: mfasdk.StatusFailed, Message: "answers do not match"}, nil
	}

	ch := p.challenges[txID]
	if ch == nil {
		return &mfasdk.Response{Status: mfasdk.StatusError, Message: "unknown transaction"}, nil
	}
	if ch.code == token {
		delete(p.challenges, txID)
		return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil
	}
	return &mfasdk.Response{Status: mfasdk.StatusFailed, Message: "incorrect code"}, nil
}

func (p *Provider) Register(ctx context.Context, r mfasdk.RegisterRequest) (*mfasdk.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u := p.users[r.Username]
	if u == nil {
		return &mfasdk.Response{Status: mfasdk.StatusError, Message: "unknown user"}, nil
	}

	switch {
	case r.Secret != "" && r.OTPToken != "":
		if !totp.Validate(r.OTPToken, r.Secret) {
			return &mfasdk.Response{Status: mfasdk.StatusFailed, Message: "incorrect code"}, nil
		}
		u.totpSecret = r.Secret
		return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil

	case len(r.QuestionAnswers) > 0:
		u.answers = make(map[string]string, len(r.QuestionAnswers))
		for _, qa := range r.QuestionAnswers {
			u.answers[qa.Question] = qa.Answer
		}
		return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil

	default:
		// Out-of-band and hardware registrations are accepted on sight;
		// there is no device to wait for here.
		txID := idx.New().String()
		p.registrations[txID] = r.Username
		return &mfasdk.Response{Status: mfasdk.StatusSuccess, TxID: txID}, nil
	}
}

func (p *Provider) RegistrationStatus(ctx context.Context, txID string) (*mfasdk.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.registrations[txID]; ok {
		return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil
	}
	return &mfasdk.Response{Status: mfasdk.StatusError, Message: "unknown transaction"}, nil
}

func (p *Provider) AuthStatus(ctx context.Context, txID string) (*mfasdk.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Async approvals complete instantly; there is no phone to approve on.
	if _, ok := p.challenges[txID]; ok {
		delete(p.challenges, txID)
		return &mfasdk.Response{Status: mfasdk.StatusSuccess}, nil
	}
	return &mfasdk.Response{Status: mfasdk.StatusError, Message: "unknown transaction"}, nil
}

func (p *Provider) GoogleAuthSecret(ctx context.Context, username, authenticatorName string) (*mfasdk.Response, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.Issuer,
		AccountName: username,
	})
	if err != nil {
		return nil, &mfasdk.TransportError{Op: "google_auth_secret", Err: err}
	}

	return &mfasdk.Response{
		Status: mfasdk.StatusSuccess,
		Secret: key.Secret(),
		QRCode: key.URL(),
	}, nil
}

func (p *Provider) CreateUser(ctx context.Context, username, email, phone string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.UserLimit > 0 && len(p.users) >= p.UserLimit {
		return mfasdk.ErrUserLimit
	}
	if _, ok := p.users[username]; ok {
		return nil
	}
	p.users[username] = &user{email: email, phone: phone, enabled: true}
	return nil
}

func (p *Provider) SearchUser(ctx context.Context, username string) (*mfasdk.UserResult, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[username]
	if !ok {
		return nil, false, nil
	}
	return &mfasdk.UserResult{
		Status:   mfasdk.StatusSuccess,
		Username: username,
		Email:    u.email,
		Enabled:  u.enabled,
	}, true, nil
}

func (p *Provider) DeleteUser(ctx context.Context, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, username)
	return nil
}

func (p *Provider) EnableUser(ctx context.Context, username string) error {
	return p.setEnabled(username, true)
}

func (p *Provider) DisableUser(ctx context.Context, username string) error {
	return p.setEnabled(username, false)
}

func (p *Provider) setEnabled(username string, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[username]
	if !ok {
		return &mfasdk.ProviderError{Op: "user_action", Status: mfasdk.StatusError,
			Message: "user not found", HTTPStatus: 404}
	}
	u.enabled = enabled
	return nil
}

func (p *Provider) FetchLicense(ctx context.Context) (*mfasdk.License, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return &mfasdk.License{
		Status:       mfasdk.StatusSuccess,
		Plan:         "in-memory",
		UserLimit:    p.UserLimit,
		UsersCreated: len(p.users),
	}, nil
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
