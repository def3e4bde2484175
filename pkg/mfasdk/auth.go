package mfasdk

import "context"

// Challenge asks the provider to issue a second-factor challenge for the
// user with the given auth type (OTP dispatch, push, QR, KBA question
// selection). The returned transaction ID tracks the challenge.
func (c *Client) Challenge(ctx context.Context, username, email, phone, authType string) (*Response, error) {
	req := challengeRequest{
		CustomerKey:     c.customerKey,
		Username:        username,
		Email:           email,
		Phone:           phone,
		AuthType:        authType,
		TransactionName: "login",
	}
	var resp Response
	if err := c.post(ctx, "challenge", "/auth/challenge", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate submits the user's code or KBA answers against a pending
// challenge transaction.
func (c *Client) Validate(ctx context.Context, username, txID, token, authType string, answers map[string]string) (*Response, error) {
	req := validateRequest{
		CustomerKey: c.customerKey,
		Username:    username,
		TxID:        txID,
		Token:       token,
		AuthType:    authType,
		Answers:     answers,
	}
	var resp Response
	if err := c.post(ctx, "validate", "/auth/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register starts a provider-side method registration (TOTP pairing, QR
// pairing, push enrollment, KBA answers, hardware token binding).
func (c *Client) Register(ctx context.Context, r RegisterRequest) (*Response, error) {
	req := registerRequest{
		CustomerKey:       c.customerKey,
		Username:          r.Username,
		RegistrationType:  r.RegistrationType,
		Secret:            r.Secret,
		OTPToken:          r.OTPToken,
		AuthenticatorType: r.AuthenticatorType,
		QuestionAnswers:   r.QuestionAnswers,
	}
	var resp Response
	if err := c.post(ctx, "register", "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegistrationStatus polls a pending registration transaction.
func (c *Client) RegistrationStatus(ctx context.Context, txID string) (*Response, error) {
	var resp Response
	err := c.post(ctx, "registration-status", "/auth/registration-status",
		txRequest{CustomerKey: c.customerKey, TxID: txID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuthStatus polls a pending out-of-band challenge transaction (push and
// QR-style methods the user approves on their device).
func (c *Client) AuthStatus(ctx context.Context, txID string) (*Response, error) {
	var resp Response
	err := c.post(ctx, "auth-status", "/auth/auth-status",
		txRequest{CustomerKey: c.customerKey, TxID: txID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GoogleAuthSecret fetches a fresh TOTP secret and QR payload for
// authenticator-app pairing.
func (c *Client) GoogleAuthSecret(ctx context.Context, username, authenticatorName string) (*Response, error) {
	req := googleAuthSecretRequest{
		CustomerKey:       c.customerKey,
		Username:          username,
		AuthenticatorName: authenticatorName,
	}
	var resp Response
	if err := c.post(ctx, "google-auth-secret", "/auth/google-auth-secret", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
