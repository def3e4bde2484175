package mfasdk

import (
	"context"
	"errors"
)

// CreateUser creates a provider-side user record. The provider enforces a
// licensed user cap; hitting it returns ErrUserLimit so callers can show
// a user-limit message instead of a generic failure.
func (c *Client) CreateUser(ctx context.Context, username, email, phone string) error {
	req := userRequest{CustomerKey: c.customerKey, Username: username, Email: email, Phone: phone}
	var resp Response
	if err := c.post(ctx, "create-user", "/users/create", req, &resp); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && isUserLimitMessage(pe.Message) {
			return ErrUserLimit
		}
		return err
	}
	if resp.Status != StatusSuccess {
		if isUserLimitMessage(resp.Message) {
			return ErrUserLimit
		}
		return &ProviderError{Op: "create-user", Status: resp.Status, Message: resp.Message}
	}
	return nil
}

// SearchUser looks up a provider-side user. found is false when the
// provider has no record for the username.
func (c *Client) SearchUser(ctx context.Context, username string) (result *UserResult, found bool, err error) {
	req := userRequest{CustomerKey: c.customerKey, Username: username}
	var resp UserResult
	if err := c.post(ctx, "search-user", "/users/search", req, &resp); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.HTTPStatus == 404 {
			return nil, false, nil
		}
		return nil, false, err
	}
	if resp.Status != StatusSuccess {
		return nil, false, nil
	}
	return &resp, true, nil
}

// DeleteUser removes a provider-side user record. Used when an inline
// registration is cancelled so no orphaned vendor record lingers, and
// when an account is reset.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return c.userAction(ctx, "delete-user", "/users/delete", username)
}

// EnableUser re-enables second-factor enforcement for a provider user.
func (c *Client) EnableUser(ctx context.Context, username string) error {
	return c.userAction(ctx, "enable-user", "/users/enable", username)
}

// DisableUser disables second-factor enforcement for a provider user.
func (c *Client) DisableUser(ctx context.Context, username string) error {
	return c.userAction(ctx, "disable-user", "/users/disable", username)
}

func (c *Client) userAction(ctx context.Context, op, path, username string) error {
	req := userRequest{CustomerKey: c.customerKey, Username: username}
	var resp Response
	if err := c.post(ctx, op, path, req, &resp); err != nil {
		return err
	}
	if resp.Status != StatusSuccess {
		return &ProviderError{Op: op, Status: resp.Status, Message: resp.Message}
	}
	return nil
}

// FetchLicense returns the customer's provider-side plan and user counts.
func (c *Client) FetchLicense(ctx context.Context) (*License, error) {
	req := struct {
		CustomerKey string `json:"customerKey"`
	}{CustomerKey: c.customerKey}

	var lic License
	if err := c.post(ctx, "license", "/customer/license", req, &lic); err != nil {
		return nil, err
	}
	return &lic, nil
}
