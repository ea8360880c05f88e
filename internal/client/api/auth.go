package api

import (
	"context"
	"net/http"

	"medilink/internal/shared/models"
)

// LoginResult is the backend's answer to a credential login: the assigned
// role, the stable user id and a provider custom token to establish the
// identity-provider session with.
type LoginResult struct {
	Message string      `json:"message"`
	Role    models.Role `json:"role"`
	UserID  string      `json:"userId"`
	Token   string      `json:"token"`
}

type RegisterResult struct {
	Message string      `json:"message"`
	Role    models.Role `json:"role"`
	UserID  string      `json:"userId"`
}

// Registration is the patient self-registration payload.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// MeResult is the authenticated profile lookup.
type MeResult struct {
	UserID  string          `json:"userId"`
	Email   string          `json:"email"`
	Role    models.Role     `json:"role"`
	Profile *models.Profile `json:"profile,omitempty"`
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &res)
	return res, err
}

func (c *Client) Register(ctx context.Context, reg Registration) (RegisterResult, error) {
	var res RegisterResult
	err := c.do(ctx, http.MethodPost, "/auth/register", reg, &res)
	return res, err
}

// GoogleLogin exchanges a provider ID token for a role assignment.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, http.MethodPost, "/auth/google-login",
		map[string]string{"idToken": idToken}, &res)
	return res, err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password",
		map[string]string{"email": email}, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-otp",
		map[string]string{"email": email, "otp": otp}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password",
		map[string]string{"email": email, "newPassword": newPassword}, nil)
}

func (c *Client) Me(ctx context.Context) (MeResult, error) {
	var res MeResult
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &res)
	return res, err
}
