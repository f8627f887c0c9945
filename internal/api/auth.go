package api

import (
	"context"
	"fmt"

	"github.com/nhle/taskboard/internal/model"
)

// authUser is the user object returned by login and signup. Unlike
// embedded references it uses "id" rather than "_id".
type authUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	Message string    `json:"message"`
	User    *authUser `json:"user"`
}

func (r authResponse) session() (model.Session, error) {
	if r.User == nil || r.User.ID == "" {
		return model.Session{}, errMissingUser
	}
	role := r.User.Role
	if role == "" {
		role = model.RoleUser
	}
	return model.Session{
		ID:       r.User.ID,
		Username: r.User.Name,
		Email:    r.User.Email,
		Role:     role,
	}, nil
}

// Login exchanges credentials for session cookies and returns the
// signed-in identity.
func (c *Client) Login(ctx context.Context, in model.LoginInput) (model.Session, error) {
	var resp authResponse
	if err := c.Post(ctx, "/auth/login", in, &resp); err != nil {
		return model.Session{}, fmt.Errorf("logging in: %w", err)
	}
	s, err := resp.session()
	if err != nil {
		return model.Session{}, fmt.Errorf("logging in: %w", err)
	}
	return s, nil
}

// Signup registers a new account. The server signs the new user in.
func (c *Client) Signup(ctx context.Context, in model.SignupInput) (model.Session, error) {
	if err := in.Validate(); err != nil {
		return model.Session{}, err
	}
	var resp authResponse
	if err := c.Post(ctx, "/auth/signup", in, &resp); err != nil {
		return model.Session{}, fmt.Errorf("signing up: %w", err)
	}
	s, err := resp.session()
	if err != nil {
		return model.Session{}, fmt.Errorf("signing up: %w", err)
	}
	return s, nil
}

// Logout invalidates the session on the server.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.Post(ctx, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Refresh renews the session cookies. It is the default Authenticator.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.Post(ctx, "/auth/refresh", nil, nil); err != nil {
		return fmt.Errorf("refreshing session: %w", err)
	}
	return nil
}
