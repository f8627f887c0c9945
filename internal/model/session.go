package model

import "fmt"

// Session is the authenticated identity record that survives restarts.
type Session struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"name" db:"username"`
	Email    string `json:"email" db:"email"`
	Role     string `json:"role" db:"role"`
}

// IsAdmin reports whether the session belongs to an administrator.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupInput is the body of POST /auth/signup.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Validate checks that the signup form carries every required field.
func (in SignupInput) Validate() error {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return fmt.Errorf("name, email and password are required")
	}
	return nil
}
