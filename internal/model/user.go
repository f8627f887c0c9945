package model

// Role values carried by users and sessions.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a person reference as embedded in tasks, projects and logs.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
