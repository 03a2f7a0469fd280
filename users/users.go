package users

import "github.com/jrsteele09/go-officehours-client/internal/utils"

// UserType is the role a user has within the office-hours service
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeTA      UserType = "ta"
	UserTypeAdmin   UserType = "admin"
)

// User is the last-known profile snapshot returned by GET /api/user-data/.
// It is a cache of server state, never a source of truth.
type User struct {
	ID        int64    `json:"id"`                   // Unique identifier for the user
	Email     string   `json:"email"`                // User's email address
	FirstName string   `json:"first_name,omitempty"` // First name of the user
	LastName  string   `json:"last_name,omitempty"`  // Last name of the user
	Type      UserType `json:"user_type"`            // student or ta
	Verified  bool     `json:"is_verified"`          // Verified, has the user confirmed their email
}

// Patch holds optional profile changes. Nil fields are left untouched.
type Patch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Type      *UserType
	Verified  *bool
}

// Apply returns a copy of u with the patch applied
func (u User) Apply(p Patch) User {
	if p.Email != nil {
		u.Email = utils.Value(p.Email)
	}
	if p.FirstName != nil {
		u.FirstName = utils.Value(p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = utils.Value(p.LastName)
	}
	if p.Type != nil {
		u.Type = utils.Value(p.Type)
	}
	if p.Verified != nil {
		u.Verified = utils.Value(p.Verified)
	}
	return u
}

func (u *User) IsTA() bool {
	return u != nil && u.Type == UserTypeTA
}

func (u *User) IsStudent() bool {
	return u != nil && u.Type == UserTypeStudent
}

// DisplayName returns the full name, falling back to the email address
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}
