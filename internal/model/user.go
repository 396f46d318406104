package model

import "time"

// Role gates mutation permissions.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// AccountStatus is the admin-controlled enable/disable toggle.  It is
// orthogonal to email activation.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool { return s == AccountActive || s == AccountDisabled }

// User represents a row of the `users` table.  Token columns hold SHA-256
// hex digests; the raw tokens only ever travel in email links.
//
// Fields:
//
//	ID                    - primary key.
//	IDNumber              - national id supplied at registration, unique.
//	Email                 - unique login email, stored lower-cased.
//	PasswordHash          - bcrypt hash.
//	IsActivated           - flips to true exactly once, on email verification.
//	VerificationTokenHash - present while IsActivated is false.
//	ResetTokenHash        - present while a reset is pending.
//	ResetTokenExpires     - reset token is redeemable only before this instant.
//	Points                - non-negative balance.
type User struct {
	ID                    uint64
	FirstName             string
	LastName              string
	IDNumber              string
	Email                 string
	PasswordHash          string
	Role                  Role
	IsActivated           bool
	VerificationTokenHash *string
	ResetTokenHash        *string
	ResetTokenExpires     *time.Time
	Points                int64
	Status                AccountStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// UserView is the sanitized projection returned to clients.  It never
// carries the password hash or token digests.
type UserView struct {
	ID          uint64        `json:"id"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Email       string        `json:"email"`
	Role        Role          `json:"role"`
	Points      int64         `json:"points"`
	Status      AccountStatus `json:"status"`
	IsActivated bool          `json:"isActivated"`
}

// View returns the sanitized projection of u.
func (u User) View() UserView {
	return UserView{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Role:        u.Role,
		Points:      u.Points,
		Status:      u.Status,
		IsActivated: u.IsActivated,
	}
}
