// Package models defines the storefront's domain entities and the rules
// that hold for them regardless of storage.
package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is a registered identity. PasswordHash only ever holds a bcrypt
// digest; a new plaintext is staged with SetPassword and hashed on save.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	pendingPassword *string
}

// NormalizeEmail trims and lower-cases an address so lookups and the
// unique constraint see one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetPassword stages a new plaintext password for hashing on the next save.
func (u *User) SetPassword(plaintext string) {
	u.pendingPassword = &plaintext
}

// PendingPassword returns the staged plaintext, if any.
func (u *User) PendingPassword() (string, bool) {
	if u.pendingPassword == nil {
		return "", false
	}
	return *u.pendingPassword, true
}

// ApplyPasswordHash stores digest and drops the staged plaintext.
func (u *User) ApplyPasswordHash(digest string) {
	u.PasswordHash = digest
	u.pendingPassword = nil
}
