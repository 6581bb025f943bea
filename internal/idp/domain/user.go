package domain

import "time"

// User is a local account the provider can authenticate. Username and Email
// are stored as nullable columns; an empty string here means NULL. Accounts
// missing either are considered unusable and never surfaced by lookups.
type User struct {
	ID             string // subject identifier
	Username       string
	PasswordHash   string
	Name           string
	Email          string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Usable reports whether the account is complete enough to act as a token
// subject. Accounts without a username or email are treated as absent.
func (u User) Usable() bool {
	return u.Username != "" && u.Email != ""
}
