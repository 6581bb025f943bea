package domain

import "time"

// ApiScope is a protected API surface that clients can request access to.
// Granted API scopes become audience values on issued tokens.
type ApiScope struct {
	ID          string
	Name        string
	DisplayName string
	CreatedAt   time.Time
}

// IdentityResource is a named bundle of user claim types that a scope grant
// unlocks, e.g. "profile" unlocking name and preferred_username.
type IdentityResource struct {
	ID          string
	Name        string
	DisplayName string
	ClaimTypes  []string
	CreatedAt   time.Time
}

// Built-in identity resource names. These are always present after seeding.
const (
	IdentityResourceOpenID  = "openid"
	IdentityResourceProfile = "profile"
	IdentityResourceUser    = "user"
)

// BuiltinIdentityResources returns the standard identity resources every
// deployment carries.
func BuiltinIdentityResources() []IdentityResource {
	return []IdentityResource{
		{
			Name:        IdentityResourceOpenID,
			DisplayName: "Your user identifier",
			ClaimTypes:  nil,
		},
		{
			Name:        IdentityResourceProfile,
			DisplayName: "User profile",
			ClaimTypes:  []string{"name", "preferred_username"},
		},
		{
			Name:        IdentityResourceUser,
			DisplayName: "User account",
			ClaimTypes:  []string{"email"},
		},
	}
}
