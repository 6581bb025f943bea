// Package registry loads the declarative provider configuration: registered
// clients, API scopes, identity resources, and seed users. The registry is
// immutable after Load, so any number of readers can use it without locking.
package registry

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

// ErrConfig reports a malformed registry document. It is fatal; the process
// must not start serving with a broken registry.
var ErrConfig = errors.New("registry: invalid configuration")

var knownGrantTypes = map[string]struct{}{
	domain.GrantTypePassword:          {},
	domain.GrantTypeClientCredentials: {},
	domain.GrantTypeAuthorizationCode: {},
}

// Client is one registered OAuth2 client as declared in the document.
type Client struct {
	ClientID          string         `yaml:"clientId"`
	DisplayName       string         `yaml:"displayName"`
	Secrets           []ClientSecret `yaml:"secrets"`
	AllowedGrantTypes []string       `yaml:"allowedGrantTypes"`
	AllowedScopes     []string       `yaml:"allowedScopes"`
	RedirectURIs      []string       `yaml:"redirectUris"`
	RequirePKCE       bool           `yaml:"requirePkce"`

	PostLogoutRedirectURIs []string `yaml:"postLogoutRedirectUris"`
	AlwaysSendClientClaims bool     `yaml:"alwaysSendClientClaims"`
	AllowBrowserTokens     bool     `yaml:"allowBrowserTokens"`
}

// ClientSecret is a plaintext secret with an optional expiry. The value is
// hashed before it ever reaches storage.
type ClientSecret struct {
	Value     string     `yaml:"value"`
	ExpiresAt *time.Time `yaml:"expiresAt"`
}

// ApiScope declares a protected API surface clients may request.
type ApiScope struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"displayName"`
}

// IdentityResource declares a named bundle of user claim types. The built-in
// openid/profile/user resources are always present and need not be declared.
type IdentityResource struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"displayName"`
	ClaimTypes  []string `yaml:"claimTypes"`
}

// SeedUser is a local account created by the startup seeder if absent.
type SeedUser struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	SubjectID string `yaml:"subjectId"` // optional; generated when empty
}

// document is the raw YAML shape.
type document struct {
	Clients           []Client           `yaml:"clients"`
	ApiScopes         []ApiScope         `yaml:"apiScopes"`
	IdentityResources []IdentityResource `yaml:"identityResources"`
	Users             []SeedUser         `yaml:"users"`
}

// Registry is the validated, immutable configuration set.
type Registry struct {
	clients           []Client
	clientsByID       map[string]Client
	apiScopes         []ApiScope
	identityResources []IdentityResource
	users             []SeedUser
}

// Load reads and validates the registry document at path.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return Parse(raw)
}

// Parse validates a registry document held in memory.
func Parse(raw []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	r := &Registry{
		clients:     doc.Clients,
		clientsByID: make(map[string]Client, len(doc.Clients)),
		apiScopes:   doc.ApiScopes,
		users:       doc.Users,
	}

	// Built-in identity resources come first, declared ones are appended.
	for _, builtin := range domain.BuiltinIdentityResources() {
		r.identityResources = append(r.identityResources, IdentityResource{
			Name:        builtin.Name,
			DisplayName: builtin.DisplayName,
			ClaimTypes:  builtin.ClaimTypes,
		})
	}
	r.identityResources = append(r.identityResources, doc.IdentityResources...)

	if err := r.validate(); err != nil {
		return nil, err
	}

	for _, c := range r.clients {
		r.clientsByID[c.ClientID] = c
	}

	return r, nil
}

// FindClient returns the client declaration for a wire client_id.
func (r *Registry) FindClient(clientID string) (Client, bool) {
	c, ok := r.clientsByID[clientID]
	return c, ok
}

// ListClients returns all declared clients.
func (r *Registry) ListClients() []Client { return r.clients }

// ListScopes returns all declared API scopes.
func (r *Registry) ListScopes() []ApiScope { return r.apiScopes }

// ListIdentityResources returns the built-in identity resources followed by
// any declared ones.
func (r *Registry) ListIdentityResources() []IdentityResource { return r.identityResources }

// ListSeedUsers returns the declared seed users in document order.
func (r *Registry) ListSeedUsers() []SeedUser { return r.users }

func (r *Registry) validate() error {
	scopeNames := make(map[string]struct{})

	for _, res := range r.identityResources {
		if err := validateScopeName(res.Name); err != nil {
			return fmt.Errorf("%w: identity resource %q: %v", ErrConfig, res.Name, err)
		}
		if _, dup := scopeNames[res.Name]; dup {
			return fmt.Errorf("%w: duplicate identity resource %q", ErrConfig, res.Name)
		}
		scopeNames[res.Name] = struct{}{}
	}

	for _, s := range r.apiScopes {
		if err := validateScopeName(s.Name); err != nil {
			return fmt.Errorf("%w: api scope %q: %v", ErrConfig, s.Name, err)
		}
		if _, dup := scopeNames[s.Name]; dup {
			return fmt.Errorf("%w: duplicate scope name %q", ErrConfig, s.Name)
		}
		scopeNames[s.Name] = struct{}{}
	}

	clientIDs := make(map[string]struct{}, len(r.clients))
	for _, c := range r.clients {
		if c.ClientID == "" {
			return fmt.Errorf("%w: client with empty clientId", ErrConfig)
		}
		if _, dup := clientIDs[c.ClientID]; dup {
			return fmt.Errorf("%w: duplicate client %q", ErrConfig, c.ClientID)
		}
		clientIDs[c.ClientID] = struct{}{}

		if len(c.AllowedGrantTypes) == 0 {
			return fmt.Errorf("%w: client %q declares no grant types", ErrConfig, c.ClientID)
		}
		for _, gt := range c.AllowedGrantTypes {
			if _, ok := knownGrantTypes[gt]; !ok {
				return fmt.Errorf("%w: client %q declares unknown grant type %q", ErrConfig, c.ClientID, gt)
			}
		}

		// Every allowed scope must reference a registered scope or resource,
		// otherwise a token request could never resolve its audiences.
		for _, scope := range c.AllowedScopes {
			if _, ok := scopeNames[scope]; !ok {
				return fmt.Errorf("%w: client %q references unknown scope %q", ErrConfig, c.ClientID, scope)
			}
		}

		for _, secret := range c.Secrets {
			if secret.Value == "" {
				return fmt.Errorf("%w: client %q has an empty secret", ErrConfig, c.ClientID)
			}
		}

		if hasGrantType(c, domain.GrantTypeAuthorizationCode) && len(c.RedirectURIs) == 0 {
			return fmt.Errorf("%w: client %q allows authorization_code but has no redirect URIs", ErrConfig, c.ClientID)
		}
	}

	usernames := make(map[string]struct{}, len(r.users))
	for _, u := range r.users {
		if u.Username == "" {
			return fmt.Errorf("%w: seed user with empty username", ErrConfig)
		}
		if u.Password == "" {
			return fmt.Errorf("%w: seed user %q has no password", ErrConfig, u.Username)
		}
		if _, dup := usernames[u.Username]; dup {
			return fmt.Errorf("%w: duplicate seed user %q", ErrConfig, u.Username)
		}
		usernames[u.Username] = struct{}{}
	}

	return nil
}

func hasGrantType(c Client, grantType string) bool {
	for _, gt := range c.AllowedGrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// Scope names end up inside space-delimited scope lists and token audience
// claims, so whitespace is never acceptable.
func validateScopeName(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return errors.New("name contains whitespace")
	}
	return nil
}
