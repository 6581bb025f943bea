package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and to stop callers from accidentally nesting transactions.
type Store interface {
	Clients() Clients
	ApiScopes() ApiScopes
	IdentityResources() IdentityResources
	Users() Users
	AuthorizationCodes() AuthorizationCodes

	// ApplyMigrations brings the schema up to date. It is only called when
	// the deployment explicitly opts in; otherwise the schema is left alone.
	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// GetByClientID fetches a client by its wire client_id, secrets included.
	GetByClientID(ctx context.Context, clientID string) (domain.Client, error)

	// List returns all clients ordered by creation date (newest first).
	// Secrets are not populated.
	List(ctx context.Context) ([]domain.Client, error)

	// Create inserts a new client along with its secrets (ids are ULIDs
	// provided by the app).
	Create(ctx context.Context, c domain.Client) error
}

type ApiScopes interface {
	// GetByName fetches an API scope by its name.
	GetByName(ctx context.Context, name string) (domain.ApiScope, error)

	// List returns all API scopes ordered by name.
	List(ctx context.Context) ([]domain.ApiScope, error)

	// Create inserts a new API scope.
	Create(ctx context.Context, s domain.ApiScope) error
}

type IdentityResources interface {
	// GetByName fetches an identity resource by its name.
	GetByName(ctx context.Context, name string) (domain.IdentityResource, error)

	// List returns all identity resources ordered by name.
	List(ctx context.Context) ([]domain.IdentityResource, error)

	// Create inserts a new identity resource.
	Create(ctx context.Context, r domain.IdentityResource) error
}

type Users interface {
	// GetByID returns a user by subject ID. Accounts with a NULL username
	// or email are reported as ErrNotFound.
	GetByID(ctx context.Context, id string) (domain.User, error)

	// GetByUsername is used during the password grant. Same NULL-field
	// filtering as GetByID applies.
	GetByUsername(ctx context.Context, username string) (domain.User, error)

	// ExistsByUsername reports whether any account holds the username,
	// usable or not.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Create inserts a new user (id is provided by app).
	Create(ctx context.Context, u domain.User) error
}

type AuthorizationCodes interface {
	// Create stores a freshly minted authorization code.
	Create(ctx context.Context, code domain.AuthorizationCode) error

	// GetByHash fetches a code by its hashed value when redeeming.
	GetByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// MarkUsed marks a code as consumed to prevent re-use.
	MarkUsed(ctx context.Context, id string) error

	// DeleteExpired removes any codes that are no longer valid.
	DeleteExpired(ctx context.Context) error
}
