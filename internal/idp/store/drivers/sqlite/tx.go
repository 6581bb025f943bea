package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/idp/internal/idp/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller will commit/rollback and outer DB stays open

// Ping is a no-op for transactions. The connection is already established
// when the transaction is created.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) Clients() store.Clients                     { return &clientsRepo{db: t.tx} }
func (t *txStore) ApiScopes() store.ApiScopes                 { return &apiScopesRepo{db: t.tx} }
func (t *txStore) IdentityResources() store.IdentityResources { return &identityResourcesRepo{db: t.tx} }
func (t *txStore) Users() store.Users                         { return &usersRepo{db: t.tx} }
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes {
	return &authorizationCodesRepo{db: t.tx}
}

func (t *txStore) ApplyMigrations() error { return nil } // no-op; migrations are applied before starting a tx
