package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
)

// txRunner lets Create run its multi-statement insert atomically when the
// repo is backed by the raw connection rather than an open transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
}

type clientsRepo struct {
	db  dbtx
	txr txRunner // nil when already inside a transaction
}

func (r *clientsRepo) GetByClientID(ctx context.Context, clientID string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, display_name, grant_types, scopes, redirect_uris,
		       post_logout_redirect_uris, require_pkce, always_send_client_claims,
		       allow_browser_tokens, created_at, updated_at
		FROM clients
		WHERE client_id = ?`, clientID)

	c, err := scanClient(row)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	secrets, err := r.secretsForClient(ctx, c.ID)
	if err != nil {
		return domain.Client{}, err
	}
	c.Secrets = secrets

	return c, nil
}

func (r *clientsRepo) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, display_name, grant_types, scopes, redirect_uris,
		       post_logout_redirect_uris, require_pkce, always_send_client_claims,
		       allow_browser_tokens, created_at, updated_at
		FROM clients
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts the client row and all its secrets as one atomic unit. A
// client must never be persisted with fewer secrets than declared; a partial
// row would read back as a public (secret-less) client.
func (r *clientsRepo) Create(ctx context.Context, c domain.Client) error {
	if r.txr != nil {
		return r.txr.WithTx(ctx, func(tx store.Tx) error {
			return tx.Clients().Create(ctx, c)
		})
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, client_id, display_name, grant_types, scopes,
		                     redirect_uris, post_logout_redirect_uris, require_pkce,
		                     always_send_client_claims, allow_browser_tokens,
		                     created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClientID, c.DisplayName,
		joinList(c.AllowedGrantTypes), joinList(c.AllowedScopes),
		joinList(c.RedirectURIs), joinList(c.PostLogoutRedirectURIs),
		c.RequirePKCE, c.AlwaysSendClientClaims, c.AllowBrowserTokens,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return mapConstraint(err)
	}

	for _, secret := range c.Secrets {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO client_secrets (id, client_id, secret_hash, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			secret.ID, c.ID, secret.SecretHash,
			mapOptionalTime(secret.ExpiresAt), secret.CreatedAt,
		)
		if err != nil {
			return mapConstraint(err)
		}
	}

	return nil
}

func (r *clientsRepo) secretsForClient(ctx context.Context, id string) ([]domain.ClientSecret, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, secret_hash, expires_at, created_at
		FROM client_secrets
		WHERE client_id = ?
		ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ClientSecret
	for rows.Next() {
		var s domain.ClientSecret
		var expiresAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.ClientID, &s.SecretHash, &expiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.ExpiresAt = mapNullTimePtr(expiresAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (domain.Client, error) {
	var c domain.Client
	var grantTypes, scopes, redirectURIs, postLogoutURIs string

	err := row.Scan(
		&c.ID, &c.ClientID, &c.DisplayName,
		&grantTypes, &scopes, &redirectURIs, &postLogoutURIs,
		&c.RequirePKCE, &c.AlwaysSendClientClaims, &c.AllowBrowserTokens,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, err
	}

	c.AllowedGrantTypes = splitAndFilter(grantTypes)
	c.AllowedScopes = splitAndFilter(scopes)
	c.RedirectURIs = splitAndFilter(redirectURIs)
	c.PostLogoutRedirectURIs = splitAndFilter(postLogoutURIs)
	return c, nil
}
