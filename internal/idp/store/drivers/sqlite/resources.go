package sqlite

import (
	"context"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

type apiScopesRepo struct {
	db dbtx
}

func (r *apiScopesRepo) GetByName(ctx context.Context, name string) (domain.ApiScope, error) {
	var s domain.ApiScope
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, display_name, created_at
		FROM api_scopes
		WHERE name = ?`, name).
		Scan(&s.ID, &s.Name, &s.DisplayName, &s.CreatedAt)
	if err != nil {
		return domain.ApiScope{}, mapNotFound(err)
	}
	return s, nil
}

func (r *apiScopesRepo) List(ctx context.Context) ([]domain.ApiScope, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, display_name, created_at
		FROM api_scopes
		ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApiScope
	for rows.Next() {
		var s domain.ApiScope
		if err := rows.Scan(&s.ID, &s.Name, &s.DisplayName, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *apiScopesRepo) Create(ctx context.Context, s domain.ApiScope) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_scopes (id, name, display_name, created_at)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.Name, s.DisplayName, s.CreatedAt,
	)
	return mapConstraint(err)
}

type identityResourcesRepo struct {
	db dbtx
}

func (r *identityResourcesRepo) GetByName(ctx context.Context, name string) (domain.IdentityResource, error) {
	var res domain.IdentityResource
	var claimTypes string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, display_name, claim_types, created_at
		FROM identity_resources
		WHERE name = ?`, name).
		Scan(&res.ID, &res.Name, &res.DisplayName, &claimTypes, &res.CreatedAt)
	if err != nil {
		return domain.IdentityResource{}, mapNotFound(err)
	}
	res.ClaimTypes = splitAndFilter(claimTypes)
	return res, nil
}

func (r *identityResourcesRepo) List(ctx context.Context) ([]domain.IdentityResource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, display_name, claim_types, created_at
		FROM identity_resources
		ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IdentityResource
	for rows.Next() {
		var res domain.IdentityResource
		var claimTypes string
		if err := rows.Scan(&res.ID, &res.Name, &res.DisplayName, &claimTypes, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.ClaimTypes = splitAndFilter(claimTypes)
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *identityResourcesRepo) Create(ctx context.Context, res domain.IdentityResource) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identity_resources (id, name, display_name, claim_types, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		res.ID, res.Name, res.DisplayName, joinList(res.ClaimTypes), res.CreatedAt,
	)
	return mapConstraint(err)
}
