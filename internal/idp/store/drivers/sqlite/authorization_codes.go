package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

type authorizationCodesRepo struct {
	db dbtx
}

func (r *authorizationCodesRepo) Create(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO authorization_codes (id, subject_id, client_id, code_hash,
		                                 redirect_uri, scopes, code_challenge,
		                                 code_challenge_method, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.SubjectID, code.ClientID, code.CodeHash,
		code.RedirectURI, joinList(code.Scopes), code.CodeChallenge,
		code.CodeChallengeMethod, code.ExpiresAt, code.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *authorizationCodesRepo) GetByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, subject_id, client_id, code_hash, redirect_uri, scopes,
		       code_challenge, code_challenge_method, expires_at, used_at, created_at
		FROM authorization_codes
		WHERE code_hash = ?`, hash)

	var code domain.AuthorizationCode
	var scopes string
	var usedAt sql.NullTime

	err := row.Scan(
		&code.ID, &code.SubjectID, &code.ClientID, &code.CodeHash,
		&code.RedirectURI, &scopes, &code.CodeChallenge,
		&code.CodeChallengeMethod, &code.ExpiresAt, &usedAt, &code.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}

	code.Scopes = splitAndFilter(scopes)
	code.UsedAt = mapNullTimePtr(usedAt)
	return code, nil
}

func (r *authorizationCodesRepo) MarkUsed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE authorization_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}

func (r *authorizationCodesRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at < ?`, time.Now().UTC())
	return err
}
