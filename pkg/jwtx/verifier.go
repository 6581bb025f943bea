package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrUnknownKID = errors.New("jwtx: unknown kid")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Verifier validates JWTs signed with any algorithm present in the KeySet.
// The key looked up by kid decides which signing method is acceptable, so a
// token can't downgrade to a weaker algorithm than its key was minted for.
type Verifier struct {
	keys   *KeySet
	issuer string
	aud    []string
}

// NewVerifier creates a verifier backed by a KeySet of public keys.
// Empty issuer or audience means that claim is not enforced.
func NewVerifier(keys *KeySet, issuer string, aud []string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, aud: aud}
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodRS256.Alg(),
		jwt.SigningMethodES256.Alg(),
		jwt.SigningMethodEdDSA.Alg(),
	}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}

		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: unknown kid %q: %w", kid, err)
		}

		// The key type must match the algorithm in the header, otherwise
		// the signature check would be meaningless.
		switch t.Method.Alg() {
		case jwt.SigningMethodRS256.Alg():
			if k, ok := pub.(*rsa.PublicKey); ok {
				return k, nil
			}
		case jwt.SigningMethodES256.Alg():
			if k, ok := pub.(*ecdsa.PublicKey); ok {
				return k, nil
			}
		case jwt.SigningMethodEdDSA.Alg():
			if k, ok := pub.(ed25519.PublicKey); ok {
				return k, nil
			}
		}
		return nil, fmt.Errorf("jwtx: key %q does not match alg %q", kid, t.Method.Alg())
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Claims{}, errors.New("jwtx: invalid token claims")
	}

	// Now check all the claim requirements
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
