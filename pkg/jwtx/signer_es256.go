package jwtx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer implements the Signer interface using ECDSA P-256 with SHA-256.
type ES256Signer struct {
	kid string
	key *ecdsa.PrivateKey
}

// newES256Signer loads an ECDSA private key from PEM bytes.
// ECDSA keys must be in PKCS8 format and use the P-256 curve.
func newES256Signer(kid string, pemKey []byte) (*ES256Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for ECDSA key")
	}

	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q (ES256 requires PKCS8)", block.Type)
	}

	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}

	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not an ECDSA private key")
	}

	// ES256 is defined only over P-256
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ES256 requires a P-256 key")
	}

	return &ES256Signer{kid: kid, key: key}, nil
}

func (s *ES256Signer) Alg() string { return jwt.SigningMethodES256.Alg() }
func (s *ES256Signer) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *ES256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns a JWK for inclusion in a JWKS.
func (s *ES256Signer) PublicJWK() JWK {
	return NewES256JWK(s.kid, "sig", s.Alg(), &s.key.PublicKey)
}

// Validate checks the key material is present and on the right curve.
func (s *ES256Signer) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil ECDSA key")
	}
	if s.key.Curve != elliptic.P256() {
		return errors.New("jwtx: ES256 requires a P-256 key")
	}
	return nil
}
