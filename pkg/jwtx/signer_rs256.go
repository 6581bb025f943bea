package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer implements the Signer interface using RSA with SHA-256.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
}

// newRS256Signer loads an RSA private key from PEM bytes.
// Accepts both PKCS1 ("RSA PRIVATE KEY") and PKCS8 ("PRIVATE KEY") blocks.
func newRS256Signer(kid string, pemKey []byte) (*RS256Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	var key *rsa.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1: %w", err)
		}
		key = parsed
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not an RSA private key")
		}
		key = rsaKey
	default:
		return nil, fmt.Errorf("jwtx: unexpected PEM block %q", block.Type)
	}

	return &RS256Signer{kid: kid, key: key}, nil
}

func (s *RS256Signer) Alg() string { return jwt.SigningMethodRS256.Alg() }
func (s *RS256Signer) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns a JWK for inclusion in a JWKS.
func (s *RS256Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, "sig", s.Alg(), &s.key.PublicKey)
}

// Validate checks the key material is present and strong enough.
func (s *RS256Signer) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil RSA key")
	}
	if s.key.N.BitLen() < 2048 {
		return errors.New("jwtx: RSA key must be at least 2048 bits")
	}
	return nil
}
