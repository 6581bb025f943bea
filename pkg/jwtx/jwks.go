package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
)

// JWK represents a public key in JSON Web Key format (RFC 7517).
// It's algorithm-neutral so the same type covers RSA, Ed25519, and ECDSA.
type JWK struct {
	Kty string `json:"kty"`           // key type: "RSA", "OKP", "EC"
	Use string `json:"use,omitempty"` // what we use it for: "sig"
	Alg string `json:"alg,omitempty"` // algorithm: "RS256", "ES256", "EdDSA"
	Kid string `json:"kid,omitempty"` // key ID

	// RSA fields
	N string `json:"n,omitempty"` // modulus (base64url)
	E string `json:"e,omitempty"` // exponent (base64url)

	// Ed25519 / OKP fields and ECDSA / EC fields
	Crv string `json:"crv,omitempty"` // curve: "Ed25519", "P-256"
	X   string `json:"x,omitempty"`   // base64url public key or x-coordinate
	Y   string `json:"y,omitempty"`   // base64url y-coordinate (ECDSA only)
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewRSAJWK builds a JWK for an RSA public key.
func NewRSAJWK(kid, use, alg string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: use,
		Alg: alg,
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// NewEd25519JWK builds a JWK for an Ed25519 public key.
// Ed25519 keys use the "OKP" (Octet Key Pair) key type.
func NewEd25519JWK(kid, use, alg string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// NewES256JWK builds a JWK for an ECDSA P-256 public key.
// ES256 keys use the "EC" (Elliptic Curve) key type with the P-256 curve.
func NewES256JWK(kid, use, alg string, pub *ecdsa.PublicKey) JWK {
	// P-256 coordinates are 32 bytes each, pad for consistent encoding
	xBytes := pub.X.Bytes()
	yBytes := pub.Y.Bytes()

	x := make([]byte, 32)
	y := make([]byte, 32)
	copy(x[32-len(xBytes):], xBytes)
	copy(y[32-len(yBytes):], yBytes)

	return JWK{
		Kty: "EC",
		Use: use,
		Alg: alg,
		Kid: kid,
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}
}
