package jwtx

// Signer turns claims into signed compact JWTs under a single private key.
// Each implementation exposes its key id and public JWK so issued tokens can
// be matched against the published key set.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// NewSignerRS256 builds an RS256 signer from a PEM-encoded RSA private key.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	return newRS256Signer(kid, pemKey)
}

// NewSignerEdDSA builds an EdDSA signer. The Ed25519 key must be PEM-encoded
// in PKCS8 form.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}

// NewSignerES256 builds an ES256 signer. The ECDSA P-256 key must be
// PEM-encoded in PKCS8 form.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	return newES256Signer(kid, pemKey)
}
