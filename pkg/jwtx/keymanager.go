package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/idp/pkg/cryptox"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// KeyManager owns the signing and verification keys for a provider instance.
// It wires key generation (cryptox), signing and verification (jwtx), and the
// KeySet used for JWKS publishing into one place.
//
// Multiple signing keys are held at once and selected randomly per signing
// operation to spread load.
type KeyManager struct {
	Verifier *Verifier
	KeySet   *KeySet

	algorithm string

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use.
	// Supported values: "RS256", "ES256", "EdDSA"
	Algorithm string

	// Issuer is the issuer claim (iss) validated on verification.
	Issuer string

	// Audience values (aud) validated on verification.
	// Empty slice means no audience validation.
	Audience []string

	// RSABits specifies the RSA key size for RS256.
	// Defaults to 4096 if not specified. Must be at least 2048.
	RSABits int

	// NumKeys is how many signing keys to generate.
	// Defaults to 3. Minimum 1, maximum 10.
	NumKeys int
}

// NewEphemeralKeyManager creates a KeyManager with keys generated on the fly
// that only exist in memory. All issued tokens become invalid when the
// service restarts, which doubles as stateless key rotation.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 3
	}
	if numKeys > 10 {
		numKeys = 10
	}

	keyset := NewKeySet()
	signers := make([]Signer, 0, numKeys)

	for i := 0; i < numKeys; i++ {
		keyID, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		signer, err := generateSigner(opts.Algorithm, keyID, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		signers = append(signers, signer)

		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, opts.Issuer, opts.Audience),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

// generateSigner creates a new signer with the specified algorithm and key ID.
func generateSigner(algorithm, keyID string, rsaBits int) (Signer, error) {
	switch algorithm {
	case AlgorithmRS256:
		bits := rsaBits
		if bits == 0 {
			bits = 4096
		}
		pemBytes, err := cryptox.GenerateRSAKey(bits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate RS256 key: %w", err)
		}
		return NewSignerRS256(keyID, pemBytes)

	case AlgorithmES256:
		pemBytes, err := cryptox.GenerateES256Key()
		if err != nil {
			return nil, fmt.Errorf("failed to generate ES256 key: %w", err)
		}
		return NewSignerES256(keyID, pemBytes)

	case AlgorithmEdDSA:
		pemBytes, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("failed to generate EdDSA key: %w", err)
		}
		return NewSignerEdDSA(keyID, pemBytes)

	default:
		return nil, fmt.Errorf("unsupported algorithm %q (supported: RS256, ES256, EdDSA)", algorithm)
	}
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner returns a randomly selected signer from the available keys.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}

	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// generateRandomKeyID creates a random key identifier.
// Format: "idp-{random-token}" where random-token is a 128-bit secure token.
func generateRandomKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("failed to generate random key ID: %w", err)
	}
	return fmt.Sprintf("idp-%s", token), nil
}
