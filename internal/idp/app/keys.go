package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/idp/pkg/jwtx"
)

// InitKeys creates a new ephemeral KeyManager with the configured algorithm.
// Keys are generated on startup and held only in memory, so every restart
// invalidates all previously issued tokens.
//
// Supported algorithms: RS256, ES256, EdDSA
func InitKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	logger.Info("initializing ephemeral key manager",
		"algorithm", cfg.Algorithm,
		"num_keys", cfg.NumKeys,
	)

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  nil, // tokens carry dynamic audiences, so no audience validation here
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", keyManager.Algorithm(),
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
	)
	logger.Warn("all previously issued tokens are now invalid")

	return keyManager, nil
}
