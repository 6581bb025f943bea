package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/registry"
	"github.com/aussiebroadwan/idp/internal/idp/store"
	"github.com/aussiebroadwan/idp/pkg/cryptox"
	"github.com/aussiebroadwan/idp/pkg/idx"
)

// SeedService reconciles the registry's declared state into storage at boot.
// Seeding is idempotent and additive-only: rows are matched by natural key
// (client_id, scope name, resource name, username), existing rows are never
// updated or deleted, and a unique-constraint race with another process is
// treated as "already seeded".
type SeedService struct {
	Store    store.Store
	Registry *registry.Registry
	Logger   *slog.Logger
}

// SeedOptions are the two independent boot gates. With neither set the
// storage is left completely untouched.
type SeedOptions struct {
	ApplyMigrations bool
	SeedData        bool
}

// Run executes the seeding phases in order: migrate, seed config, seed
// users. It must complete before the HTTP listener starts so that readiness
// implies a fully seeded store.
func (s *SeedService) Run(ctx context.Context, opts SeedOptions) error {
	if opts.ApplyMigrations {
		s.Logger.Info("applying database migrations")
		if err := s.Store.ApplyMigrations(); err != nil {
			// Serving against an unmigrated schema is worse than not
			// starting, so this is fatal.
			return fmt.Errorf("seed: apply migrations: %w", err)
		}
	}

	if !opts.SeedData {
		s.Logger.Debug("data seeding disabled, skipping")
		return nil
	}

	if err := s.seedClients(ctx); err != nil {
		return err
	}
	if err := s.seedApiScopes(ctx); err != nil {
		return err
	}
	if err := s.seedIdentityResources(ctx); err != nil {
		return err
	}
	s.seedUsers(ctx)

	return nil
}

func (s *SeedService) seedClients(ctx context.Context) error {
	for _, decl := range s.Registry.ListClients() {
		_, err := s.Store.Clients().GetByClientID(ctx, decl.ClientID)
		if err == nil {
			continue // already present, leave as-is
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed: lookup client %q: %w", decl.ClientID, err)
		}

		now := time.Now().UTC()
		client := domain.Client{
			ID:                     idx.New().String(),
			ClientID:               decl.ClientID,
			DisplayName:            decl.DisplayName,
			AllowedGrantTypes:      decl.AllowedGrantTypes,
			AllowedScopes:          decl.AllowedScopes,
			RedirectURIs:           decl.RedirectURIs,
			PostLogoutRedirectURIs: decl.PostLogoutRedirectURIs,
			RequirePKCE:            decl.RequirePKCE,
			AlwaysSendClientClaims: decl.AlwaysSendClientClaims,
			AllowBrowserTokens:     decl.AllowBrowserTokens,
			CreatedAt:              now,
			UpdatedAt:              now,
		}

		for _, secret := range decl.Secrets {
			hash, err := cryptox.HashPassword(secret.Value)
			if err != nil {
				return fmt.Errorf("seed: hash secret for client %q: %w", decl.ClientID, err)
			}
			client.Secrets = append(client.Secrets, domain.ClientSecret{
				ID:         idx.New().String(),
				ClientID:   client.ID,
				SecretHash: hash,
				ExpiresAt:  secret.ExpiresAt,
				CreatedAt:  now,
			})
		}

		if err := s.Store.Clients().Create(ctx, client); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				// Another process seeded the same row first. Not an error.
				s.Logger.Debug("client already seeded", "client_id", decl.ClientID)
				continue
			}
			return fmt.Errorf("seed: create client %q: %w", decl.ClientID, err)
		}
		s.Logger.Info("seeded client", "client_id", decl.ClientID)
	}
	return nil
}

func (s *SeedService) seedApiScopes(ctx context.Context) error {
	for _, decl := range s.Registry.ListScopes() {
		_, err := s.Store.ApiScopes().GetByName(ctx, decl.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed: lookup api scope %q: %w", decl.Name, err)
		}

		err = s.Store.ApiScopes().Create(ctx, domain.ApiScope{
			ID:          idx.New().String(),
			Name:        decl.Name,
			DisplayName: decl.DisplayName,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				s.Logger.Debug("api scope already seeded", "name", decl.Name)
				continue
			}
			return fmt.Errorf("seed: create api scope %q: %w", decl.Name, err)
		}
		s.Logger.Info("seeded api scope", "name", decl.Name)
	}
	return nil
}

func (s *SeedService) seedIdentityResources(ctx context.Context) error {
	for _, decl := range s.Registry.ListIdentityResources() {
		_, err := s.Store.IdentityResources().GetByName(ctx, decl.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed: lookup identity resource %q: %w", decl.Name, err)
		}

		err = s.Store.IdentityResources().Create(ctx, domain.IdentityResource{
			ID:          idx.New().String(),
			Name:        decl.Name,
			DisplayName: decl.DisplayName,
			ClaimTypes:  decl.ClaimTypes,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				s.Logger.Debug("identity resource already seeded", "name", decl.Name)
				continue
			}
			return fmt.Errorf("seed: create identity resource %q: %w", decl.Name, err)
		}
		s.Logger.Info("seeded identity resource", "name", decl.Name)
	}
	return nil
}

// seedUsers creates any declared user whose username is not yet taken. A
// failure for one user is logged and skipped rather than aborting startup,
// so one bad declaration can't take the whole provider down.
func (s *SeedService) seedUsers(ctx context.Context) {
	for _, decl := range s.Registry.ListSeedUsers() {
		exists, err := s.Store.Users().ExistsByUsername(ctx, decl.Username)
		if err != nil {
			s.Logger.Warn("seed: user existence check failed, skipping",
				"username", decl.Username, "err", err)
			continue
		}
		if exists {
			s.Logger.Debug("user already seeded", "username", decl.Username)
			continue
		}

		hash, err := cryptox.HashPassword(decl.Password)
		if err != nil {
			s.Logger.Warn("seed: password hashing failed, skipping user",
				"username", decl.Username, "err", err)
			continue
		}

		subjectID := decl.SubjectID
		if subjectID == "" {
			subjectID = idx.New().String()
		}

		name := decl.Name
		if name == "" {
			name = decl.Username
		}

		now := time.Now().UTC()
		err = s.Store.Users().Create(ctx, domain.User{
			ID:             subjectID,
			Username:       decl.Username,
			PasswordHash:   hash,
			Name:           name,
			Email:          decl.Username, // seed accounts use username as email
			EmailConfirmed: true,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				s.Logger.Debug("user already seeded", "username", decl.Username)
				continue
			}
			s.Logger.Warn("seed: user create failed, skipping",
				"username", decl.Username, "err", err)
			continue
		}
		s.Logger.Info("seeded user", "username", decl.Username, "sub", subjectID)
	}
}
