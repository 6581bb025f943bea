package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
	"github.com/aussiebroadwan/idp/internal/idp/store"
)

// UserService is the read-only lookup path behind the internal users API.
type UserService struct {
	Store store.Store
}

// GetUserByID returns the public projection of a user, or ErrSubjectNotFound
// when the user is absent or unusable (NULL username or email). No caching;
// the result always reflects current storage state.
func (s *UserService) GetUserByID(ctx context.Context, id string) (domain.PublicUser, error) {
	user, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PublicUser{}, ErrSubjectNotFound
		}
		return domain.PublicUser{}, err
	}
	if !user.Usable() {
		return domain.PublicUser{}, ErrSubjectNotFound
	}

	return domain.PublicUser{
		Sub:      user.ID,
		Email:    user.Email,
		UserName: user.Username,
	}, nil
}
