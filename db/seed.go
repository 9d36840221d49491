package db

import (
	"context"
	"errors"
	"fmt"

	"rollcall-server/apperr"
	"rollcall-server/models"
)

// SeedAdmin creates the bootstrap admin account unless username already exists.
// hash is only called when a user has to be created. It reports whether one was.
func (s *Store) SeedAdmin(ctx context.Context, username string, hash func() (string, error)) (bool, error) {
	_, err := s.UserByUsername(ctx, username)
	if err == nil {
		s.logger.Info("bootstrap admin present, skipping seed", "username", username)
		return false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false, fmt.Errorf("check bootstrap admin: %w", err)
	}

	hashed, err := hash()
	if err != nil {
		return false, fmt.Errorf("hash bootstrap admin password: %w", err)
	}
	admin := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: hashed,
		UserType:       models.RoleAdmin,
		IsActive:       true,
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", "username", username, "user_id", admin.ID)
	return true, nil
}
