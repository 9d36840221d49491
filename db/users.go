package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rollcall-server/apperr"
	"rollcall-server/models"
)

// UserPatch carries the fields of a partial user update; nil means unchanged.
type UserPatch struct {
	Email          *string
	UserType       *string
	HashedPassword *string
	IsActive       *bool
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	return &user, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, notFoundAs(err, "user not found")
	}
	return &user, nil
}

// CreateUser inserts user after checking username and email are free.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		taken, err := exists(tx, &models.User{}, "username = ?", user.Username)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("username already exists")
		}
		if err := ensureEmailFree(tx, user.Email, 0); err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	return userWriteError("create user", err)
}

// UpdateUser applies patch to the user with id and returns the stored row.
func (s *Store) UpdateUser(ctx context.Context, id uint, patch UserPatch) (*models.User, error) {
	var user models.User
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			return notFoundAs(err, "user not found")
		}
		updates := map[string]any{}
		if patch.Email != nil {
			if err := ensureEmailFree(tx, *patch.Email, id); err != nil {
				return err
			}
			updates["email"] = *patch.Email
		}
		if patch.UserType != nil {
			updates["user_type"] = *patch.UserType
		}
		if patch.HashedPassword != nil {
			updates["hashed_password"] = *patch.HashedPassword
		}
		if patch.IsActive != nil {
			updates["is_active"] = *patch.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, userWriteError("update user", err)
	}
	return &user, nil
}

// DeleteUser removes the user and everything under the classes they own.
func (s *Store) DeleteUser(ctx context.Context, id uint) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return notFoundAs(err, "user not found")
		}
		var classIDs []uint
		if err := tx.Model(&models.Class{}).Where("owner_id = ?", id).Pluck("id", &classIDs).Error; err != nil {
			return fmt.Errorf("list user classes: %w", err)
		}
		if err := deleteClassTree(tx, classIDs); err != nil {
			return fmt.Errorf("delete user classes: %w", err)
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// CountUsers reports how many accounts exist.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func ensureEmailFree(tx *gorm.DB, email string, exceptID uint) error {
	query := tx.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return apperr.Conflict("email already exists")
	}
	return nil
}

func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// userWriteError keeps apperr kinds and maps races on the unique indexes to Conflict.
func userWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueViolation(err) {
		return apperr.Conflict("username or email already exists")
	}
	return fmt.Errorf("%s: %w", op, err)
}
