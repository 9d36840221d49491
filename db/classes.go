package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"rollcall-server/models"
)

// ListClasses returns the owner's classes with groups and students preloaded.
func (s *Store) ListClasses(ctx context.Context, ownerID uint) ([]models.Class, error) {
	var classes []models.Class
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Preload("Groups", orderByID).
		Preload("Groups.Students", orderByID).
		Order("id").
		Find(&classes).Error
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

func (s *Store) CreateClass(ctx context.Context, ownerID uint, name string) (*models.Class, error) {
	class := models.Class{Name: name, OwnerID: ownerID}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&class).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return &class, nil
}

// RenameClass sets the class name. An empty name leaves the class unchanged.
func (s *Store) RenameClass(ctx context.Context, ownerID, classID uint, name string) (*models.Class, error) {
	var class *models.Class
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		found, err := classForOwner(tx, ownerID, classID)
		if err != nil {
			return err
		}
		if name != "" {
			if err := tx.Model(found).Update("name", name).Error; err != nil {
				return fmt.Errorf("rename class: %w", err)
			}
		}
		class, err = loadClassTree(tx, found.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return class, nil
}

func (s *Store) DeleteClass(ctx context.Context, ownerID, classID uint) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		class, err := classForOwner(tx, ownerID, classID)
		if err != nil {
			return err
		}
		return deleteClassTree(tx, []uint{class.ID})
	})
}

func classForOwner(tx *gorm.DB, ownerID, classID uint) (*models.Class, error) {
	var class models.Class
	err := tx.Where("id = ? AND owner_id = ?", classID, ownerID).First(&class).Error
	if err != nil {
		return nil, notFoundAs(err, "class not found")
	}
	return &class, nil
}

func loadClassTree(tx *gorm.DB, classID uint) (*models.Class, error) {
	var class models.Class
	err := tx.Preload("Groups", orderByID).
		Preload("Groups.Students", orderByID).
		First(&class, classID).Error
	if err != nil {
		return nil, notFoundAs(err, "class not found")
	}
	return &class, nil
}

// deleteClassTree removes the classes and every group, student and roll-call
// record beneath them, children first.
func deleteClassTree(tx *gorm.DB, classIDs []uint) error {
	if len(classIDs) == 0 {
		return nil
	}
	var groupIDs []uint
	if err := tx.Model(&models.Group{}).Where("class_id IN ?", classIDs).Pluck("id", &groupIDs).Error; err != nil {
		return fmt.Errorf("list groups: %w", err)
	}
	if err := tx.Where("class_id IN ?", classIDs).Delete(&models.RollCallRecord{}).Error; err != nil {
		return fmt.Errorf("delete class records: %w", err)
	}
	if err := deleteGroupTree(tx, groupIDs); err != nil {
		return err
	}
	if err := tx.Where("id IN ?", classIDs).Delete(&models.Class{}).Error; err != nil {
		return fmt.Errorf("delete classes: %w", err)
	}
	return nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}
