package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"rollcall-server/models"
)

// ListGroups returns the groups of a class owned by ownerID, students included.
func (s *Store) ListGroups(ctx context.Context, ownerID, classID uint) ([]models.Group, error) {
	var groups []models.Group
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := classForOwner(tx, ownerID, classID); err != nil {
			return err
		}
		return tx.Where("class_id = ?", classID).
			Preload("Students", orderByID).
			Order("id").
			Find(&groups).Error
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) GroupForOwner(ctx context.Context, ownerID, groupID uint) (*models.Group, error) {
	return groupForOwner(s.db.WithContext(ctx), ownerID, groupID)
}

// CreateGroup inserts a group after checking the parent class belongs to ownerID.
func (s *Store) CreateGroup(ctx context.Context, ownerID, classID uint, name string) (*models.Group, error) {
	group := models.Group{Name: name, ClassID: classID}
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := classForOwner(tx, ownerID, classID); err != nil {
			return err
		}
		return tx.Create(&group).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Store) RenameGroup(ctx context.Context, ownerID, groupID uint, name string) (*models.Group, error) {
	var group models.Group
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		found, err := groupForOwner(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		if name != "" {
			if err := tx.Model(found).Update("name", name).Error; err != nil {
				return fmt.Errorf("rename group: %w", err)
			}
		}
		return tx.Preload("Students", orderByID).First(&group, found.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Store) DeleteGroup(ctx context.Context, ownerID, groupID uint) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		group, err := groupForOwner(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		return deleteGroupTree(tx, []uint{group.ID})
	})
}

// groupForOwner walks group -> class and matches the class owner.
func groupForOwner(tx *gorm.DB, ownerID, groupID uint) (*models.Group, error) {
	var group models.Group
	err := tx.Joins(`JOIN classes ON classes.id = "groups".class_id`).
		Where(`"groups".id = ? AND classes.owner_id = ?`, groupID, ownerID).
		First(&group).Error
	if err != nil {
		return nil, notFoundAs(err, "group not found")
	}
	return &group, nil
}

func deleteGroupTree(tx *gorm.DB, groupIDs []uint) error {
	if len(groupIDs) == 0 {
		return nil
	}
	var studentIDs []uint
	if err := tx.Model(&models.Student{}).Where("group_id IN ?", groupIDs).Pluck("id", &studentIDs).Error; err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	if err := tx.Where("group_id IN ?", groupIDs).Delete(&models.RollCallRecord{}).Error; err != nil {
		return fmt.Errorf("delete group records: %w", err)
	}
	if err := deleteStudents(tx, studentIDs); err != nil {
		return err
	}
	if err := tx.Where("id IN ?", groupIDs).Delete(&models.Group{}).Error; err != nil {
		return fmt.Errorf("delete groups: %w", err)
	}
	return nil
}
