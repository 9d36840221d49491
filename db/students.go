package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"rollcall-server/models"
)

// StudentPatch carries the fields of a partial student update; nil means unchanged.
type StudentPatch struct {
	StudentID *string
	Name      *string
	Weight    *float64
}

func (s *Store) ListStudents(ctx context.Context, ownerID, groupID uint) ([]models.Student, error) {
	var students []models.Student
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := groupForOwner(tx, ownerID, groupID); err != nil {
			return err
		}
		return tx.Where("group_id = ?", groupID).Order("id").Find(&students).Error
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

// CreateStudents inserts students into one group owned by ownerID. All rows
// commit together or not at all.
func (s *Store) CreateStudents(ctx context.Context, ownerID, groupID uint, students []models.Student) ([]models.Student, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := groupForOwner(tx, ownerID, groupID); err != nil {
			return err
		}
		if len(students) == 0 {
			return nil
		}
		for i := range students {
			students[i].ID = 0
			students[i].GroupID = groupID
		}
		return tx.Create(&students).Error
	})
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (s *Store) CreateStudent(ctx context.Context, ownerID uint, student models.Student) (*models.Student, error) {
	created, err := s.CreateStudents(ctx, ownerID, student.GroupID, []models.Student{student})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

func (s *Store) UpdateStudent(ctx context.Context, ownerID, studentID uint, patch StudentPatch) (*models.Student, error) {
	var student models.Student
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		found, err := studentForOwner(tx, ownerID, studentID)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if patch.StudentID != nil {
			updates["student_id"] = *patch.StudentID
		}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Weight != nil {
			updates["weight"] = *patch.Weight
		}
		if len(updates) > 0 {
			if err := tx.Model(found).Updates(updates).Error; err != nil {
				return fmt.Errorf("update student: %w", err)
			}
		}
		return tx.First(&student, found.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *Store) DeleteStudent(ctx context.Context, ownerID, studentID uint) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		student, err := studentForOwner(tx, ownerID, studentID)
		if err != nil {
			return err
		}
		return deleteStudents(tx, []uint{student.ID})
	})
}

// studentForOwner walks student -> group -> class and matches the class owner.
func studentForOwner(tx *gorm.DB, ownerID, studentID uint) (*models.Student, error) {
	var student models.Student
	err := tx.Joins(`JOIN "groups" ON "groups".id = students.group_id`).
		Joins(`JOIN classes ON classes.id = "groups".class_id`).
		Where("students.id = ? AND classes.owner_id = ?", studentID, ownerID).
		First(&student).Error
	if err != nil {
		return nil, notFoundAs(err, "student not found")
	}
	return &student, nil
}

func deleteStudents(tx *gorm.DB, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}
	if err := tx.Where("student_id IN ?", studentIDs).Delete(&models.RollCallRecord{}).Error; err != nil {
		return fmt.Errorf("delete student records: %w", err)
	}
	if err := tx.Where("id IN ?", studentIDs).Delete(&models.Student{}).Error; err != nil {
		return fmt.Errorf("delete students: %w", err)
	}
	return nil
}
