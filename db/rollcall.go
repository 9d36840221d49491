package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rollcall-server/apperr"
	"rollcall-server/models"
)

// HistoryFilter narrows GET /roll-call/history. Zero values mean no filter.
type HistoryFilter struct {
	ClassID uint
}

// CreateRollCall records that studentID was called in classID. Both must be
// reachable through ownerID's classes. The group is always the student's
// current group.
func (s *Store) CreateRollCall(ctx context.Context, ownerID, studentID, classID uint, calledAt time.Time) (*models.RollCallRecord, error) {
	var record models.RollCallRecord
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		student, err := studentForOwner(tx, ownerID, studentID)
		if err != nil {
			return err
		}
		class, err := classForOwner(tx, ownerID, classID)
		if err != nil {
			return err
		}
		var group models.Group
		if err := tx.First(&group, student.GroupID).Error; err != nil {
			return notFoundAs(err, "group not found")
		}
		if group.ClassID != class.ID {
			return apperr.InvalidInput("student does not belong to this class")
		}

		record = models.RollCallRecord{
			StudentID: student.ID,
			GroupID:   student.GroupID,
			ClassID:   class.ID,
			CalledAt:  calledAt.UTC(),
		}
		if err := tx.Omit(clause.Associations).Create(&record).Error; err != nil {
			return fmt.Errorf("create roll call record: %w", err)
		}
		record.Student = *student
		record.Group = group
		record.Class = *class
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RollCallHistory lists records under ownerID's classes, newest first, with
// the current student, group and class rows attached.
func (s *Store) RollCallHistory(ctx context.Context, ownerID uint, filter HistoryFilter) ([]models.RollCallRecord, error) {
	query := s.db.WithContext(ctx).
		Joins("JOIN classes ON classes.id = roll_call_records.class_id").
		Where("classes.owner_id = ?", ownerID)
	if filter.ClassID != 0 {
		query = query.Where("roll_call_records.class_id = ?", filter.ClassID)
	}

	var records []models.RollCallRecord
	err := query.
		Preload("Student").
		Preload("Group").
		Preload("Class").
		Order("roll_call_records.called_at DESC").
		Order("roll_call_records.id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("roll call history: %w", err)
	}
	return records, nil
}
