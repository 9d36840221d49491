package models

import (
	"strings"
	"time"
)

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// DefaultStudentWeight is stored when a student is created without a weight.
const DefaultStudentWeight = 1.0

// NormalizeRole maps accepted role spellings to a stored role. "user" is what
// the bundled frontend sends for a regular account.
func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", RoleTeacher, "user":
		return RoleTeacher, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// User is an account; teachers own classes, admins also manage users.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"size:64;not null;uniqueIndex"`
	Email          string `gorm:"size:255;not null;uniqueIndex"`
	HashedPassword string `gorm:"not null"`
	UserType       string `gorm:"size:16;not null"`
	IsActive       bool   `gorm:"not null"`
	CreatedAt      time.Time

	Classes []Class `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (u User) IsAdmin() bool { return u.UserType == RoleAdmin }

// Class is the root of the ownership chain.
type Class struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	OwnerID   uint   `gorm:"not null;index"`
	CreatedAt time.Time

	Groups []Group `gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE"`
}

type Group struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	ClassID   uint   `gorm:"not null;index"`
	CreatedAt time.Time

	Students []Student `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
}

// Student.StudentID is the school-issued number; it is free text and not unique.
type Student struct {
	ID        uint    `gorm:"primaryKey"`
	StudentID string  `gorm:"size:64;not null"`
	Name      string  `gorm:"size:128;not null"`
	Weight    float64 `gorm:"not null"`
	GroupID   uint    `gorm:"not null;index"`
	CreatedAt time.Time
}

// RollCallRecord is immutable. GroupID is copied from the student when the
// record is written.
type RollCallRecord struct {
	ID        uint      `gorm:"primaryKey"`
	StudentID uint      `gorm:"not null;index"`
	GroupID   uint      `gorm:"not null;index"`
	ClassID   uint      `gorm:"not null;index"`
	CalledAt  time.Time `gorm:"not null;index"`

	Student Student `gorm:"constraint:OnDelete:CASCADE"`
	Group   Group   `gorm:"constraint:OnDelete:CASCADE"`
	Class   Class   `gorm:"constraint:OnDelete:CASCADE"`
}
