package handlers

import (
	"time"

	"rollcall-server/models"
)

// Request and response shapes. This file is the only place where the
// camelCase wire names are attached to the internal models.

type loginRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password" binding:"omitempty,max=72"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,max=72"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,max=72"`
}

type createUserRequest struct {
	Username string `json:"username" binding:"required,notblank,max=64"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=72"`
	UserType string `json:"userType"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	UserType *string `json:"userType"`
	Password *string `json:"password" binding:"omitempty,max=72"`
	IsActive *bool   `json:"isActive"`
}

type createClassRequest struct {
	Name string `json:"name" binding:"required,notblank,max=128"`
}

type renameRequest struct {
	Name *string `json:"name" binding:"omitempty,max=128"`
}

type createGroupRequest struct {
	ClassID uint   `json:"classId" binding:"required"`
	Name    string `json:"name" binding:"required,notblank,max=128"`
}

type createStudentRequest struct {
	GroupID   uint     `json:"groupId" binding:"required"`
	StudentID string   `json:"studentId" binding:"max=64"`
	Name      string   `json:"name" binding:"required,notblank,max=128"`
	Weight    *float64 `json:"weight" binding:"omitempty,gte=0"`
}

type updateStudentRequest struct {
	StudentID *string  `json:"studentId" binding:"omitempty,max=64"`
	Name      *string  `json:"name" binding:"omitempty,max=128"`
	Weight    *float64 `json:"weight" binding:"omitempty,gte=0"`
}

// rollCallRequest has no group field: the group always comes from the student.
type rollCallRequest struct {
	StudentID uint `json:"studentId" binding:"required"`
	ClassID   uint `json:"classId" binding:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	UserType  string    `json:"userType"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type tokenResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        userResponse `json:"user"`
}

type studentResponse struct {
	ID        uint      `json:"id"`
	StudentID string    `json:"studentId"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	GroupID   uint      `json:"groupId"`
	CreatedAt time.Time `json:"createdAt"`
}

type groupResponse struct {
	ID        uint              `json:"id"`
	Name      string            `json:"name"`
	ClassID   uint              `json:"classId"`
	CreatedAt time.Time         `json:"createdAt"`
	Students  []studentResponse `json:"students"`
}

type classResponse struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	OwnerID   uint            `json:"ownerId"`
	CreatedAt time.Time       `json:"createdAt"`
	Groups    []groupResponse `json:"groups"`
}

type rollCallResponse struct {
	ID        uint            `json:"id"`
	StudentID uint            `json:"studentId"`
	GroupID   uint            `json:"groupId"`
	ClassID   uint            `json:"classId"`
	CalledAt  time.Time       `json:"calledAt"`
	Student   studentResponse `json:"student"`
	ClassObj  classResponse   `json:"classObj"`
	GroupObj  groupResponse   `json:"groupObj"`
}

type importSkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Message       string             `json:"message"`
	ImportedCount int                `json:"importedCount"`
	GroupID       uint               `json:"groupId"`
	Skipped       []importSkippedRow `json:"skipped"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		UserType:  u.UserType,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func toUserResponses(users []models.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toStudentResponse(s models.Student) studentResponse {
	return studentResponse{
		ID:        s.ID,
		StudentID: s.StudentID,
		Name:      s.Name,
		Weight:    s.Weight,
		GroupID:   s.GroupID,
		CreatedAt: s.CreatedAt,
	}
}

func toStudentResponses(students []models.Student) []studentResponse {
	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, toStudentResponse(s))
	}
	return out
}

func toGroupResponse(g models.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		Name:      g.Name,
		ClassID:   g.ClassID,
		CreatedAt: g.CreatedAt,
		Students:  toStudentResponses(g.Students),
	}
}

func toGroupResponses(groups []models.Group) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupResponse(g))
	}
	return out
}

func toClassResponse(c models.Class) classResponse {
	return classResponse{
		ID:        c.ID,
		Name:      c.Name,
		OwnerID:   c.OwnerID,
		CreatedAt: c.CreatedAt,
		Groups:    toGroupResponses(c.Groups),
	}
}

func toClassResponses(classes []models.Class) []classResponse {
	out := make([]classResponse, 0, len(classes))
	for _, c := range classes {
		out = append(out, toClassResponse(c))
	}
	return out
}

func toRollCallResponse(r models.RollCallRecord) rollCallResponse {
	return rollCallResponse{
		ID:        r.ID,
		StudentID: r.StudentID,
		GroupID:   r.GroupID,
		ClassID:   r.ClassID,
		CalledAt:  r.CalledAt,
		Student:   toStudentResponse(r.Student),
		ClassObj:  toClassResponse(r.Class),
		GroupObj:  toGroupResponse(r.Group),
	}
}

func toRollCallResponses(records []models.RollCallRecord) []rollCallResponse {
	out := make([]rollCallResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toRollCallResponse(r))
	}
	return out
}
