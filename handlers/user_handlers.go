package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall-server/apperr"
	"rollcall-server/db"
	"rollcall-server/models"
)

// ListUsers handles GET /users (admin)
func (h *APIHandler) ListUsers(c *gin.Context) {
	users, err := h.Store.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponses(users))
}

// CreateUser handles POST /users (admin)
func (h *APIHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	role, ok := models.NormalizeRole(req.UserType)
	if !ok {
		h.respondError(c, apperr.Newf(apperr.ErrInvalidInput, "unknown userType %q", req.UserType))
		return
	}
	hashed, err := h.hashPassword(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user := &models.User{
		Username:       strings.TrimSpace(req.Username),
		Email:          strings.TrimSpace(req.Email),
		HashedPassword: hashed,
		UserType:       role,
		IsActive:       true,
	}
	if err := h.Store.CreateUser(c.Request.Context(), user); err != nil {
		h.respondError(c, err)
		return
	}
	h.Logger.Info("user created", "user_id", user.ID, "user_type", user.UserType, "by", currentUser(c).ID)
	c.JSON(http.StatusCreated, toUserResponse(*user))
}

// UpdateUser handles PUT /users/:id (admin)
func (h *APIHandler) UpdateUser(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	var patch db.UserPatch
	if email := trimmedOrNil(req.Email); email != nil {
		if err := validateEmail(*email); err != nil {
			h.respondError(c, err)
			return
		}
		patch.Email = email
	}
	if req.UserType != nil {
		role, ok := models.NormalizeRole(*req.UserType)
		if !ok {
			h.respondError(c, apperr.Newf(apperr.ErrInvalidInput, "unknown userType %q", *req.UserType))
			return
		}
		if role != models.RoleAdmin && userID == currentUser(c).ID {
			h.respondError(c, apperr.InvalidInput("cannot remove your own admin role"))
			return
		}
		patch.UserType = &role
	}
	if req.Password != nil && *req.Password != "" {
		hashed, err := h.hashPassword(*req.Password)
		if err != nil {
			h.respondError(c, err)
			return
		}
		patch.HashedPassword = &hashed
	}
	if req.IsActive != nil {
		if !*req.IsActive && userID == currentUser(c).ID {
			h.respondError(c, apperr.InvalidInput("cannot deactivate yourself"))
			return
		}
		patch.IsActive = req.IsActive
	}

	user, err := h.Store.UpdateUser(c.Request.Context(), userID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

// DeleteUser handles DELETE /users/:id (admin). The user's classes are removed too.
func (h *APIHandler) DeleteUser(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if userID == currentUser(c).ID {
		h.respondError(c, apperr.InvalidInput("cannot delete yourself"))
		return
	}
	if err := h.Store.DeleteUser(c.Request.Context(), userID); err != nil {
		h.respondError(c, err)
		return
	}
	h.Logger.Info("user deleted", "user_id", userID, "by", currentUser(c).ID)
	c.JSON(http.StatusOK, messageResponse{Message: "user deleted"})
}

// ResetPassword handles PUT /users/:id/reset-password (admin)
func (h *APIHandler) ResetPassword(c *gin.Context) {
	userID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req resetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	hashed, err := h.hashPassword(req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if _, err := h.Store.UpdateUser(c.Request.Context(), userID, db.UserPatch{HashedPassword: &hashed}); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password reset"})
}
