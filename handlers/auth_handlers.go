package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"rollcall-server/apperr"
	"rollcall-server/db"
)

const invalidCredentialsMessage = "incorrect username or password"

// Login handles POST /auth/login
func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	username := req.Username

	allowed, err := h.Throttle.Allow(ctx, username)
	if err != nil {
		h.Logger.Warn("login throttle unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		h.respondError(c, apperr.New(apperr.ErrTooManyAttempts, "too many failed login attempts, try again later"))
		return
	}

	user, err := h.Store.UserByUsername(ctx, username)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		h.respondError(c, err)
		return
	}
	hash := ""
	if user != nil {
		hash = user.HashedPassword
	}
	if !h.Passwords.Verify(hash, req.Password) || user == nil || !user.IsActive {
		if err := h.Throttle.Fail(ctx, username); err != nil {
			h.Logger.Warn("record failed login", "error", err)
		}
		h.respondError(c, apperr.New(apperr.ErrInvalidCredentials, invalidCredentialsMessage))
		return
	}
	if err := h.Throttle.Reset(ctx, username); err != nil {
		h.Logger.Warn("reset login throttle", "error", err)
	}

	token, expiresAt, err := h.Tokens.Issue(user.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.Logger.Info("user logged in", "user_id", user.ID, "request_id", c.GetString(requestIDKey))
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        toUserResponse(*user),
	})
}

// Me handles GET /auth/me
func (h *APIHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, toUserResponse(*currentUser(c)))
}

// UpdateProfile handles PUT /auth/profile
func (h *APIHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
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
	if req.Password != nil && *req.Password != "" {
		hashed, err := h.hashPassword(*req.Password)
		if err != nil {
			h.respondError(c, err)
			return
		}
		patch.HashedPassword = &hashed
	}

	user, err := h.Store.UpdateUser(c.Request.Context(), currentUser(c).ID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(*user))
}

// ChangePassword handles PUT /auth/change-password
func (h *APIHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	user := currentUser(c)
	if !h.Passwords.Verify(user.HashedPassword, req.OldPassword) {
		h.respondError(c, apperr.InvalidInput("old password is incorrect"))
		return
	}
	hashed, err := h.hashPassword(req.NewPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if _, err := h.Store.UpdateUser(c.Request.Context(), user.ID, db.UserPatch{HashedPassword: &hashed}); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *APIHandler) hashPassword(password string) (string, error) {
	if password == "" {
		return "", apperr.InvalidInput("password is required")
	}
	hashed, err := h.Passwords.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.InvalidInput("password must be at most 72 bytes")
	}
	return hashed, err
}
