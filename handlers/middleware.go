package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"rollcall-server/apperr"
	"rollcall-server/models"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "requestID"
	currentUserKey  = "currentUser"
)

// RequestID echoes the caller's X-Request-Id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func (h *APIHandler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.Logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// RequireUser resolves the bearer token to an active user.
func (h *APIHandler) RequireUser(c *gin.Context) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		h.respondError(c, apperr.New(apperr.ErrUnauthenticated, "not authenticated"))
		return
	}
	username, err := h.Tokens.Parse(token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.Store.UserByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = apperr.New(apperr.ErrUnauthenticated, "could not validate credentials")
		}
		h.respondError(c, err)
		return
	}
	if !user.IsActive {
		h.respondError(c, apperr.New(apperr.ErrUnauthenticated, "inactive user"))
		return
	}
	c.Set(currentUserKey, user)
	c.Next()
}

// RequireAdmin must run after RequireUser.
func (h *APIHandler) RequireAdmin(c *gin.Context) {
	user := currentUser(c)
	if user == nil || !user.IsAdmin() {
		h.respondError(c, apperr.New(apperr.ErrForbidden, "admin privileges required"))
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) *models.User {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
