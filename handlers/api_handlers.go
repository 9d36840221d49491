package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall-server/auth"
	"rollcall-server/db"
	"rollcall-server/internal/logger"
)

// APIHandler holds the dependencies shared by every handler.
type APIHandler struct {
	Store     *db.Store
	Tokens    *auth.TokenService
	Passwords auth.PasswordHasher
	Throttle  auth.Throttle
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewAPIHandler creates a new APIHandler. A nil throttle disables login lockout.
func NewAPIHandler(store *db.Store, tokens *auth.TokenService, passwords auth.PasswordHasher, throttle auth.Throttle, log *slog.Logger) *APIHandler {
	if throttle == nil {
		throttle = auth.NewMemoryThrottle(0, 0)
	}
	return &APIHandler{
		Store:     store,
		Tokens:    tokens,
		Passwords: passwords,
		Throttle:  throttle,
		Logger:    logger.Resolve(log),
		Now:       time.Now,
	}
}

// --- Class Handlers ---

// GetAllClasses handles GET /classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	classes, err := h.Store.ListClasses(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClassResponses(classes))
}

// AddClass handles POST /classes
func (h *APIHandler) AddClass(c *gin.Context) {
	var req createClassRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	class, err := h.Store.CreateClass(c.Request.Context(), currentUser(c).ID, strings.TrimSpace(req.Name))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClassResponse(*class))
}

// UpdateClass handles PUT /classes/:id
func (h *APIHandler) UpdateClass(c *gin.Context) {
	classID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req renameRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}

	name := ""
	if trimmed := trimmedOrNil(req.Name); trimmed != nil {
		name = *trimmed
	}
	class, err := h.Store.RenameClass(c.Request.Context(), currentUser(c).ID, classID, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClassResponse(*class))
}

// DeleteClass handles DELETE /classes/:id; groups, students and records go with it.
func (h *APIHandler) DeleteClass(c *gin.Context) {
	classID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.DeleteClass(c.Request.Context(), currentUser(c).ID, classID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "class deleted"})
}

// --- Ping Handler ---

// PingHandler handles GET /ping and checks the database is reachable.
func (h *APIHandler) PingHandler(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.Logger.Warn("ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
