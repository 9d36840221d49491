package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetGroupsByClass handles GET /classes/:id/groups
func (h *APIHandler) GetGroupsByClass(c *gin.Context) {
	classID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	groups, err := h.Store.ListGroups(c.Request.Context(), currentUser(c).ID, classID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponses(groups))
}

// AddGroup handles POST /groups
func (h *APIHandler) AddGroup(c *gin.Context) {
	var req createGroupRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	group, err := h.Store.CreateGroup(c.Request.Context(), currentUser(c).ID, req.ClassID, strings.TrimSpace(req.Name))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toGroupResponse(*group))
}

// UpdateGroup handles PUT /groups/:id
func (h *APIHandler) UpdateGroup(c *gin.Context) {
	groupID, err := pathID(c, "id")
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
	group, err := h.Store.RenameGroup(c.Request.Context(), currentUser(c).ID, groupID, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(*group))
}

// DeleteGroup handles DELETE /groups/:id
func (h *APIHandler) DeleteGroup(c *gin.Context) {
	groupID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.DeleteGroup(c.Request.Context(), currentUser(c).ID, groupID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "group deleted"})
}
