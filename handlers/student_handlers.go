package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"rollcall-server/apperr"
	"rollcall-server/db"
	"rollcall-server/models"
	"rollcall-server/spreadsheet"
)

const maxImportBytes = 10 << 20

// GetStudentsByGroup handles GET /groups/:id/students
func (h *APIHandler) GetStudentsByGroup(c *gin.Context) {
	groupID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	students, err := h.Store.ListStudents(c.Request.Context(), currentUser(c).ID, groupID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStudentResponses(students))
}

// AddStudent handles POST /students
func (h *APIHandler) AddStudent(c *gin.Context) {
	var req createStudentRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	weight := models.DefaultStudentWeight
	if req.Weight != nil {
		weight = *req.Weight
	}
	student, err := h.Store.CreateStudent(c.Request.Context(), currentUser(c).ID, models.Student{
		StudentID: strings.TrimSpace(req.StudentID),
		Name:      strings.TrimSpace(req.Name),
		Weight:    weight,
		GroupID:   req.GroupID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStudentResponse(*student))
}

// UpdateStudent handles PUT /students/:id. Only supplied fields change.
func (h *APIHandler) UpdateStudent(c *gin.Context) {
	studentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req updateStudentRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	student, err := h.Store.UpdateStudent(c.Request.Context(), currentUser(c).ID, studentID, db.StudentPatch{
		StudentID: trimmedOrNil(req.StudentID),
		Name:      trimmedOrNil(req.Name),
		Weight:    req.Weight,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStudentResponse(*student))
}

// DeleteStudent handles DELETE /students/:id
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	studentID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.DeleteStudent(c.Request.Context(), currentUser(c).ID, studentID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "student deleted"})
}

// ImportStudents handles POST /groups/:id/students/import with an xlsx roster
// in the multipart field "file". Either every valid row is stored or none is.
func (h *APIHandler) ImportStudents(c *gin.Context) {
	groupID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	ownerID := currentUser(c).ID
	ctx := c.Request.Context()
	if _, err := h.Store.GroupForOwner(ctx, ownerID, groupID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, apperr.InvalidInput("uploaded file is too large"))
			return
		}
		h.respondError(c, apperr.InvalidInput("no file uploaded in field 'file'"))
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		h.respondError(c, apperr.InvalidInput("only .xlsx files are supported"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("open uploaded file: %w", err))
		return
	}
	defer file.Close()

	rows, skipped, err := spreadsheet.ParseStudents(file)
	if err != nil {
		h.Logger.Warn("student import rejected", "group_id", groupID, "error", err)
		h.respondError(c, apperr.InvalidInput("could not read the excel file"))
		return
	}

	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		weight := models.DefaultStudentWeight
		if row.Weight != nil {
			weight = *row.Weight
		}
		students = append(students, models.Student{StudentID: row.StudentID, Name: row.Name, Weight: weight})
	}
	created, err := h.Store.CreateStudents(ctx, ownerID, groupID, students)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := importResponse{
		Message:       fmt.Sprintf("imported %d students", len(created)),
		ImportedCount: len(created),
		GroupID:       groupID,
		Skipped:       make([]importSkippedRow, 0, len(skipped)),
	}
	for _, s := range skipped {
		resp.Skipped = append(resp.Skipped, importSkippedRow{Line: s.Line, Reason: s.Reason})
	}
	h.Logger.Info("students imported", "group_id", groupID, "imported", len(created), "skipped", len(skipped))
	c.JSON(http.StatusOK, resp)
}
