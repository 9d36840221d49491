package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rollcall-server/apperr"
	"rollcall-server/db"
	"rollcall-server/spreadsheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RecordRollCall handles POST /roll-call
func (h *APIHandler) RecordRollCall(c *gin.Context) {
	var req rollCallRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	record, err := h.Store.CreateRollCall(c.Request.Context(), currentUser(c).ID, req.StudentID, req.ClassID, h.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRollCallResponse(*record))
}

// GetRollCallHistory handles GET /roll-call/history[?classId=]
func (h *APIHandler) GetRollCallHistory(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, err := h.Store.RollCallHistory(c.Request.Context(), currentUser(c).ID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRollCallResponses(records))
}

// ExportRollCallHistory handles GET /roll-call/history/export
func (h *APIHandler) ExportRollCallHistory(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	records, err := h.Store.RollCallHistory(c.Request.Context(), currentUser(c).ID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rows := make([]spreadsheet.HistoryRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, spreadsheet.HistoryRow{
			CalledAt:    r.CalledAt,
			ClassName:   r.Class.Name,
			GroupName:   r.Group.Name,
			StudentID:   r.Student.StudentID,
			StudentName: r.Student.Name,
		})
	}
	var buf bytes.Buffer
	if err := spreadsheet.WriteHistory(&buf, rows); err != nil {
		h.respondError(c, fmt.Errorf("export roll call history: %w", err))
		return
	}

	filename := fmt.Sprintf("rollcall-history-%s.xlsx", h.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func historyFilter(c *gin.Context) (db.HistoryFilter, error) {
	var filter db.HistoryFilter
	raw := c.Query("classId")
	if raw == "" {
		raw = c.Query("class_id")
	}
	if raw == "" {
		return filter, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return filter, apperr.InvalidInput("invalid classId")
	}
	filter.ClassID = uint(id)
	return filter, nil
}
