package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nadir-hamid/fst-exams-api/internal/service"
	"github.com/nadir-hamid/fst-exams-api/pkg/response"
)

// ScheduleHandler serves student schedules, conflict reports and
// alternative-slot suggestions.
type ScheduleHandler struct {
	schedule  *service.ScheduleService
	conflicts *service.ConflictService
	requests  *service.RequestService
}

// NewScheduleHandler creates a new handler.
func NewScheduleHandler(schedule *service.ScheduleService, conflicts *service.ConflictService, requests *service.RequestService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, conflicts: conflicts, requests: requests}
}

// GetSchedule godoc
// @Summary Student schedule
// @Description Ordered schedule entries derived from the student's active enrollments
// @Tags Schedule
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/schedule [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	entries, err := h.schedule.BuildEntries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// GetConflicts godoc
// @Summary Student conflict report
// @Description Schedule entries plus every detected conflict, recomputed on each call
// @Tags Schedule
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/conflicts [get]
func (h *ScheduleHandler) GetConflicts(c *gin.Context) {
	report, err := h.conflicts.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// GetAlternatives godoc
// @Summary Alternative exam slots
// @Description Conflict-free candidate slots for the given exam, nearest to the preferred time first
// @Tags Schedule
// @Produce json
// @Param id path string true "Student ID"
// @Param examId path string true "Exam ID"
// @Param limit query int false "Maximum candidates"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/exams/{examId}/alternatives [get]
func (h *ScheduleHandler) GetAlternatives(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	slots, err := h.requests.PreviewAlternatives(c.Request.Context(), c.Param("id"), c.Param("examId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
