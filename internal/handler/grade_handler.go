package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine-api/internal/evaluation"
	"github.com/noah-isme/academic-engine-api/internal/models"
	"github.com/noah-isme/academic-engine-api/internal/service"
	"github.com/noah-isme/academic-engine-api/pkg/response"
)

type gradeService interface {
	Aggregate(req service.AggregateRequest) (*evaluation.FinalGrade, error)
	SubjectFinals(ctx context.Context, schoolID, classID, subjectID string, year int) ([]models.SubjectFinal, error)
	StudentFinals(ctx context.Context, schoolID, classID, studentID string, year int) ([]models.SubjectFinal, error)
	ClassStatistics(ctx context.Context, schoolID, classID, subjectID string, year int, refresh bool) (*models.ClassStatistics, error)
	InvalidateStatistics(ctx context.Context, schoolID, classID string) error
}

// GradeHandler exposes final grade computation.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Aggregate godoc
// @Summary Aggregate component values with renormalised weights
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.AggregateRequest true "Values and weights"
// @Success 200 {object} response.Envelope
// @Router /grades/aggregate [post]
func (h *GradeHandler) Aggregate(c *gin.Context) {
	var req service.AggregateRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.grades.Aggregate(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Finals godoc
// @Summary Subject finals of a class, or of one student across subjects
// @Tags Grades
// @Produce json
// @Param classId query string true "Class ID"
// @Param subjectId query string false "Subject ID (class view)"
// @Param studentId query string false "Student ID (student view)"
// @Param year query int false "Academic year"
// @Success 200 {object} response.Envelope
// @Router /grades/finals [get]
func (h *GradeHandler) Finals(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	var (
		finals []models.SubjectFinal
		err    error
	)
	if studentID := c.Query("studentId"); studentID != "" {
		finals, err = h.grades.StudentFinals(c.Request.Context(), schoolID, c.Query("classId"), studentID, year)
	} else {
		finals, err = h.grades.SubjectFinals(c.Request.Context(), schoolID, c.Query("classId"), c.Query("subjectId"), year)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, finals, nil)
}

// Statistics godoc
// @Summary Class statistics for a subject
// @Tags Grades
// @Produce json
// @Param classId query string true "Class ID"
// @Param subjectId query string true "Subject ID"
// @Param year query int false "Academic year"
// @Param refresh query bool false "Bypass the cache"
// @Success 200 {object} response.Envelope
// @Router /grades/statistics [get]
func (h *GradeHandler) Statistics(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(c.Query("refresh"))
	stats, err := h.grades.ClassStatistics(c.Request.Context(), schoolID, c.Query("classId"), c.Query("subjectId"), year, refresh)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// InvalidateStatistics godoc
// @Summary Drop cached statistics of a class
// @Tags Grades
// @Param classId query string true "Class ID"
// @Success 204
// @Router /grades/statistics [delete]
func (h *GradeHandler) InvalidateStatistics(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	if err := h.grades.InvalidateStatistics(c.Request.Context(), schoolID, c.Query("classId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
