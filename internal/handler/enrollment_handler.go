package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine-api/internal/models"
	"github.com/noah-isme/academic-engine-api/internal/service"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
	"github.com/noah-isme/academic-engine-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, schoolID, id string) (*models.EnrollmentDetail, error)
	Generate(ctx context.Context, schoolID string, req service.GenerateRequest) (*service.GenerateReport, error)
	Classify(ctx context.Context, schoolID, id string) (*models.Enrollment, error)
	ClassifyClass(ctx context.Context, schoolID string, req service.ClassifyClassRequest) (*service.ClassificationReport, error)
	Confirm(ctx context.Context, schoolID, id string, req service.ConfirmRequest) (*models.Enrollment, error)
	BatchConfirm(ctx context.Context, schoolID string, req service.BatchConfirmRequest) (*service.BatchConfirmReport, error)
	RegisterExam(ctx context.Context, schoolID, id string, req service.ExamRequest) (*models.Enrollment, error)
	Cancel(ctx context.Context, schoolID, id string) (*models.Enrollment, error)
}

type classificationQueue interface {
	Submit(ctx context.Context, schoolID string, req service.ClassifyClassRequest) (*service.JobStatus, error)
	Status(schoolID, id string) (*service.JobStatus, error)
}

// PromotionExporter renders the class promotion sheet.
type PromotionExporter interface {
	PromotionSheet(ctx context.Context, schoolID string, req service.ExportRequest) (*service.ExportFile, error)
}

// EnrollmentHandler exposes the matricula lifecycle.
type EnrollmentHandler struct {
	enrollments enrollmentService
	jobs        classificationQueue
	exports     PromotionExporter
}

// NewEnrollmentHandler constructs EnrollmentHandler. jobs and exports may be
// nil, which disables async classification and exports respectively.
func NewEnrollmentHandler(enrollments enrollmentService, jobs classificationQueue, exports PromotionExporter) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, jobs: jobs, exports: exports}
}

// List godoc
// @Summary List matriculas
// @Tags Matriculas
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by origin class"
// @Param year query int false "Filter by origin year"
// @Param state query string false "PENDING, AWAITING_EXAM, CONFIRMED or CANCELLED"
// @Param verdict query string false "Filter by verdict"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "student_name, overall_average, state, created_at or updated_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /matriculas [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	year, ok := queryInt(c, "year")
	if !ok {
		return
	}
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	size, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		SchoolID:      schoolID,
		StudentID:     c.Query("studentId"),
		OriginClassID: c.Query("classId"),
		OriginYear:    year,
		State:         models.EnrollmentState(strings.ToUpper(c.Query("state"))),
		Verdict:       models.Verdict(strings.ToUpper(c.Query("verdict"))),
		Page:          page,
		PageSize:      size,
		SortBy:        c.Query("sort"),
		SortOrder:     c.Query("order"),
	}
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get a matricula
// @Tags Matriculas
// @Produce json
// @Param id path string true "Matricula ID"
// @Success 200 {object} response.Envelope
// @Router /matriculas/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), schoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Generate godoc
// @Summary Generate pending matriculas for a class
// @Tags Matriculas
// @Accept json
// @Produce json
// @Param payload body service.GenerateRequest true "Class and year"
// @Success 201 {object} response.Envelope
// @Router /matriculas/generate [post]
func (h *EnrollmentHandler) Generate(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	var req service.GenerateRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.enrollments.Generate(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// ClassifyClass godoc
// @Summary Classify every open matricula of a class
// @Description With async=true the run is queued and a job status is returned.
// @Tags Matriculas
// @Accept json
// @Produce json
// @Param payload body service.ClassifyClassRequest true "Class and year"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /matriculas/classify [post]
func (h *EnrollmentHandler) ClassifyClass(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	var req service.ClassifyClassRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Async {
		if h.jobs == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "asynchronous classification is not enabled"))
			return
		}
		status, err := h.jobs.Submit(c.Request.Context(), schoolID, req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, status, nil)
		return
	}
	report, err := h.enrollments.ClassifyClass(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// JobStatus godoc
// @Summary Status of a queued class classification
// @Tags Matriculas
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /matriculas/classify/jobs/{jobId} [get]
func (h *EnrollmentHandler) JobStatus(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "classification job not found"))
		return
	}
	status, err := h.jobs.Status(schoolID, c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Classify godoc
// @Summary Classify one matricula
// @Tags Matriculas
// @Produce json
// @Param id path string true "Matricula ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matriculas/{id}/classify [post]
func (h *EnrollmentHandler) Classify(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Classify(c.Request.Context(), schoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Confirm godoc
// @Summary Confirm a matricula into its destination class
// @Tags Matriculas
// @Accept json
// @Produce json
// @Param id path string true "Matricula ID"
// @Param payload body service.ConfirmRequest true "Destination class"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matriculas/{id}/confirm [post]
func (h *EnrollmentHandler) Confirm(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	var req service.ConfirmRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Confirm(c.Request.Context(), schoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// BatchConfirm godoc
// @Summary Confirm several matriculas into one class
// @Description Every id is attempted; the response lists the outcome per id.
// @Tags Matriculas
// @Accept json
// @Produce json
// @Param payload body service.BatchConfirmRequest true "Ids and destination class"
// @Success 200 {object} response.Envelope
// @Router /matriculas/batch-confirm [post]
func (h *EnrollmentHandler) BatchConfirm(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	var req service.BatchConfirmRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.enrollments.BatchConfirm(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// RegisterExam godoc
// @Summary Register an extraordinary exam result
// @Tags Matriculas
// @Accept json
// @Produce json
// @Param id path string true "Matricula ID"
// @Param payload body service.ExamRequest true "Exam result"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matriculas/{id}/exam [post]
func (h *EnrollmentHandler) RegisterExam(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	var req service.ExamRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.RegisterExam(c.Request.Context(), schoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Cancel godoc
// @Summary Cancel a pending matricula
// @Tags Matriculas
// @Produce json
// @Param id path string true "Matricula ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /matriculas/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Cancel(c.Request.Context(), schoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Export godoc
// @Summary Download the class promotion sheet
// @Tags Matriculas
// @Produce application/pdf
// @Produce text/csv
// @Param classId query string true "Origin class"
// @Param year query int false "Origin year"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /matriculas/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	var req service.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exports.PromotionSheet(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Data)
}
