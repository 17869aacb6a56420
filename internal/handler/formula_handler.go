package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine-api/internal/models"
	"github.com/noah-isme/academic-engine-api/internal/service"
	"github.com/noah-isme/academic-engine-api/pkg/formula"
	"github.com/noah-isme/academic-engine-api/pkg/response"
)

type formulaService interface {
	ValidateFormula(ctx context.Context, schoolID string, req service.ValidateFormulaRequest) (formula.ValidationResult, error)
	CheckWeights(ctx context.Context, schoolID, classID, subjectID string) ([]models.WeightScopeReport, error)
	PreviewFormula(ctx context.Context, req service.PreviewFormulaRequest) (*service.FormulaPreview, error)
}

// FormulaHandler exposes formula validation and preview.
type FormulaHandler struct {
	formulas formulaService
}

// NewFormulaHandler constructs FormulaHandler.
func NewFormulaHandler(formulas formulaService) *FormulaHandler {
	return &FormulaHandler{formulas: formulas}
}

// Validate godoc
// @Summary Validate a grading formula against a subject's component codes
// @Tags Formulas
// @Accept json
// @Produce json
// @Param payload body service.ValidateFormulaRequest true "Formula"
// @Success 200 {object} response.Envelope
// @Router /formulas/validate [post]
func (h *FormulaHandler) Validate(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	var req service.ValidateFormulaRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.formulas.ValidateFormula(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Preview godoc
// @Summary Evaluate a formula with sample values
// @Tags Formulas
// @Accept json
// @Produce json
// @Param payload body service.PreviewFormulaRequest true "Expression and values"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /formulas/preview [post]
func (h *FormulaHandler) Preview(c *gin.Context) {
	var req service.PreviewFormulaRequest
	if !bindJSON(c, &req) {
		return
	}
	preview, err := h.formulas.PreviewFormula(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Weights godoc
// @Summary Check that component weights total 100% per trimester
// @Tags Formulas
// @Produce json
// @Param classId query string true "Class ID"
// @Param subjectId query string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /formulas/weights [get]
func (h *FormulaHandler) Weights(c *gin.Context) {
	schoolID, ok := schoolScope(c)
	if !ok {
		return
	}
	reports, err := h.formulas.CheckWeights(c.Request.Context(), schoolID, c.Query("classId"), c.Query("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	valid := true
	for _, r := range reports {
		valid = valid && r.Valid
	}
	response.JSON(c, http.StatusOK, reports, nil, map[string]interface{}{"valid": valid})
}
