package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine-api/internal/evaluation"
	"github.com/noah-isme/academic-engine-api/internal/models"
	"github.com/noah-isme/academic-engine-api/pkg/response"
)

type classificationPreviewer interface {
	PreviewClassification(req evaluation.ClassifyInput) (*models.Classification, error)
}

// ClassificationHandler exposes the promotion rules without persistence.
type ClassificationHandler struct {
	classifier classificationPreviewer
}

// NewClassificationHandler constructs ClassificationHandler.
func NewClassificationHandler(classifier classificationPreviewer) *ClassificationHandler {
	return &ClassificationHandler{classifier: classifier}
}

// Preview godoc
// @Summary Classify a discipline-grade set without touching any matricula
// @Tags Classifications
// @Accept json
// @Produce json
// @Param payload body evaluation.ClassifyInput true "Grades and context"
// @Success 200 {object} response.Envelope
// @Router /classifications/preview [post]
func (h *ClassificationHandler) Preview(c *gin.Context) {
	var req evaluation.ClassifyInput
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.classifier.PreviewClassification(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
