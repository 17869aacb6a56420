package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

func TestFormulaServiceValidateFormula(t *testing.T) {
	fx := newSchoolFixture()
	svc := NewFormulaService(fx.classes, fx.components, fx.formulas, nil, nil)
	ctx := context.Background()

	result, err := svc.ValidateFormula(ctx, "school-1", ValidateFormulaRequest{ClassID: "class-8a", SubjectID: "mat", Expression: "(MT1 + NPT) / 2"})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = svc.ValidateFormula(ctx, "school-1", ValidateFormulaRequest{ClassID: "class-8a", SubjectID: "mat", Expression: "(MAC + EXAME) / 2"})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "EXAME")

	result, err = svc.ValidateFormula(ctx, "school-1", ValidateFormulaRequest{ClassID: "class-8a", SubjectID: "mat", Expression: "max(MAC, NPP)"})
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = svc.ValidateFormula(ctx, "school-1", ValidateFormulaRequest{ClassID: "class-8a", SubjectID: "mat", Expression: "max(MAC, NPP)", Extended: true})
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = svc.ValidateFormula(ctx, "school-1", ValidateFormulaRequest{SubjectID: "mat", Expression: "MAC"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFormulaServiceHidesOtherSchoolsClasses(t *testing.T) {
	fx := newSchoolFixture()
	fx.components["mat-x"] = []models.GradeComponent{{Code: "SECRET", Weight: 100}}
	svc := NewFormulaService(fx.classes, fx.components, fx.formulas, nil, nil)
	ctx := context.Background()

	_, err := svc.ValidateFormula(ctx, "school-1", ValidateFormulaRequest{ClassID: "class-x", SubjectID: "mat-x", Expression: "SECRET"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.CheckWeights(ctx, "school-1", "class-x", "mat-x")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.CheckWeights(ctx, "school-1", "missing", "mat")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	reports, err := svc.CheckWeights(ctx, "school-2", "class-x", "mat-x")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Valid)
}

func TestFormulaServiceCheckWeights(t *testing.T) {
	components := fakeComponents{
		"mat": {
			{Code: "MAC", Weight: 33.33, Trimester: intPtr(2)},
			{Code: "NPP", Weight: 33.33, Trimester: intPtr(2)},
			{Code: "NPT", Weight: 33.34, Trimester: intPtr(2)},
			{Code: "MT2", IsCalculated: true, Trimester: intPtr(2)},
			{Code: "AC1", Weight: 30, Trimester: intPtr(1)},
			{Code: "EX", Weight: 50},
		},
	}
	svc := NewFormulaService(newSchoolFixture().classes, components, fakeFormulas{}, nil, nil)

	reports, err := svc.CheckWeights(context.Background(), "school-1", "class-8a", "mat")
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Nil(t, reports[0].Trimester)
	assert.False(t, reports[0].Valid)
	assert.Equal(t, 50.0, reports[0].TotalWeight)

	require.NotNil(t, reports[1].Trimester)
	assert.Equal(t, 1, *reports[1].Trimester)
	assert.False(t, reports[1].Valid)
	assert.Equal(t, []string{"AC1"}, reports[1].Components)

	assert.Equal(t, 2, *reports[2].Trimester)
	assert.True(t, reports[2].Valid)
	assert.Equal(t, 100.0, reports[2].TotalWeight)
	assert.Equal(t, []string{"MAC", "NPP", "NPT"}, reports[2].Components)

	_, err = svc.CheckWeights(context.Background(), "school-1", "", "mat")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFormulaServicePreview(t *testing.T) {
	svc := NewFormulaService(newSchoolFixture().classes, fakeComponents{}, fakeFormulas{}, nil, nil)
	ctx := context.Background()

	preview, err := svc.PreviewFormula(ctx, PreviewFormulaRequest{Expression: "(MAC + NPP) / 2", Values: map[string]float64{"MAC": 12, "NPP": 0}})
	require.NoError(t, err)
	assert.Equal(t, 6.0, preview.Result)
	assert.Equal(t, []string{"MAC", "NPP"}, preview.References)

	_, err = svc.PreviewFormula(ctx, PreviewFormulaRequest{Expression: "(MAC + NPP) / 2", Values: map[string]float64{"MAC": 12}})
	assert.Equal(t, appErrors.ErrEvaluation.Code, appErrors.FromError(err).Code)

	_, err = svc.PreviewFormula(ctx, PreviewFormulaRequest{Expression: "(MAC + NPP", Values: map[string]float64{"MAC": 12, "NPP": 1}})
	assert.Equal(t, appErrors.ErrInvalidFormula.Code, appErrors.FromError(err).Code)

	_, err = svc.PreviewFormula(ctx, PreviewFormulaRequest{Expression: "MAC / NPP", Values: map[string]float64{"MAC": 12, "NPP": 0}})
	assert.Equal(t, appErrors.ErrEvaluation.Code, appErrors.FromError(err).Code)

	preview, err = svc.PreviewFormula(ctx, PreviewFormulaRequest{Expression: "if(MAC >= 10, MAC, 0)", Values: map[string]float64{"MAC": 9}, Extended: true})
	require.NoError(t, err)
	assert.Equal(t, 0.0, preview.Result)

	_, err = svc.PreviewFormula(ctx, PreviewFormulaRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
