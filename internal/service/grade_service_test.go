package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/academic-engine-api/internal/evaluation"
	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

func TestGradeServiceSubjectFinalsFormula(t *testing.T) {
	fx := newSchoolFixture()
	svc := fx.gradeService(nil)

	finals, err := svc.SubjectFinals(context.Background(), "school-1", "class-8a", "mat", 0)
	require.NoError(t, err)
	require.Len(t, finals, 2)

	ana := finals[0]
	assert.Equal(t, "Ana João", ana.StudentName)
	assert.Equal(t, FinalMethodFormula, ana.Method)
	require.NotNil(t, ana.FinalGrade)
	assert.Equal(t, 14.0, *ana.FinalGrade)
	assert.Equal(t, evaluation.LabelGood, ana.Classification)
	assert.True(t, ana.Passed)

	bento := finals[1]
	assert.Nil(t, bento.FinalGrade)
	assert.Contains(t, bento.Error, "MT1")
	assert.False(t, bento.Passed)
}

func TestGradeServiceTrimesterAveragesResolveOutOfOrder(t *testing.T) {
	fx := newSchoolFixture()
	fx.formulas["mat"] = []models.GradeFormula{
		{ID: "f-nf", Kind: models.FormulaKindFinal, Expression: "MT2"},
		{ID: "f-mt2", Kind: models.FormulaKindTrimester, Trimester: intPtr(2), TargetCode: "MT2", Expression: "(MT1 + NPT) / 2"},
		{ID: "f-mt1", Kind: models.FormulaKindTrimester, Trimester: intPtr(1), TargetCode: "MT1", Expression: "(MAC + NPP + NPT) / 3"},
	}
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewGradeService(fx.classes, fx.roster, fx.components, fx.formulas, fx.values, nil, nil, nil, zap.New(core))

	finals, err := svc.SubjectFinals(context.Background(), "school-1", "class-8a", "mat", 0)
	require.NoError(t, err)
	require.Len(t, finals, 2)

	require.NotNil(t, finals[0].FinalGrade)
	assert.Equal(t, 15.0, *finals[0].FinalGrade)
	assert.Empty(t, finals[0].Error)

	assert.Nil(t, finals[1].FinalGrade)
	assert.Contains(t, finals[1].Error, "MT2")

	skipped := logs.FilterMessage("trimester average not computable").All()
	require.Len(t, skipped, 2)
	targets := []string{}
	for _, entry := range skipped {
		assert.Equal(t, "stu-2", entry.ContextMap()["student_id"])
		targets = append(targets, entry.ContextMap()["target_code"].(string))
	}
	assert.ElementsMatch(t, []string{"MT1", "MT2"}, targets)
}

func TestResolveTrimesterAveragesStopsWithoutProgress(t *testing.T) {
	formulas := []models.GradeFormula{
		{Kind: models.FormulaKindTrimester, TargetCode: "MT3", Expression: "(MT1 + MT2) / 2"},
		{Kind: models.FormulaKindTrimester, TargetCode: "MT2", Expression: "MT1 + X"},
		{Kind: models.FormulaKindTrimester, TargetCode: "MT1", Expression: "MAC"},
		{Kind: models.FormulaKindFinal, Expression: "MT3"},
	}
	scope := map[string]float64{"MAC": 10}

	failed := resolveTrimesterAverages(formulas, scope)

	assert.Equal(t, 10.0, scope["MT1"])
	assert.NotContains(t, scope, "MT2")
	assert.NotContains(t, scope, "MT3")
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, "MT2")
	assert.Contains(t, failed, "MT3")
}

func TestGradeServiceSubjectFinalsWeightedFallback(t *testing.T) {
	fx := newSchoolFixture()
	svc := fx.gradeService(nil)

	finals, err := svc.SubjectFinals(context.Background(), "school-1", "class-8a", "fis", 2024)
	require.NoError(t, err)
	require.Len(t, finals, 2)

	require.NotNil(t, finals[0].FinalGrade)
	assert.Equal(t, 15.0, *finals[0].FinalGrade)
	assert.Equal(t, FinalMethodWeightedAverage, finals[0].Method)

	assert.Nil(t, finals[1].FinalGrade)
	assert.Empty(t, finals[1].Error)
}

func TestGradeServiceSubjectFinalsScoping(t *testing.T) {
	fx := newSchoolFixture()
	svc := fx.gradeService(nil)

	_, err := svc.SubjectFinals(context.Background(), "school-2", "class-8a", "mat", 0)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.SubjectFinals(context.Background(), "school-1", "class-8a", "qui", 0)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.SubjectFinals(context.Background(), "school-1", "missing", "mat", 0)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceStudentFinals(t *testing.T) {
	fx := newSchoolFixture()
	svc := fx.gradeService(nil)

	finals, err := svc.StudentFinals(context.Background(), "school-1", "class-8a", "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, finals, 2)
	assert.Equal(t, "mat", finals[0].SubjectID)
	assert.Equal(t, "fis", finals[1].SubjectID)

	finals, err = svc.StudentFinals(context.Background(), "school-1", "class-8a", "stu-2", 0)
	require.NoError(t, err)
	require.Len(t, finals, 1)
	assert.NotEmpty(t, finals[0].Error)

	_, err = svc.StudentFinals(context.Background(), "school-1", "class-8a", "stu-9", 0)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceClassStatisticsCached(t *testing.T) {
	fx := newSchoolFixture()
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	svc := fx.gradeService(cache)
	ctx := context.Background()

	stats, err := svc.ClassStatistics(ctx, "school-1", "class-8a", "fis", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 15.0, stats.Mean)
	assert.Equal(t, 1, fx.values.calls)

	stats, err = svc.ClassStatistics(ctx, "school-1", "class-8a", "fis", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, fx.values.calls)

	_, err = svc.ClassStatistics(ctx, "school-1", "class-8a", "fis", 0, true)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.values.calls)
}

func TestGradeServiceInvalidateStatistics(t *testing.T) {
	fx := newSchoolFixture()
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, nil, true)
	svc := fx.gradeService(cache)
	ctx := context.Background()

	_, err := svc.ClassStatistics(ctx, "school-1", "class-8a", "fis", 0, false)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateStatistics(ctx, "school-1", "class-8a"))

	_, err = svc.ClassStatistics(ctx, "school-1", "class-8a", "fis", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.values.calls)

	err = svc.InvalidateStatistics(ctx, "school-1", "class-x")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeServiceClassStatisticsEmpty(t *testing.T) {
	fx := newSchoolFixture()
	fx.values.bySubject = nil
	svc := fx.gradeService(nil)

	stats, err := svc.ClassStatistics(context.Background(), "school-1", "class-8a", "mat", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.PassRate)
	assert.Equal(t, 0, stats.Distribution[evaluation.LabelExcellent])
}

func TestGradeServiceAggregate(t *testing.T) {
	svc := newSchoolFixture().gradeService(nil)

	result, err := svc.Aggregate(AggregateRequest{
		Values:     []evaluation.ComponentValue{{ComponentID: "a", Value: 12}},
		Components: []evaluation.ComponentWeight{{ID: "a", WeightPercent: 40}, {ID: "b", WeightPercent: 60}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 12.0, result.FinalGrade, 1e-9)

	_, err = svc.Aggregate(AggregateRequest{
		Components: []evaluation.ComponentWeight{{ID: "a", WeightPercent: 50}, {ID: "a", WeightPercent: 50}},
	})
	assert.Equal(t, appErrors.ErrInvalidWeights.Code, appErrors.FromError(err).Code)

	_, err = svc.Aggregate(AggregateRequest{
		Components: []evaluation.ComponentWeight{{ID: "a", WeightPercent: 100}},
	})
	assert.Equal(t, appErrors.ErrEvaluation.Code, appErrors.FromError(err).Code)

	_, err = svc.Aggregate(AggregateRequest{
		Values:     []evaluation.ComponentValue{{ComponentID: "a", Value: 25}},
		Components: []evaluation.ComponentWeight{{ID: "a", WeightPercent: 100}},
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
