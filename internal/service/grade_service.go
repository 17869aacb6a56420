package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine-api/internal/evaluation"
	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
	"github.com/noah-isme/academic-engine-api/pkg/formula"
)

// Methods used to compute a subject final.
const (
	FinalMethodFormula         = "formula"
	FinalMethodWeightedAverage = "weighted_average"
)

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListSubjects(ctx context.Context, classID string) ([]models.ClassSubject, error)
}

type rosterReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActiveByClass(ctx context.Context, classID string, academicYear int) ([]models.Student, error)
}

type gradeValueReader interface {
	ListValues(ctx context.Context, classID, subjectID, studentID string, academicYear int) ([]models.GradeValue, error)
}

// AggregateRequest is an ad-hoc weighted aggregation.
type AggregateRequest struct {
	Values     []evaluation.ComponentValue  `json:"values" validate:"dive"`
	Components []evaluation.ComponentWeight `json:"components" validate:"required,min=1,dive"`
}

// GradeService computes subject finals from recorded component values.
type GradeService struct {
	classes    classReader
	students   rosterReader
	components componentReader
	formulas   formulaReader
	values     gradeValueReader
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewGradeService constructs a GradeService. cache and metrics may be nil.
func NewGradeService(classes classReader, students rosterReader, components componentReader, formulas formulaReader, values gradeValueReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		classes:    classes,
		students:   students,
		components: components,
		formulas:   formulas,
		values:     values,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// SubjectFinals computes the final grade of every active student of a class
// in one subject. A student whose formula fails gets an error row; the rest
// of the class is unaffected. year 0 means the class's academic year.
func (s *GradeService) SubjectFinals(ctx context.Context, schoolID, classID, subjectID string, year int) ([]models.SubjectFinal, error) {
	class, err := s.loadClass(ctx, schoolID, classID)
	if err != nil {
		return nil, err
	}
	return s.subjectFinals(ctx, class, subjectID, resolveYear(year, class))
}

// StudentFinals computes one student's finals across every subject of the
// class. Subjects without any grade are omitted.
func (s *GradeService) StudentFinals(ctx context.Context, schoolID, classID, studentID string, year int) ([]models.SubjectFinal, error) {
	class, err := s.loadClass(ctx, schoolID, classID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SchoolID != class.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	subjects, err := s.classes.ListSubjects(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}

	year = resolveYear(year, class)
	finals := make([]models.SubjectFinal, 0, len(subjects))
	for _, subject := range subjects {
		rows, err := s.computeFinals(ctx, class.ID, subject, []models.Student{*student}, student.ID, year)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.FinalGrade == nil && row.Error == "" {
				continue
			}
			finals = append(finals, row)
		}
	}
	return finals, nil
}

// ClassStatistics summarises the finals of a class subject. Results are
// cached; refresh bypasses the cached entry and rewrites it.
func (s *GradeService) ClassStatistics(ctx context.Context, schoolID, classID, subjectID string, year int, refresh bool) (*models.ClassStatistics, error) {
	class, err := s.loadClass(ctx, schoolID, classID)
	if err != nil {
		return nil, err
	}
	year = resolveYear(year, class)
	key := StatisticsKey(class.ID, subjectID, year)

	if !refresh {
		var cached models.ClassStatistics
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	finals, err := s.subjectFinals(ctx, class, subjectID, year)
	if err != nil {
		return nil, err
	}
	grades := make([]float64, 0, len(finals))
	for _, f := range finals {
		if f.FinalGrade != nil {
			grades = append(grades, *f.FinalGrade)
		}
	}
	stats := evaluation.AggregateClassStatistics(grades)
	_ = s.cache.Set(ctx, key, stats, 0)
	return &stats, nil
}

// InvalidateStatistics drops every cached statistics entry of a class. Grade
// entry happens outside this service, so writers call this after editing values.
func (s *GradeService) InvalidateStatistics(ctx context.Context, schoolID, classID string) error {
	class, err := s.loadClass(ctx, schoolID, classID)
	if err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, StatisticsClassPattern(class.ID)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate statistics cache")
	}
	return nil
}

// Aggregate exposes the renormalising weighted aggregation directly.
func (s *GradeService) Aggregate(req AggregateRequest) (*evaluation.FinalGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aggregation payload")
	}
	seen := make(map[string]struct{}, len(req.Components))
	for _, c := range req.Components {
		if _, dup := seen[c.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("component %s declared twice", c.ID))
		}
		seen[c.ID] = struct{}{}
	}
	result, err := evaluation.AggregateFinalGrade(req.Values, req.Components)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrEvaluation.Code, appErrors.ErrEvaluation.Status, err.Error())
	}
	return &result, nil
}

func (s *GradeService) loadClass(ctx context.Context, schoolID, classID string) (*models.Class, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	return findClass(ctx, s.classes, schoolID, classID, "class not found")
}

func (s *GradeService) subjectFinals(ctx context.Context, class *models.Class, subjectID string, year int) ([]models.SubjectFinal, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId is required")
	}
	subjects, err := s.classes.ListSubjects(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}
	var subject *models.ClassSubject
	for i := range subjects {
		if subjects[i].SubjectID == subjectID {
			subject = &subjects[i]
			break
		}
	}
	if subject == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject is not taught in this class")
	}
	students, err := s.students.ListActiveByClass(ctx, class.ID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	return s.computeFinals(ctx, class.ID, *subject, students, "", year)
}

func (s *GradeService) computeFinals(ctx context.Context, classID string, subject models.ClassSubject, students []models.Student, studentID string, year int) ([]models.SubjectFinal, error) {
	components, err := s.components.ListBySubject(ctx, classID, subject.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade components")
	}
	formulas, err := s.formulas.ListBySubject(ctx, classID, subject.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade formulas")
	}
	values, err := s.values.ListValues(ctx, classID, subject.SubjectID, studentID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade values")
	}

	byStudent := make(map[string][]models.GradeValue)
	for _, v := range values {
		byStudent[v.StudentID] = append(byStudent[v.StudentID], v)
	}

	finals := make([]models.SubjectFinal, 0, len(students))
	for _, student := range students {
		row := models.SubjectFinal{
			StudentID:   student.ID,
			StudentName: student.FullName,
			SubjectID:   subject.SubjectID,
			SubjectName: subject.SubjectName,
		}
		log := s.logger.With(
			zap.String("class_id", classID),
			zap.String("subject_id", subject.SubjectID),
			zap.String("student_id", student.ID))
		final, method, err := computeStudentFinal(log, byStudent[student.ID], components, formulas)
		row.Method = method
		if err != nil {
			s.metrics.RecordFormulaError()
			log.Warn("subject final not computable", zap.Error(err))
			row.Error = err.Error()
		} else if final != nil {
			row.FinalGrade = final
			row.Classification = evaluation.ClassificationLabel(*final)
			row.Passed = *final >= evaluation.PassingGrade
		}
		finals = append(finals, row)
	}
	return finals, nil
}

// computeStudentFinal evaluates MT formulas into their target codes and then
// the NF formula. Without an NF formula the directly-entered components are
// aggregated with renormalised weights. A student with no values yields nil.
func computeStudentFinal(log *zap.Logger, values []models.GradeValue, components []models.GradeComponent, formulas []models.GradeFormula) (*float64, string, error) {
	if len(values) == 0 {
		return nil, "", nil
	}
	codeByID := make(map[string]string, len(components))
	for _, c := range components {
		codeByID[c.ID] = c.Code
	}

	var final *models.GradeFormula
	for i := range formulas {
		if formulas[i].Kind == models.FormulaKindFinal {
			final = &formulas[i]
			break
		}
	}

	var result float64
	method := FinalMethodWeightedAverage
	if final != nil {
		method = FinalMethodFormula
		scope := make(map[string]float64, len(values)+len(formulas))
		for _, v := range values {
			if code, ok := codeByID[v.ComponentID]; ok {
				scope[code] = v.Value
			}
		}
		for target, err := range resolveTrimesterAverages(formulas, scope) {
			log.Warn("trimester average not computable", zap.String("target_code", target), zap.Error(err))
		}
		value, err := evaluateFormula(*final, scope)
		if err != nil {
			return nil, method, err
		}
		result = value
	} else {
		weights := make([]evaluation.ComponentWeight, 0, len(components))
		for _, c := range components {
			if !c.IsCalculated {
				weights = append(weights, evaluation.ComponentWeight{ID: c.ID, WeightPercent: c.Weight})
			}
		}
		submitted := make([]evaluation.ComponentValue, 0, len(values))
		for _, v := range values {
			submitted = append(submitted, evaluation.ComponentValue{ComponentID: v.ComponentID, Value: v.Value})
		}
		aggregated, err := evaluation.AggregateFinalGrade(submitted, weights)
		if errors.Is(err, evaluation.ErrNothingGraded) {
			return nil, method, nil
		}
		if err != nil {
			return nil, method, err
		}
		result = aggregated.FinalGrade
	}

	rounded := math.Round(result*100) / 100
	if rounded < 0 || rounded > 20 {
		return nil, method, fmt.Errorf("final grade %.2f is outside the 0-20 scale", rounded)
	}
	return &rounded, method, nil
}

// resolveTrimesterAverages writes each MT formula result into scope under its
// target code. An MT formula may reference another MT target regardless of
// list order, so passes repeat until one resolves nothing new. The returned
// map holds the last error of every target left unresolved.
func resolveTrimesterAverages(formulas []models.GradeFormula, scope map[string]float64) map[string]error {
	pending := make([]models.GradeFormula, 0, len(formulas))
	for _, f := range formulas {
		if f.Kind == models.FormulaKindTrimester && f.TargetCode != "" {
			pending = append(pending, f)
		}
	}
	failed := make(map[string]error)
	for len(pending) > 0 {
		next := pending[:0]
		for _, f := range pending {
			mt, err := evaluateFormula(f, scope)
			if err != nil {
				failed[f.TargetCode] = err
				next = append(next, f)
				continue
			}
			scope[f.TargetCode] = mt
			delete(failed, f.TargetCode)
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return failed
}

func evaluateFormula(f models.GradeFormula, scope map[string]float64) (float64, error) {
	if f.Extended {
		return formula.EvaluateExtended(f.Expression, scope)
	}
	return formula.Evaluate(f.Expression, scope)
}

func resolveYear(year int, class *models.Class) int {
	if year > 0 {
		return year
	}
	return class.AcademicYear
}
