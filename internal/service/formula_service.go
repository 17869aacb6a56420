package service

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
	"github.com/noah-isme/academic-engine-api/pkg/formula"
)

// weightTolerance absorbs decimal weights such as 33.33 + 33.33 + 33.34.
const weightTolerance = 0.01

type componentReader interface {
	ListBySubject(ctx context.Context, classID, subjectID string) ([]models.GradeComponent, error)
}

type formulaReader interface {
	ListBySubject(ctx context.Context, classID, subjectID string) ([]models.GradeFormula, error)
}

// ValidateFormulaRequest asks whether an expression is acceptable for a
// class subject.
type ValidateFormulaRequest struct {
	ClassID    string `json:"class_id" validate:"required"`
	SubjectID  string `json:"subject_id" validate:"required"`
	Expression string `json:"expression"`
	Extended   bool   `json:"extended"`
}

// PreviewFormulaRequest evaluates an expression over caller-supplied values.
type PreviewFormulaRequest struct {
	Expression string             `json:"expression" validate:"required"`
	Values     map[string]float64 `json:"values"`
	Extended   bool               `json:"extended"`
}

// FormulaPreview is the outcome of PreviewFormula.
type FormulaPreview struct {
	Result     float64  `json:"result"`
	References []string `json:"references"`
}

// FormulaService validates and previews grading formulas and checks the
// weight configuration they rely on.
type FormulaService struct {
	classes    classReader
	components componentReader
	formulas   formulaReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewFormulaService constructs a FormulaService.
func NewFormulaService(classes classReader, components componentReader, formulas formulaReader, validate *validator.Validate, logger *zap.Logger) *FormulaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormulaService{classes: classes, components: components, formulas: formulas, validator: validate, logger: logger}
}

// ValidateFormula checks expression against the component codes of the class
// subject. Trimester-average target codes count as known codes so that NF
// formulas may reference them. An invalid formula is a normal result, not an
// error. The class must belong to schoolID.
func (s *FormulaService) ValidateFormula(ctx context.Context, schoolID string, req ValidateFormulaRequest) (formula.ValidationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return formula.ValidationResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid formula validation payload")
	}
	if _, err := findClass(ctx, s.classes, schoolID, req.ClassID, "class not found"); err != nil {
		return formula.ValidationResult{}, err
	}
	codes, err := s.knownCodes(ctx, req.ClassID, req.SubjectID)
	if err != nil {
		return formula.ValidationResult{}, err
	}
	if req.Extended {
		return formula.ValidateExtended(req.Expression, codes), nil
	}
	return formula.Validate(req.Expression, codes), nil
}

// CheckWeights reports, per trimester scope, whether the directly-entered
// components of a class subject total 100%. Violations are reported, never
// corrected.
func (s *FormulaService) CheckWeights(ctx context.Context, schoolID, classID, subjectID string) ([]models.WeightScopeReport, error) {
	if classID == "" || subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId and subjectId are required")
	}
	if _, err := findClass(ctx, s.classes, schoolID, classID, "class not found"); err != nil {
		return nil, err
	}
	components, err := s.components.ListBySubject(ctx, classID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade components")
	}
	return weightReports(components), nil
}

// PreviewFormula evaluates expression with the supplied values. Syntax
// problems surface as INVALID_FORMULA, missing values and non-finite results
// as EVALUATION_ERROR.
func (s *FormulaService) PreviewFormula(ctx context.Context, req PreviewFormulaRequest) (*FormulaPreview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid formula preview payload")
	}
	refs, err := formula.References(req.Expression, req.Extended)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormula.Code, appErrors.ErrInvalidFormula.Status, err.Error())
	}
	validate := formula.Validate
	evaluate := formula.Evaluate
	if req.Extended {
		validate = formula.ValidateExtended
		evaluate = formula.EvaluateExtended
	}
	if result := validate(req.Expression, refs); !result.Valid {
		return nil, appErrors.Wrap(result.Err(req.Expression), appErrors.ErrInvalidFormula.Code, appErrors.ErrInvalidFormula.Status, result.Error)
	}
	value, err := evaluate(req.Expression, req.Values)
	if err != nil {
		var evalErr *formula.EvaluationError
		if errors.As(err, &evalErr) {
			return nil, appErrors.Wrap(err, appErrors.ErrEvaluation.Code, appErrors.ErrEvaluation.Status, evalErr.Reason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrEvaluation.Code, appErrors.ErrEvaluation.Status, err.Error())
	}
	return &FormulaPreview{Result: value, References: refs}, nil
}

func (s *FormulaService) knownCodes(ctx context.Context, classID, subjectID string) ([]string, error) {
	components, err := s.components.ListBySubject(ctx, classID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade components")
	}
	formulas, err := s.formulas.ListBySubject(ctx, classID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade formulas")
	}
	codes := make([]string, 0, len(components)+len(formulas))
	for _, c := range components {
		codes = append(codes, c.Code)
	}
	for _, f := range formulas {
		if f.Kind == models.FormulaKindTrimester && f.TargetCode != "" {
			codes = append(codes, f.TargetCode)
		}
	}
	return codes, nil
}

func weightReports(components []models.GradeComponent) []models.WeightScopeReport {
	type scope struct {
		trimester *int
		total     float64
		codes     []string
	}
	scopes := map[int]*scope{}
	for _, c := range components {
		if c.IsCalculated {
			continue
		}
		key := 0
		if c.Trimester != nil {
			key = *c.Trimester
		}
		sc, ok := scopes[key]
		if !ok {
			sc = &scope{trimester: c.Trimester, codes: []string{}}
			scopes[key] = sc
		}
		sc.total += c.Weight
		sc.codes = append(sc.codes, c.Code)
	}

	keys := make([]int, 0, len(scopes))
	for k := range scopes {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	reports := make([]models.WeightScopeReport, 0, len(keys))
	for _, k := range keys {
		sc := scopes[k]
		total := math.Round(sc.total*100) / 100
		reports = append(reports, models.WeightScopeReport{
			Trimester:   sc.trimester,
			TotalWeight: total,
			Valid:       math.Abs(sc.total-100) <= weightTolerance,
			Components:  sc.codes,
		})
	}
	return reports
}
