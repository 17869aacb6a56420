package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/academic-engine-api/internal/evaluation"
	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

const uniqueViolation = "23505"

// Outcomes of one item in a class-wide classification run.
const (
	ItemClassified = "classified"
	ItemSkipped    = "skipped"
	ItemFailed     = "failed"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForStudentYear(ctx context.Context, studentID string, originYear int) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	ListByOriginClass(ctx context.Context, classID string, originYear int) ([]models.EnrollmentDetail, error)
	UpdateTransition(ctx context.Context, enrollment *models.Enrollment) (bool, error)
}

type finalsProvider interface {
	StudentFinals(ctx context.Context, schoolID, classID, studentID string, year int) ([]models.SubjectFinal, error)
}

type attendanceReader interface {
	FindPercent(ctx context.Context, studentID string, academicYear int) (*float64, error)
}

// EnrollmentConfig tunes the state machine.
type EnrollmentConfig struct {
	MaxClassLevel int
	Concurrency   int
}

// GenerateRequest asks for the matrículas of a class's active students.
type GenerateRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Year    int    `json:"year" validate:"omitempty,gte=2000,lte=2100"`
}

// GenerateReport lists what Generate created and skipped.
type GenerateReport struct {
	ClassID string   `json:"class_id"`
	Year    int      `json:"year"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

// ClassifyClassRequest selects the matrículas classified in one run.
type ClassifyClassRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	Year    int    `json:"year" validate:"omitempty,gte=2000,lte=2100"`
	Async   bool   `json:"async"`
}

// ClassificationItem is the outcome for one matrícula of a class run.
type ClassificationItem struct {
	EnrollmentID string          `json:"enrollment_id"`
	StudentID    string          `json:"student_id"`
	StudentName  string          `json:"student_name"`
	Status       string          `json:"status"`
	Verdict      *models.Verdict `json:"verdict,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ClassificationReport aggregates a class-wide classification run.
type ClassificationReport struct {
	ClassID    string                 `json:"class_id"`
	Year       int                    `json:"year"`
	Total      int                    `json:"total"`
	Classified int                    `json:"classified"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
	Verdicts   map[models.Verdict]int `json:"verdicts"`
	Items      []ClassificationItem   `json:"items"`
}

// ConfirmRequest carries the destination class of a confirmation.
type ConfirmRequest struct {
	DestinationClassID string `json:"destination_class_id" validate:"required"`
}

// BatchConfirmRequest confirms several matrículas into one class.
type BatchConfirmRequest struct {
	IDs                []string `json:"ids" validate:"required,min=1,dive,required"`
	DestinationClassID string   `json:"destination_class_id" validate:"required"`
}

// BatchConfirmResult is the outcome for one id of a batch.
type BatchConfirmResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchConfirmReport aggregates a batch confirmation.
type BatchConfirmReport struct {
	Confirmed int                  `json:"confirmed"`
	Failed    int                  `json:"failed"`
	Results   []BatchConfirmResult `json:"results"`
}

// ExamRequest records an extraordinary exam result. A destination class
// confirms the matrícula in the same step.
type ExamRequest struct {
	Passed             *bool   `json:"passed" validate:"required"`
	Grade              float64 `json:"grade" validate:"gte=0,lte=20"`
	ExamDate           string  `json:"exam_date" validate:"required,datetime=2006-01-02"`
	DestinationClassID string  `json:"destination_class_id"`
}

// EnrollmentService drives the matrícula lifecycle:
// PENDING -> AWAITING_EXAM -> CONFIRMED | CANCELLED.
type EnrollmentService struct {
	repo       enrollmentRepository
	classes    classReader
	students   rosterReader
	finals     finalsProvider
	attendance attendanceReader
	metrics    *MetricsService
	config     EnrollmentConfig
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes classReader, students rosterReader, finals finalsProvider, attendance attendanceReader, metrics *MetricsService, cfg EnrollmentConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxClassLevel <= 0 {
		cfg.MaxClassLevel = 13
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &EnrollmentService{
		repo:       repo,
		classes:    classes,
		students:   students,
		finals:     finals,
		attendance: attendance,
		metrics:    metrics,
		config:     cfg,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns matrículas with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list matriculas")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a matrícula of the school.
func (s *EnrollmentService) Get(ctx context.Context, schoolID, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matricula not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matricula")
	}
	if detail.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "matricula not found")
	}
	return detail, nil
}

// Generate creates one PENDING matrícula per active student of the class.
// Students that already hold a non-cancelled matrícula for the year are
// skipped, so repeated calls never duplicate records.
func (s *EnrollmentService) Generate(ctx context.Context, schoolID string, req GenerateRequest) (*GenerateReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	class, err := findClass(ctx, s.classes, schoolID, req.ClassID, "class not found")
	if err != nil {
		return nil, err
	}
	year := resolveYear(req.Year, class)
	if year <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "academic year is required")
	}
	students, err := s.students.ListActiveByClass(ctx, class.ID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	level := classLevel(class)
	educationLevel := class.EducationLevel
	if educationLevel == "" && level > 0 {
		educationLevel = evaluation.EducationLevelForClass(level)
	}

	report := &GenerateReport{ClassID: class.ID, Year: year, Created: []string{}, Skipped: []string{}}
	for _, student := range students {
		exists, err := s.repo.ExistsForStudentYear(ctx, student.ID, year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing matricula")
		}
		if exists {
			report.Skipped = append(report.Skipped, student.ID)
			continue
		}
		enrollment := &models.Enrollment{
			SchoolID:           class.SchoolID,
			StudentID:          student.ID,
			OriginClassID:      class.ID,
			OriginClassLabel:   classLabel(class),
			OriginClassLevel:   level,
			EducationLevel:     educationLevel,
			Track:              class.Track,
			OriginYear:         year,
			DestinationYear:    year + 1,
			State:              models.EnrollmentStatePending,
			Reasons:            pq.StringArray{},
			AtRiskSubjects:     pq.StringArray{},
			RecommendedActions: pq.StringArray{},
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				report.Skipped = append(report.Skipped, student.ID)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create matricula")
		}
		report.Created = append(report.Created, enrollment.ID)
	}

	s.logger.Info("matriculas generated",
		zap.String("class_id", class.ID),
		zap.Int("year", year),
		zap.Int("created", len(report.Created)),
		zap.Int("skipped", len(report.Skipped)))
	return report, nil
}

// Classify computes the promotion verdict of one matrícula and writes it
// onto the record. A Conditional verdict moves the record to AWAITING_EXAM;
// every other verdict leaves it PENDING.
func (s *EnrollmentService) Classify(ctx context.Context, schoolID, id string) (*models.Enrollment, error) {
	enrollment, err := s.load(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}
	if err := s.classify(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ClassifyClass classifies every open matrícula of a class with bounded
// parallelism. Failures are reported per item and never stop the run.
func (s *EnrollmentService) ClassifyClass(ctx context.Context, schoolID string, req ClassifyClassRequest) (*ClassificationReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classification payload")
	}
	class, err := findClass(ctx, s.classes, schoolID, req.ClassID, "class not found")
	if err != nil {
		return nil, err
	}
	year := resolveYear(req.Year, class)
	records, err := s.repo.ListByOriginClass(ctx, class.ID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class matriculas")
	}

	start := s.now()
	items := make([]ClassificationItem, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i := range records {
		i := i
		record := records[i].Enrollment
		items[i] = ClassificationItem{EnrollmentID: record.ID, StudentID: record.StudentID, StudentName: records[i].StudentName}
		if reason := classifyBlocked(&record); reason != "" {
			items[i].Status = ItemSkipped
			items[i].Error = reason
			continue
		}
		g.Go(func() error {
			if err := s.classify(gctx, &record); err != nil {
				items[i].Status = ItemFailed
				items[i].Error = appErrors.FromError(err).Message
				return nil
			}
			items[i].Status = ItemClassified
			items[i].Verdict = record.Verdict
			return nil
		})
	}
	_ = g.Wait()

	report := &ClassificationReport{ClassID: class.ID, Year: year, Total: len(items), Verdicts: map[models.Verdict]int{}, Items: items}
	for _, item := range items {
		switch item.Status {
		case ItemClassified:
			report.Classified++
			report.Verdicts[*item.Verdict]++
		case ItemSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	s.metrics.ObserveClassification(s.now().Sub(start))
	s.logger.Info("class classified",
		zap.String("class_id", class.ID),
		zap.Int("year", year),
		zap.Int("classified", report.Classified),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Confirm enrolls the student into the destination class for the next year.
// The same call serves promoted and repeating students.
func (s *EnrollmentService) Confirm(ctx context.Context, schoolID, id string, req ConfirmRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirm payload")
	}
	enrollment, err := s.load(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}
	if enrollment.State != models.EnrollmentStatePending {
		return nil, invalidTransition(enrollment, "confirm")
	}
	if enrollment.Verdict == nil || (*enrollment.Verdict != models.VerdictTransitions && *enrollment.Verdict != models.VerdictDoesNotTransition) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("matricula %s has no final verdict to confirm", enrollment.ID))
	}
	if err := s.checkDestination(ctx, enrollment, req.DestinationClassID); err != nil {
		return nil, err
	}

	from := enrollment.State
	now := s.now().UTC()
	destination := req.DestinationClassID
	enrollment.DestinationClassID = &destination
	enrollment.State = models.EnrollmentStateConfirmed
	enrollment.ConfirmedAt = &now
	if err := s.persist(ctx, enrollment, from); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// BatchConfirm confirms each id independently into one destination class.
func (s *EnrollmentService) BatchConfirm(ctx context.Context, schoolID string, req BatchConfirmRequest) (*BatchConfirmReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch confirm payload")
	}
	report := &BatchConfirmReport{Results: make([]BatchConfirmResult, 0, len(req.IDs))}
	for _, id := range req.IDs {
		result := BatchConfirmResult{ID: id}
		if _, err := s.Confirm(ctx, schoolID, id, ConfirmRequest{DestinationClassID: req.DestinationClassID}); err != nil {
			appErr := appErrors.FromError(err)
			result.Code = appErr.Code
			result.Error = appErr.Message
			report.Failed++
		} else {
			result.Success = true
			report.Confirmed++
		}
		report.Results = append(report.Results, result)
	}
	s.logger.Info("batch confirm finished",
		zap.String("destination_class_id", req.DestinationClassID),
		zap.Int("confirmed", report.Confirmed),
		zap.Int("failed", report.Failed))
	return report, nil
}

// RegisterExam settles an AWAITING_EXAM matrícula. A pass promotes to the
// next level, a fail repeats the origin level. Without a destination class
// the record returns to PENDING awaiting Confirm.
func (s *EnrollmentService) RegisterExam(ctx context.Context, schoolID, id string, req ExamRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	examDate, err := time.Parse("2006-01-02", req.ExamDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam date")
	}
	enrollment, err := s.load(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}
	if enrollment.State != models.EnrollmentStateAwaitingExam || enrollment.ExamPassed != nil {
		return nil, invalidTransition(enrollment, "register an exam result for")
	}

	passed := *req.Passed
	resolution := evaluation.ResolveExam(enrollment.OriginClassLevel, s.config.MaxClassLevel, passed, req.Grade)
	verdict := resolution.Verdict
	destinationLevel := resolution.DestinationLevel
	grade := req.Grade
	enrollment.Verdict = &verdict
	enrollment.DestinationClassLevel = &destinationLevel
	enrollment.Observation = resolution.Observation
	enrollment.RetentionReason = resolution.RetentionReason
	enrollment.ExamPassed = &passed
	enrollment.ExamGrade = &grade
	enrollment.ExamDate = &examDate
	if passed {
		enrollment.Reasons = append(enrollment.Reasons, fmt.Sprintf("passed extraordinary exam (%.1f)", req.Grade))
	} else {
		enrollment.Reasons = append(enrollment.Reasons, *resolution.RetentionReason)
	}

	from := enrollment.State
	enrollment.State = models.EnrollmentStatePending
	if req.DestinationClassID != "" {
		if err := s.checkDestination(ctx, enrollment, req.DestinationClassID); err != nil {
			return nil, err
		}
		now := s.now().UTC()
		destination := req.DestinationClassID
		enrollment.DestinationClassID = &destination
		enrollment.State = models.EnrollmentStateConfirmed
		enrollment.ConfirmedAt = &now
	}
	if err := s.persist(ctx, enrollment, from); err != nil {
		return nil, err
	}
	s.metrics.RecordVerdict(enrollment.EducationLevel, verdict)
	return enrollment, nil
}

// Cancel withdraws a PENDING matrícula.
func (s *EnrollmentService) Cancel(ctx context.Context, schoolID, id string) (*models.Enrollment, error) {
	enrollment, err := s.load(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}
	if enrollment.State != models.EnrollmentStatePending {
		return nil, invalidTransition(enrollment, "cancel")
	}
	from := enrollment.State
	now := s.now().UTC()
	enrollment.State = models.EnrollmentStateCancelled
	enrollment.CancelledAt = &now
	if err := s.persist(ctx, enrollment, from); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// PreviewClassification runs the promotion rules without touching any
// record.
func (s *EnrollmentService) PreviewClassification(req evaluation.ClassifyInput) (*models.Classification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classification payload")
	}
	result := evaluation.Classify(req)
	return &result, nil
}

func (s *EnrollmentService) classify(ctx context.Context, enrollment *models.Enrollment) error {
	if reason := classifyBlocked(enrollment); reason != "" {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("matricula %s: %s", enrollment.ID, reason))
	}

	finals, err := s.finals.StudentFinals(ctx, enrollment.SchoolID, enrollment.OriginClassID, enrollment.StudentID, enrollment.OriginYear)
	if err != nil {
		return err
	}
	grades := make([]models.SubjectGrade, 0, len(finals))
	var failed []string
	for _, f := range finals {
		if f.Error != "" {
			failed = append(failed, fmt.Sprintf("%s: %s", f.SubjectName, f.Error))
			continue
		}
		grades = append(grades, models.SubjectGrade{ID: f.SubjectID, Name: f.SubjectName, Grade: *f.FinalGrade})
	}
	if len(failed) > 0 {
		return appErrors.Clone(appErrors.ErrEvaluation, "subject grades could not be computed: "+strings.Join(failed, "; "))
	}

	subjects, err := s.classes.ListSubjects(ctx, enrollment.OriginClassID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}
	var mandatory []string
	for _, subject := range subjects {
		if subject.Mandatory {
			mandatory = append(mandatory, subject.SubjectID)
		}
	}
	sort.Strings(mandatory)

	attendance, err := s.attendance.FindPercent(ctx, enrollment.StudentID, enrollment.OriginYear)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	result := evaluation.Classify(evaluation.ClassifyInput{
		SubjectGrades:       grades,
		EducationLevel:      enrollment.EducationLevel,
		ClassLabel:          enrollment.OriginClassLabel,
		MandatorySubjectIDs: mandatory,
		AttendancePercent:   attendance,
	})

	from := enrollment.State
	enrollment.ApplyClassification(result)
	enrollment.AttendancePercent = attendance
	enrollment.OverallAverage = nil
	if avg, ok := evaluation.OverallAverage(grades); ok {
		enrollment.OverallAverage = &avg
	}
	enrollment.DestinationClassLevel = nil
	level := enrollment.OriginClassLevel
	if level <= 0 {
		level, _ = evaluation.ParseClassLevel(enrollment.OriginClassLabel)
	}
	switch result.Verdict {
	case models.VerdictTransitions, models.VerdictConditional:
		next := evaluation.NextClassLevel(level, s.config.MaxClassLevel)
		enrollment.DestinationClassLevel = &next
	case models.VerdictDoesNotTransition:
		enrollment.DestinationClassLevel = &level
	}
	enrollment.State = models.EnrollmentStatePending
	if result.Verdict == models.VerdictConditional {
		enrollment.State = models.EnrollmentStateAwaitingExam
	}

	if err := s.persist(ctx, enrollment, from); err != nil {
		return err
	}
	s.metrics.RecordVerdict(enrollment.EducationLevel, result.Verdict)
	return nil
}

// persist applies the in-memory record with an optimistic version check. A
// lost race re-reads the record and reports the state it now holds.
func (s *EnrollmentService) persist(ctx context.Context, enrollment *models.Enrollment, from models.EnrollmentState) error {
	applied, err := s.repo.UpdateTransition(ctx, enrollment)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update matricula")
	}
	if !applied {
		current, err := s.repo.FindByID(ctx, enrollment.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload matricula")
		}
		s.logger.Warn("matricula changed concurrently",
			zap.String("enrollment_id", enrollment.ID),
			zap.String("state", string(current.State)))
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("matricula %s was modified concurrently and is now %s", enrollment.ID, current.State))
	}
	s.metrics.RecordTransition(from, enrollment.State)
	s.logger.Info("matricula transition",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("from", string(from)),
		zap.String("to", string(enrollment.State)),
		zap.String("class_id", enrollment.OriginClassID))
	return nil
}

func (s *EnrollmentService) load(ctx context.Context, schoolID, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "matricula not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load matricula")
	}
	if enrollment.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "matricula not found")
	}
	return enrollment, nil
}

// checkDestination requires a class of the same school, in the destination
// year and at the resolved destination level when those are known.
func (s *EnrollmentService) checkDestination(ctx context.Context, enrollment *models.Enrollment, classID string) error {
	class, err := findClass(ctx, s.classes, enrollment.SchoolID, classID, "destination class not found")
	if err != nil {
		return err
	}
	if class.AcademicYear != 0 && enrollment.DestinationYear != 0 && class.AcademicYear != enrollment.DestinationYear {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("destination class belongs to academic year %d, expected %d", class.AcademicYear, enrollment.DestinationYear))
	}
	if enrollment.DestinationClassLevel != nil {
		if level := classLevel(class); level != 0 && level != *enrollment.DestinationClassLevel {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("destination class is level %d, expected %d", level, *enrollment.DestinationClassLevel))
		}
	}
	return nil
}

// classifyBlocked explains why a record cannot be (re)classified, or
// returns an empty string.
func classifyBlocked(enrollment *models.Enrollment) string {
	switch {
	case enrollment.State == models.EnrollmentStateConfirmed || enrollment.State == models.EnrollmentStateCancelled:
		return fmt.Sprintf("cannot classify a %s matricula", enrollment.State)
	case enrollment.ExamPassed != nil:
		return "extraordinary exam result already registered"
	default:
		return ""
	}
}

func invalidTransition(enrollment *models.Enrollment, action string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s matricula %s in state %s", action, enrollment.ID, enrollment.State))
}

func classLevel(class *models.Class) int {
	if class.Level > 0 {
		return class.Level
	}
	if level, ok := evaluation.ParseClassLevel(classLabel(class)); ok {
		return level
	}
	return 0
}

func classLabel(class *models.Class) string {
	if class.Label != "" {
		return class.Label
	}
	return class.Name
}
