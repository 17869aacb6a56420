package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
	"github.com/noah-isme/academic-engine-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var filenameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

type classMatriculaReader interface {
	ListByOriginClass(ctx context.Context, classID string, originYear int) ([]models.EnrollmentDetail, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportRequest selects the promotion sheet to render.
type ExportRequest struct {
	ClassID string `form:"classId"`
	Year    int    `form:"year"`
	Format  string `form:"format"`
}

// ExportFile is a rendered document ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the class promotion sheet (pauta de transição).
type ExportService struct {
	enrollments classMatriculaReader
	classes     classReader
	renderers   map[string]renderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the default CSV and PDF exporters.
func NewExportService(enrollments classMatriculaReader, classes classReader, logger *zap.Logger, csv, pdf renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(map[string]float64{"Nº": 0.5, "Aluno": 3, "Observação": 5})
	}
	return &ExportService{
		enrollments: enrollments,
		classes:     classes,
		renderers:   map[string]renderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:      logger,
	}
}

// PromotionSheet renders the verdict and destination of every matrícula
// generated from the class.
func (s *ExportService) PromotionSheet(ctx context.Context, schoolID string, req ExportRequest) (*ExportFile, error) {
	if req.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	format := strings.ToLower(req.Format)
	if format == "" {
		format = ExportFormatPDF
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	class, err := findClass(ctx, s.classes, schoolID, req.ClassID, "class not found")
	if err != nil {
		return nil, err
	}
	year := resolveYear(req.Year, class)
	records, err := s.enrollments.ListByOriginClass(ctx, class.ID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class matriculas")
	}

	data, err := r.Render(promotionDataset(class, year, records))
	if err != nil {
		s.logger.Error("promotion sheet render failed", zap.String("class_id", class.ID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render promotion sheet")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("pauta_%s_%d.%s", sanitizeFilename(class.Name), year, r.Extension()),
		ContentType: r.ContentType(),
		Data:        data,
	}, nil
}

var promotionHeaders = []string{"Nº", "Aluno", "Média", "Assiduidade", "Resultado", "Classe de destino", "Situação", "Observação"}

func promotionDataset(class *models.Class, year int, records []models.EnrollmentDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for i, r := range records {
		row := map[string]string{
			"Nº":         strconv.Itoa(i + 1),
			"Aluno":      r.StudentName,
			"Resultado":  verdictLabel(r.Verdict),
			"Situação":   stateLabel(r.State),
			"Observação": r.Observation,
		}
		if r.OverallAverage != nil {
			row["Média"] = fmt.Sprintf("%.2f", *r.OverallAverage)
		}
		if r.AttendancePercent != nil {
			row["Assiduidade"] = fmt.Sprintf("%.2f%%", *r.AttendancePercent)
		}
		if r.DestinationClassLevel != nil {
			row["Classe de destino"] = fmt.Sprintf("%dª Classe", *r.DestinationClassLevel)
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:    fmt.Sprintf("Pauta de Transição: %s", class.Name),
		Subtitle: fmt.Sprintf("Ano lectivo %d/%d", year, year+1),
		Headers:  promotionHeaders,
		Rows:     rows,
	}
}

func verdictLabel(v *models.Verdict) string {
	if v == nil {
		return ""
	}
	switch *v {
	case models.VerdictTransitions:
		return "Transita"
	case models.VerdictDoesNotTransition:
		return "Não transita"
	case models.VerdictConditional:
		return "Transita condicionalmente"
	case models.VerdictAwaitingGrades:
		return "Aguarda notas"
	default:
		return string(*v)
	}
}

func stateLabel(state models.EnrollmentState) string {
	switch state {
	case models.EnrollmentStatePending:
		return "Pendente"
	case models.EnrollmentStateAwaitingExam:
		return "Aguarda exame"
	case models.EnrollmentStateConfirmed:
		return "Confirmada"
	case models.EnrollmentStateCancelled:
		return "Anulada"
	default:
		return string(state)
	}
}

// sanitizeFilename folds accents and keeps lowercase ASCII letters and
// digits, e.g. "8ª Classe A" -> "8a_classe_a".
func sanitizeFilename(raw string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		folded = raw
	}
	result := strings.Trim(filenameUnsafe.ReplaceAllString(strings.ToLower(folded), "_"), "_")
	if result == "" {
		return "turma"
	}
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
