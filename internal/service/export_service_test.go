package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

type fakeClassSheet []models.EnrollmentDetail

func (f fakeClassSheet) ListByOriginClass(ctx context.Context, classID string, originYear int) ([]models.EnrollmentDetail, error) {
	return f, nil
}

func promotionSheetRecords() fakeClassSheet {
	avg, attendance, level := 10.75, 90.0, 9
	return fakeClassSheet{
		{
			Enrollment: models.Enrollment{
				ID:                    "mat-1",
				State:                 models.EnrollmentStateAwaitingExam,
				Verdict:               verdictPtr(models.VerdictConditional),
				OverallAverage:        &avg,
				AttendancePercent:     &attendance,
				DestinationClassLevel: &level,
				Observation:           "Exame extraordinário em Física.",
			},
			StudentName: "Ana João",
		},
		{
			Enrollment:  models.Enrollment{ID: "mat-2", State: models.EnrollmentStatePending},
			StudentName: "Bento Lopes",
		},
	}
}

func TestExportServicePromotionSheetCSV(t *testing.T) {
	svc := NewExportService(promotionSheetRecords(), newSchoolFixture().classes, nil, nil, nil)

	file, err := svc.PromotionSheet(context.Background(), "school-1", ExportRequest{ClassID: "class-8a", Format: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, "pauta_8a_classe_a_2024.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Nº;Aluno;Média;Assiduidade;Resultado;Classe de destino;Situação;Observação", lines[0])
	assert.Equal(t, "1;Ana João;10.75;90.00%;Transita condicionalmente;9ª Classe;Aguarda exame;Exame extraordinário em Física.", lines[1])
	assert.Equal(t, "2;Bento Lopes;;;;;Pendente;", lines[2])
}

func TestExportServicePromotionSheetPDF(t *testing.T) {
	svc := NewExportService(promotionSheetRecords(), newSchoolFixture().classes, nil, nil, nil)

	file, err := svc.PromotionSheet(context.Background(), "school-1", ExportRequest{ClassID: "class-8a", Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceRejects(t *testing.T) {
	svc := NewExportService(fakeClassSheet{}, newSchoolFixture().classes, nil, nil, nil)

	_, err := svc.PromotionSheet(context.Background(), "school-1", ExportRequest{ClassID: "class-8a", Format: "xlsx"})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(err))

	_, err = svc.PromotionSheet(context.Background(), "school-2", ExportRequest{ClassID: "class-8a"})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(err))

	_, err = svc.PromotionSheet(context.Background(), "school-1", ExportRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(err))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "8a_classe_a", sanitizeFilename("8ª Classe A"))
	assert.Equal(t, "lingua_portuguesa", sanitizeFilename("Língua  Portuguesa!"))
	assert.Equal(t, "turma", sanitizeFilename("***"))
}
