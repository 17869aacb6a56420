package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

type fakeClasses struct {
	classes  map[string]models.Class
	subjects map[string][]models.ClassSubject
}

func (f *fakeClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	class, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (f *fakeClasses) ListSubjects(ctx context.Context, classID string) ([]models.ClassSubject, error) {
	return f.subjects[classID], nil
}

type fakeRoster struct {
	students map[string]models.Student
	byClass  map[string][]string
}

func (f *fakeRoster) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (f *fakeRoster) ListActiveByClass(ctx context.Context, classID string, academicYear int) ([]models.Student, error) {
	var students []models.Student
	for _, id := range f.byClass[classID] {
		if s := f.students[id]; s.Active {
			students = append(students, s)
		}
	}
	return students, nil
}

type fakeComponents map[string][]models.GradeComponent

func (f fakeComponents) ListBySubject(ctx context.Context, classID, subjectID string) ([]models.GradeComponent, error) {
	return f[subjectID], nil
}

type fakeFormulas map[string][]models.GradeFormula

func (f fakeFormulas) ListBySubject(ctx context.Context, classID, subjectID string) ([]models.GradeFormula, error) {
	return f[subjectID], nil
}

type fakeValues struct {
	mu        sync.Mutex
	bySubject map[string][]models.GradeValue
	calls     int
}

func (f *fakeValues) ListValues(ctx context.Context, classID, subjectID, studentID string, academicYear int) ([]models.GradeValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var values []models.GradeValue
	for _, v := range f.bySubject[subjectID] {
		if studentID != "" && v.StudentID != studentID {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }

// schoolFixture is an 8th-grade class with two students. Mathematics is
// graded through MT/NF formulas and Physics through weighted components.
type schoolFixture struct {
	classes    *fakeClasses
	roster     *fakeRoster
	components fakeComponents
	formulas   fakeFormulas
	values     *fakeValues
}

func newSchoolFixture() *schoolFixture {
	return &schoolFixture{
		classes: &fakeClasses{
			classes: map[string]models.Class{
				"class-8a": {ID: "class-8a", SchoolID: "school-1", Name: "8ª Classe A", Label: "8ª Classe", Level: 8, EducationLevel: models.EducationSecondary, AcademicYear: 2024},
				"class-9a": {ID: "class-9a", SchoolID: "school-1", Name: "9ª Classe A", Label: "9ª Classe", Level: 9, EducationLevel: models.EducationSecondary, AcademicYear: 2025},
				"class-8b": {ID: "class-8b", SchoolID: "school-1", Name: "8ª Classe B", Label: "8ª Classe", Level: 8, EducationLevel: models.EducationSecondary, AcademicYear: 2025},
				"class-x":  {ID: "class-x", SchoolID: "school-2", Name: "9ª Classe X", Label: "9ª Classe", Level: 9, AcademicYear: 2025},
			},
			subjects: map[string][]models.ClassSubject{
				"class-8a": {
					{ClassID: "class-8a", SubjectID: "mat", SubjectName: "Matemática", SubjectCode: "MAT", Mandatory: true},
					{ClassID: "class-8a", SubjectID: "fis", SubjectName: "Física", SubjectCode: "FIS"},
					{ClassID: "class-8a", SubjectID: "por", SubjectName: "Língua Portuguesa", SubjectCode: "POR", Mandatory: true},
				},
			},
		},
		roster: &fakeRoster{
			students: map[string]models.Student{
				"stu-1": {ID: "stu-1", SchoolID: "school-1", FullName: "Ana João", Active: true},
				"stu-2": {ID: "stu-2", SchoolID: "school-1", FullName: "Bento Lopes", Active: true},
				"stu-9": {ID: "stu-9", SchoolID: "school-2", FullName: "Outra Escola", Active: true},
			},
			byClass: map[string][]string{"class-8a": {"stu-1", "stu-2"}},
		},
		components: fakeComponents{
			"mat": {
				{ID: "c-mac", Code: "MAC", Weight: 30, Trimester: intPtr(1)},
				{ID: "c-npp", Code: "NPP", Weight: 30, Trimester: intPtr(1)},
				{ID: "c-npt", Code: "NPT", Weight: 40, Trimester: intPtr(1)},
				{ID: "c-mt1", Code: "MT1", IsCalculated: true, Trimester: intPtr(1)},
			},
			"fis": {
				{ID: "c-t1", Code: "T1", Weight: 40},
				{ID: "c-t2", Code: "T2", Weight: 60},
			},
		},
		formulas: fakeFormulas{
			"mat": {
				{ID: "f-mt1", Kind: models.FormulaKindTrimester, Trimester: intPtr(1), TargetCode: "MT1", Expression: "(MAC + NPP + NPT) / 3"},
				{ID: "f-nf", Kind: models.FormulaKindFinal, Expression: "MT1"},
			},
		},
		values: &fakeValues{bySubject: map[string][]models.GradeValue{
			"mat": {
				{StudentID: "stu-1", ComponentID: "c-mac", Value: 12},
				{StudentID: "stu-1", ComponentID: "c-npp", Value: 14},
				{StudentID: "stu-1", ComponentID: "c-npt", Value: 16},
				{StudentID: "stu-2", ComponentID: "c-mac", Value: 9},
			},
			"fis": {
				{StudentID: "stu-1", ComponentID: "c-t1", Value: 15},
			},
		}},
	}
}

func (f *schoolFixture) gradeService(cache *CacheService) *GradeService {
	return NewGradeService(f.classes, f.roster, f.components, f.formulas, f.values, cache, nil, nil, nil)
}
