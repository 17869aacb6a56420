package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/academic-engine-api/internal/models"
	appErrors "github.com/noah-isme/academic-engine-api/pkg/errors"
)

// findClass loads a class of the caller's school. A class of another school
// is reported as not found.
func findClass(ctx context.Context, classes classReader, schoolID, classID, notFound string) (*models.Class, error) {
	class, err := classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return class, nil
}
