package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

// WrapError tags a gorm error for the repository layer. Missing rows become NotFound.
func WrapError(ctx context.Context, err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, message, err, "")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, "")
}
