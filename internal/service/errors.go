package service

import (
	"context"
	"errors"

	"foodorder/internal/model"
	"foodorder/internal/repository"
	"foodorder/internal/store"
)

// translate maps repository and store failures onto domain errors. Domain
// errors and context errors pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *model.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, repository.ErrInvalidKey):
		return model.ErrNotFound.Wrap(err)
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrConflict):
		return model.ErrDataStoreUnavailable.Wrap(err)
	}
	return err
}
