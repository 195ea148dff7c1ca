// Package handler contains the HTTP handlers for the portal API.
package handler

import (
	deliverycontext "healthbridge/internal/delivery/context"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/policy"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// bind decodes the request into req and runs the struct validator.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.ErrValidationFailed.WithMessage("Invalid request body.")
	}

	return c.Validate(req)
}

// pathID parses the named path parameter as a UUID.
func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domainerrors.ErrValidationFailed.WithMessage("Invalid " + name + ".")
	}

	return id, nil
}

// currentActor returns the identity set by the session middleware.
func currentActor(c echo.Context) (policy.Actor, error) {
	actor, ok := deliverycontext.GetActor(c)
	if !ok {
		return policy.Actor{}, domainerrors.ErrUnauthorized
	}

	return actor, nil
}
