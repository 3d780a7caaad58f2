package service

import (
	"errors"
	"fmt"

	"crew-import/internal/crew"

	"github.com/gofiber/fiber/v2"
)

// ErrUnknownEntity is returned for an import key with no pipeline.
var ErrUnknownEntity = errors.New("unknown import entity")

// ConfigError means the service cannot reach the upstream at all. Nothing
// has been sent when it is returned.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InputError rejects a whole upload before any row is processed.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// StatusCode maps batch-fatal errors to the HTTP status the caller sees.
func StatusCode(err error) int {
	var (
		configErr     *ConfigError
		inputErr      *InputError
		resolutionErr *crew.ResolutionError
	)
	switch {
	case errors.Is(err, ErrUnknownEntity):
		return fiber.StatusNotFound
	case errors.As(err, &inputErr):
		return fiber.StatusBadRequest
	case errors.As(err, &configErr):
		return fiber.StatusInternalServerError
	case errors.As(err, &resolutionErr):
		if resolutionErr.Status >= 400 {
			return resolutionErr.Status
		}
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
}

func unknownEntity(key string) error {
	return fmt.Errorf("%w: %q", ErrUnknownEntity, key)
}
