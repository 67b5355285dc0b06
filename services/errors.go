// services/errors.go
package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/gofiber/fiber/v2"

	"tournament-escrow-system/models"
)

// Error taxonomy. Every failure surfaced by a service wraps exactly one of
// these sentinels so handlers can map it to a stable reason code without
// string matching.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation")
	ErrPolicy       = errors.New("policy")
	ErrSolvency     = errors.New("solvency")
	ErrReplay       = errors.New("replay")
	ErrNotFound     = errors.New("not_found")
	ErrPaused       = errors.New("paused")
)

// maxLedgerAmount bounds every amount that enters permille fee math, so
// amount*permille cannot overflow int64.
const maxLedgerAmount = math.MaxInt64 / models.FeeDenominator

func checkLedgerAmount(amount int64) error {
	if amount > maxLedgerAmount {
		return fmt.Errorf("%w: amount %d exceeds the supported maximum %d", ErrValidation, amount, maxLedgerAmount)
	}
	return nil
}

// ErrorCode returns the stable machine-readable code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPolicy):
		return "policy"
	case errors.Is(err, ErrSolvency):
		return "solvency"
	case errors.Is(err, ErrReplay):
		return "replay"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPaused):
		return "paused"
	default:
		return "internal"
	}
}

// HTTPStatus maps err onto the response status used by every handler.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrPolicy):
		return fiber.StatusForbidden
	case errors.Is(err, ErrSolvency), errors.Is(err, ErrReplay):
		return fiber.StatusConflict
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrPaused):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// errorJSON renders err with its stable code. Handlers return it for every
// failed operation.
func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(HTTPStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  ErrorCode(err),
	})
}
