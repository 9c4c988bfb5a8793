package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/toast"
)

// Messages announced by the resource handlers.
const (
	msgLoadFailed     = "Failed to load data."
	msgRequiredFields = "Please fill in all required fields."
	msgBookFailed     = "Failed to book appointment. Please try again."
	msgSaveFailed     = "Failed to save. Please try again."
	msgInvalidTime    = "Invalid time format. Use 'HH:MM' or 'HH:MM AM/PM'."
	msgInvalidID      = "Invalid id"
)

// announce shows a toast on every mounted surface. The bus never blocks, so
// this is safe on the request path; failures are logged and swallowed since
// a missing toast must not fail the request that caused it.
func (c *Controller) announce(variant toast.Variant, title, description string) {
	_, err := c.Bus.Announce(toast.Request{
		Title:       title,
		Description: description,
		Variant:     variant,
	})
	if err != nil {
		c.logger.Warn("failed to announce toast",
			logger.String("title", title),
			logger.String("variant", string(variant)),
			logger.Error(err))
	}
}

func (c *Controller) announceSuccess(title string) {
	c.announce(toast.VariantSuccess, title, "")
}

func (c *Controller) announceError(title, description string) {
	c.announce(toast.VariantError, title, description)
}

// failWithToast announces an error toast and writes the matching response.
func (c *Controller) failWithToast(ctx echo.Context, err error, title string) error {
	description := ""
	if err != nil && !isServerError(err) {
		description = err.Error()
	}
	c.announceError(title, description)
	return c.respondError(ctx, err)
}

// parseID reads a positive integer path parameter.
func parseID(ctx echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.Newf("%s must be positive", name).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}

// isServerError reports whether err maps onto a 5xx response.
func isServerError(err error) bool {
	return !errors.IsNotFound(err) &&
		!errors.IsValidation(err) &&
		!errors.IsCategory(err, errors.CategoryConflict) &&
		!errors.IsCategory(err, errors.CategoryAuthentication)
}
