package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-admin-service/internal/clients"
	"storefront-admin-service/internal/deletion"
	"storefront-admin-service/internal/editor"
	"storefront-admin-service/internal/models"
	"storefront-admin-service/internal/store"
)

// respondError maps component and catalog errors to an ErrorResponse
func respondError(c *gin.Context, err error) {
	status, code := classifyError(err)

	body := models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: errorMessage(err),
		},
	}

	var verrs models.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		details := models.JSON{}
		for field, msg := range verrs.Fields() {
			details[field] = msg
		}
		body.Error.Field = verrs[0].Field
		body.Error.Details = &details
	}

	c.JSON(status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	case errors.Is(err, editor.ErrUnknownField), errors.Is(err, editor.ErrInvalidValue):
		return http.StatusBadRequest, "INVALID_FIELD"
	case errors.Is(err, editor.ErrEmptyImage), errors.Is(err, editor.ErrUnsupportedImage):
		return http.StatusBadRequest, "INVALID_IMAGE"
	case errors.Is(err, editor.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE"
	case errors.Is(err, editor.ErrNoProductID):
		return http.StatusBadRequest, "PRODUCT_ID_REQUIRED"
	case errors.Is(err, store.ErrOperationInFlight), errors.Is(err, deletion.ErrAffordanceDisabled), errors.Is(err, editor.ErrSubmitting):
		return http.StatusConflict, "OPERATION_IN_PROGRESS"
	case errors.Is(err, deletion.ErrBusy):
		return http.StatusConflict, "CONFIRMATION_OPEN"
	case errors.Is(err, deletion.ErrNotPending):
		return http.StatusConflict, "CONFIRMATION_NOT_PENDING"
	case errors.Is(err, editor.ErrNotOpen):
		return http.StatusConflict, "SESSION_CLOSED"
	case errors.Is(err, store.ErrUnknownProduct):
		return http.StatusNotFound, "PRODUCT_NOT_FOUND"
	case errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, store.ErrTenantRequired):
		return http.StatusUnauthorized, "TENANT_REQUIRED"
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable, "SHUTTING_DOWN"
	}

	switch clients.KindOf(err) {
	case clients.KindNetwork:
		return http.StatusBadGateway, "CATALOG_UNAVAILABLE"
	case clients.KindValidation:
		return http.StatusUnprocessableEntity, "CATALOG_REJECTED"
	case clients.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case clients.KindUnauthorized:
		return http.StatusUnauthorized, "CATALOG_UNAUTHORIZED"
	case clients.KindServer:
		return http.StatusBadGateway, "CATALOG_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func errorMessage(err error) string {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return err.Error()
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

func successMessage(msg string) *string {
	if msg == "" {
		return nil
	}
	return &msg
}
