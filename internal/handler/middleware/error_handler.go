package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/makkenzo/ledgerpro-license-api/internal/handler/dto"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"go.uber.org/zap"
)

func ErrorHandlerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("ErrorHandler")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, errResponse := describeError(err)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", fields...)
		} else {
			log.Info("Request rejected", fields...)
		}

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, errResponse)
	}
}

func describeError(err error) (int, dto.APIErrorResponse) {
	status := http.StatusInternalServerError
	errResponse := dto.APIErrorResponse{
		Code:  "INTERNAL_ERROR",
		Error: "An unexpected error occurred.",
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		errResponse.Code = "VALIDATION_ERROR"
		errResponse.Error = "Input validation failed."
		errResponse.Details = buildValidationErrors(ve)
		return http.StatusBadRequest, errResponse
	}

	switch {
	case errors.Is(err, ierr.ErrValidation), errors.Is(err, ierr.ErrInvalidLicenseType):
		status = http.StatusBadRequest
		errResponse.Code = "VALIDATION_ERROR"
		errResponse.Error = err.Error()
	case errors.Is(err, ierr.ErrInvalidSignature):
		status = http.StatusBadRequest
		errResponse.Code = "INVALID_SIGNATURE"
		errResponse.Error = ierr.ErrInvalidSignature.Error()
	case errors.Is(err, ierr.ErrInvalidWebhookSignature):
		status = http.StatusBadRequest
		errResponse.Code = "INVALID_SIGNATURE"
		errResponse.Error = ierr.ErrInvalidWebhookSignature.Error()
	case errors.Is(err, ierr.ErrUnauthorized), errors.Is(err, ierr.ErrInvalidToken):
		status = http.StatusUnauthorized
		errResponse.Code = "UNAUTHENTICATED"
		errResponse.Error = "Unauthorized access"
	case errors.Is(err, ierr.ErrPaymentNotCaptured):
		status = http.StatusPaymentRequired
		errResponse.Code = "PAYMENT_NOT_CAPTURED"
		errResponse.Error = err.Error()
	case errors.Is(err, ierr.ErrDownloadNotPermitted):
		status = http.StatusForbidden
		errResponse.Code = "DOWNLOAD_NOT_PERMITTED"
		errResponse.Error = ierr.ErrDownloadNotPermitted.Error()
	case errors.Is(err, ierr.ErrForbidden):
		status = http.StatusForbidden
		errResponse.Code = "FORBIDDEN"
		errResponse.Error = "Access denied."
	case errors.Is(err, ierr.ErrNotFound):
		status = http.StatusNotFound
		errResponse.Code = "NOT_FOUND"
		errResponse.Error = err.Error()
	case errors.Is(err, ierr.ErrDuplicateEmail):
		status = http.StatusConflict
		errResponse.Code = "DUPLICATE_EMAIL"
		errResponse.Error = ierr.ErrDuplicateEmail.Error()
	case errors.Is(err, ierr.ErrConflict):
		status = http.StatusConflict
		errResponse.Code = "CONFLICT"
		errResponse.Error = "The resource was modified concurrently, please retry."
	case errors.Is(err, ierr.ErrRegistrationFailed):
		status = http.StatusBadGateway
		errResponse.Code = "REGISTRATION_FAILED"
		errResponse.Error = "Registration failed, please try again later."
	case errors.Is(err, ierr.ErrGatewayUnavailable):
		status = http.StatusBadGateway
		errResponse.Code = "GATEWAY_UNAVAILABLE"
		errResponse.Error = ierr.ErrGatewayUnavailable.Error()
	}
	return status, errResponse
}

func buildValidationErrors(ve validator.ValidationErrors) []dto.FieldError {
	details := make([]dto.FieldError, len(ve))
	for i, fe := range ve {
		details[i] = dto.FieldError{
			Field:   fe.Field(),
			Message: getValidationErrorMsg(fe),
		}
	}
	return details
}

func getValidationErrorMsg(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field '%s' is required", fe.Field())
	case "email":
		return fmt.Sprintf("Field '%s' must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("Field '%s' must be one of [%s]", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("Field '%s' must be greater than or equal to %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("Field '%s' must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Field '%s' failed validation on the '%s' tag", fe.Field(), fe.Tag())
	}
}
