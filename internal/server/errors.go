package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/keygate/internal/adminauth"
	"github.com/smallbiznis/keygate/internal/authorization"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	paymentdomain "github.com/smallbiznis/keygate/internal/payment/domain"
	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
	uploaddomain "github.com/smallbiznis/keygate/internal/upload/domain"
	"gorm.io/gorm"
)

// Error codes are part of the client contract; integrations branch on them,
// so changing a string here is a breaking change.
const (
	CodeInvalidFormat             = "INVALID_FORMAT"
	CodeLicenseNotFound           = "LICENSE_NOT_FOUND"
	CodeProductNotFound           = "PRODUCT_NOT_FOUND"
	CodeLicenseRevoked            = "LICENSE_REVOKED"
	CodeLicenseExpired            = "LICENSE_EXPIRED"
	CodeDomainChangeLimitExceeded = "DOMAIN_CHANGE_LIMIT_EXCEEDED"
	CodeNotActivated              = "NOT_ACTIVATED"
	CodeUploadNotFound            = "UPLOAD_NOT_FOUND"
	CodeCredentialExpired         = "UPLOAD_CREDENTIAL_EXPIRED"
	CodeConflict                  = "CONFLICT"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"
	CodeInvalidSignature          = "INVALID_SIGNATURE"
	CodeRateLimited               = "RATE_LIMITED"
	CodeInternalError             = "INTERNAL_ERROR"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool         `json:"success"`
	Error   errorPayload `json:"error"`
}

// ErrorHandlingMiddleware converts errors attached to the gin context into
// the uniform failure envelope. Handlers report errors via AbortWithError
// and never write failure bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Success: false, Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, licensedomain.ErrInvalidFormat), errors.Is(err, licensedomain.ErrInvalidID):
		return http.StatusBadRequest, errorPayload{Code: CodeInvalidFormat, Message: "request validation failed"}
	case errors.Is(err, productdomain.ErrInvalidSlug):
		return http.StatusBadRequest, errorPayload{Code: CodeInvalidFormat, Message: "request validation failed"}
	case errors.Is(err, licensedomain.ErrLicenseNotFound):
		return http.StatusNotFound, errorPayload{Code: CodeLicenseNotFound, Message: "license not found"}
	case errors.Is(err, licensedomain.ErrProductNotFound), errors.Is(err, productdomain.ErrProductNotFound):
		return http.StatusNotFound, errorPayload{Code: CodeProductNotFound, Message: "product not found"}
	case errors.Is(err, licensedomain.ErrLicenseRevoked):
		return http.StatusForbidden, errorPayload{Code: CodeLicenseRevoked, Message: "license has been revoked"}
	case errors.Is(err, licensedomain.ErrLicenseExpired):
		return http.StatusForbidden, errorPayload{Code: CodeLicenseExpired, Message: "license has expired"}
	case errors.Is(err, licensedomain.ErrDomainChangeLimitReached):
		return http.StatusForbidden, errorPayload{Code: CodeDomainChangeLimitExceeded, Message: "domain change limit exceeded"}
	case errors.Is(err, licensedomain.ErrNotActivated):
		return http.StatusConflict, errorPayload{Code: CodeNotActivated, Message: "license is not activated for this domain"}
	case errors.Is(err, productdomain.ErrSlugTaken):
		return http.StatusConflict, errorPayload{Code: CodeConflict, Message: "product slug already in use"}
	case errors.Is(err, uploaddomain.ErrUploadNotFound):
		return http.StatusNotFound, errorPayload{Code: CodeUploadNotFound, Message: "upload not found"}
	case errors.Is(err, uploaddomain.ErrCredentialExpired):
		return http.StatusForbidden, errorPayload{Code: CodeCredentialExpired, Message: "upload credential has expired"}
	case errors.Is(err, uploaddomain.ErrInvalidUploadStatus):
		return http.StatusBadRequest, errorPayload{Code: CodeInvalidFormat, Message: "request validation failed"}
	case errors.Is(err, adminauth.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Code: CodeUnauthorized, Message: "authentication required"}
	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{Code: CodeForbidden, Message: "insufficient permissions"}
	case errors.Is(err, paymentdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{Code: CodeInvalidSignature, Message: "webhook signature verification failed"}
	case errors.Is(err, paymentdomain.ErrProviderNotFound):
		return http.StatusNotFound, errorPayload{Code: CodeInvalidFormat, Message: "unknown payment provider"}
	case errors.Is(err, paymentdomain.ErrInvalidPayload), errors.Is(err, paymentdomain.ErrInvalidEvent):
		return http.StatusBadRequest, errorPayload{Code: CodeInvalidFormat, Message: "webhook payload could not be parsed"}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Code: CodeLicenseNotFound, Message: "license not found"}
	}

	// Unknown errors never leak internals to the caller; details go to the
	// request log only.
	return http.StatusInternalServerError, errorPayload{Code: CodeInternalError, Message: "internal server error"}
}

// classifyErrorForLog feeds the request logger's error_type/error_code
// fields without duplicating the HTTP mapping table.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", payload.Code
	case status == http.StatusTooManyRequests:
		return "rate_limited", payload.Code
	default:
		return "client", payload.Code
	}
}
