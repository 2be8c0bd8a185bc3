package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/orgkeys/internal/audit/domain"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
	"github.com/smallbiznis/orgkeys/internal/identity"
	invitationdomain "github.com/smallbiznis/orgkeys/internal/invitation/domain"
	organizationdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
	"github.com/smallbiznis/orgkeys/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// bindingError turns a gin binding failure into field-level validation errors.
func bindingError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalidRequestError()
	}
	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationErrors{Errors: out}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be an email address"
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return "invalid value"
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		payload := errorPayload{
			Type:    "forbidden",
			Code:    forbiddenCode(err),
			Message: "forbidden",
		}
		if reason := authorization.Reason(err); reason != "" {
			payload.Message = reason
		}
		return http.StatusForbidden, payload
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    conflictCode(err),
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, token.ErrConfiguration):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: "credential signing is not configured",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger. It never includes request data.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && payload.Type != "internal_error" {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, identity.ErrInvalidOrg),
		errors.Is(err, authorization.ErrInvalidOrganization),
		errors.Is(err, permission.ErrInvalidPermission),
		errors.Is(err, scope.ErrInvalidScope),
		errors.Is(err, scope.ErrEmptyScopes),
		errors.Is(err, token.ErrInvalidExpiry),
		errors.Is(err, token.ErrInvalidPrincipal),
		errors.Is(err, token.ErrInvalidOrganization):
		return true
	case isOrganizationValidationError(err),
		isInvitationValidationError(err),
		isCredentialValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isOrganizationValidationError(err error) bool {
	return errors.Is(err, organizationdomain.ErrInvalidName) ||
		errors.Is(err, organizationdomain.ErrInvalidUser) ||
		errors.Is(err, organizationdomain.ErrInvalidOrganization)
}

func isInvitationValidationError(err error) bool {
	return errors.Is(err, invitationdomain.ErrInvalidEmail) ||
		errors.Is(err, invitationdomain.ErrInvalidCode) ||
		errors.Is(err, invitationdomain.ErrInvalidID) ||
		errors.Is(err, invitationdomain.ErrExpired)
}

func isCredentialValidationError(err error) bool {
	return errors.Is(err, credentialdomain.ErrInvalidName) ||
		errors.Is(err, credentialdomain.ErrInvalidID) ||
		errors.Is(err, credentialdomain.ErrInvalidOrganization)
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidOrganization) ||
		errors.Is(err, auditdomain.ErrInvalidPageToken) ||
		errors.Is(err, auditdomain.ErrInvalidTimeRange) ||
		errors.Is(err, auditdomain.ErrInvalidAction)
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, credentialdomain.ErrInvalidCredential),
		errors.Is(err, credentialdomain.ErrExpiredCredential),
		errors.Is(err, credentialdomain.ErrRevokedCredential):
		return true
	default:
		return false
	}
}

var forbiddenErrors = []error{
	authorization.ErrNotAMember,
	authorization.ErrInsufficientPermission,
	authorization.ErrInsufficientScope,
	authorization.ErrLastMember,
}

func isForbiddenError(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	return forbiddenCode(err) != ""
}

func forbiddenCode(err error) string {
	for _, target := range forbiddenErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

func isConflictError(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, invitationdomain.ErrAlreadyInvited) ||
		errors.Is(err, invitationdomain.ErrAlreadyMember) ||
		db.IsDuplicateKeyErr(err)
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, invitationdomain.ErrAlreadyInvited):
		return invitationdomain.ErrAlreadyInvited.Error()
	case errors.Is(err, invitationdomain.ErrAlreadyMember):
		return invitationdomain.ErrAlreadyMember.Error()
	default:
		return ""
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, invitationdomain.ErrNotFound),
		errors.Is(err, credentialdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invitation_expired":
		return "invitation has expired"
	default:
		return "invalid value"
	}
}
