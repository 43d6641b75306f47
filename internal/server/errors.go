package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	"github.com/smallbiznis/homeaccess/internal/authorization"
	claimdomain "github.com/smallbiznis/homeaccess/internal/claim/domain"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	"github.com/smallbiznis/homeaccess/internal/identity"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
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
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
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
	case errors.Is(err, identity.ErrTokenExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "token_expired",
			Message: "token expired",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrMissingToken),
		errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, claimdomain.ErrInvalidContinuation):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_continuation",
			Message: "continuation token is invalid or expired",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, accesscodedomain.ErrDuplicateCode):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
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
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isDirectoryValidationError(err),
		isAccessCodeValidationError(err),
		isClaimValidationError(err):
		return true
	default:
		return false
	}
}

func isDirectoryValidationError(err error) bool {
	switch {
	case errors.Is(err, directorydomain.ErrInvalidName),
		errors.Is(err, directorydomain.ErrInvalidDoorLabel),
		errors.Is(err, directorydomain.ErrInvalidCountry),
		errors.Is(err, directorydomain.ErrBuildingMismatch),
		errors.Is(err, directorydomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isAccessCodeValidationError(err error) bool {
	switch {
	case errors.Is(err, accesscodedomain.ErrInvalidCode),
		errors.Is(err, accesscodedomain.ErrInvalidMaxUses),
		errors.Is(err, accesscodedomain.ErrInvalidExpiry),
		errors.Is(err, accesscodedomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isClaimValidationError(err error) bool {
	switch {
	case errors.Is(err, claimdomain.ErrInvalidIntent),
		errors.Is(err, claimdomain.ErrInvalidUser),
		errors.Is(err, membershipdomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, directorydomain.ErrNotFound),
		errors.Is(err, accesscodedomain.ErrUnitNotFound),
		errors.Is(err, accesscodedomain.ErrInvitationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
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
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the envelope type and the raw error code for request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		code = vErr.Errors[0].Code
	} else if isValidationError(err) {
		code = validationErrorCode(err)
	}
	return payload.Type, code
}

// rejectionStatus maps a claim rejection reason to its HTTP status.
func rejectionStatus(reason claimdomain.Reason) int {
	switch reason {
	case claimdomain.ReasonNotFound, claimdomain.ReasonInvitationNotFound:
		return http.StatusNotFound
	case claimdomain.ReasonUnitNoLongerVacant:
		return http.StatusConflict
	case claimdomain.ReasonInvalidCode:
		return http.StatusUnprocessableEntity
	case claimdomain.ReasonInvitationInactive,
		claimdomain.ReasonInvitationExpired,
		claimdomain.ReasonInvitationExhausted:
		return http.StatusGone
	case claimdomain.ReasonTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func rejectionMessage(reason claimdomain.Reason) string {
	switch reason {
	case claimdomain.ReasonNotFound:
		return "unit not found in residence"
	case claimdomain.ReasonUnitNoLongerVacant:
		return "unit was claimed by someone else"
	case claimdomain.ReasonInvalidCode:
		return "join code does not match"
	case claimdomain.ReasonInvitationNotFound:
		return "invitation code not found"
	case claimdomain.ReasonInvitationInactive:
		return "invitation code is no longer active"
	case claimdomain.ReasonInvitationExpired:
		return "invitation code has expired"
	case claimdomain.ReasonInvitationExhausted:
		return "invitation code has no uses left"
	case claimdomain.ReasonTooManyAttempts:
		return "too many attempts, retry later"
	default:
		return "claim rejected"
	}
}

func writeRejection(c *gin.Context, outcome *claimdomain.Outcome) {
	if outcome.RetryAfter > 0 {
		seconds := int(math.Ceil(outcome.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	c.AbortWithStatusJSON(rejectionStatus(outcome.Reason), errorResponse{Error: errorPayload{
		Type:    string(outcome.Reason),
		Message: rejectionMessage(outcome.Reason),
	}})
}
