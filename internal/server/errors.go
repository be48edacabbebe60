package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	dashboarddomain "github.com/smallbiznis/cliprail/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	moderationdomain "github.com/smallbiznis/cliprail/internal/moderation/domain"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/internal/scheduler"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"github.com/smallbiznis/cliprail/pkg/db/pagination"
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
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// Codes that do not follow the invalid_<field> convention.
var validationFields = map[string]string{
	"missing_reason":       "reason",
	"unsupported_platform": "video_url",
	"invalid_video_url":    "video_url",
	"invalid_page_token":   "page_token",
	"invalid_cpm_rate":     "cpm_rate",
	"invalid_budget":       "total_budget",
	"invalid_platform":     "platforms",
}

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

// bindingError turns validator failures into per-field errors. Anything else
// (malformed JSON, wrong types) is a generic invalid request.
func bindingError(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return invalidRequestError()
	}
	out := &ValidationErrors{Errors: make([]ValidationError, 0, len(vErrs))}
	for _, fe := range vErrs {
		field := fe.Field()
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Code:    fe.Tag(),
			Message: fmt.Sprintf("%s failed %s", field, fe.Tag()),
		})
	}
	return out
}

var registerTagNamesOnce sync.Once

// registerValidatorTagNames reports fields by their json name.
func registerValidatorTagNames() {
	registerTagNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
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
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, moderationdomain.ErrNotJoined):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: moderationdomain.ErrNotJoined.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, moderationdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
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

// classifyErrorForLog feeds the request logger a low-cardinality type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Message
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	pagination.ErrInvalidPageToken,
	userdomain.ErrInvalidID,
	userdomain.ErrInvalidExternalID,
	offerdomain.ErrInvalidID,
	offerdomain.ErrInvalidName,
	offerdomain.ErrInvalidCPMRate,
	offerdomain.ErrInvalidBudget,
	offerdomain.ErrInvalidPlatform,
	offerdomain.ErrInvalidUser,
	clipdomain.ErrInvalidID,
	clipdomain.ErrInvalidStatus,
	clipdomain.ErrUnsupportedPlatform,
	ledgerdomain.ErrInvalidID,
	ledgerdomain.ErrInvalidUser,
	ledgerdomain.ErrInvalidClip,
	ledgerdomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidType,
	moderationdomain.ErrInvalidID,
	moderationdomain.ErrInvalidURL,
	moderationdomain.ErrInvalidViews,
	moderationdomain.ErrMissingReason,
	dashboarddomain.ErrInvalidID,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, moderationdomain.ErrInvalidState),
		errors.Is(err, moderationdomain.ErrDuplicateClip),
		errors.Is(err, ledgerdomain.ErrInvalidState),
		errors.Is(err, ledgerdomain.ErrInsufficientBalance),
		errors.Is(err, offerdomain.ErrOfferInactive),
		errors.Is(err, offerdomain.ErrBudgetExhausted),
		errors.Is(err, scheduler.ErrCycleInProgress):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	for _, sentinel := range []error{
		moderationdomain.ErrInvalidState,
		moderationdomain.ErrDuplicateClip,
		ledgerdomain.ErrInvalidState,
		ledgerdomain.ErrInsufficientBalance,
		offerdomain.ErrOfferInactive,
		offerdomain.ErrBudgetExhausted,
		scheduler.ErrCycleInProgress,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, offerdomain.ErrNotFound),
		errors.Is(err, clipdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrNotFound),
		errors.Is(err, moderationdomain.ErrNotFound),
		errors.Is(err, moderationdomain.ErrOfferNotFound),
		errors.Is(err, dashboarddomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if field, ok := validationFields[code]; ok {
		return field
	}
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
	case "missing_reason":
		return "reason is required"
	case "unsupported_platform":
		return "video platform is not supported"
	default:
		return "invalid value"
	}
}
