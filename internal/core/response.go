// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Response struct {
	Status   string       `json:"status"`
	Message  string       `json:"message,omitempty"`
	Code     string       `json:"code,omitempty"`
	Stack    []StackEntry `json:"stack,omitempty"`
	Data     any          `json:"data,omitempty"`
	PageInfo *PageInfo    `json:"pageInfo,omitempty"`
}

// StackEntry describes one failed field of a validated request body.
type StackEntry struct {
	Type    string `json:"type,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

type PageInfo struct {
	NextPage *int `json:"nextPage,omitempty"`
	Total    int  `json:"total"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{Status: StatusOK, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Response{Status: StatusOK, Data: data})
}

// Done writes the bare success envelope used by side-effect-only endpoints.
func Done(w http.ResponseWriter) {
	JSON(w, http.StatusOK, Response{Status: StatusOK})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Paginated(w http.ResponseWriter, data any, page, pageSize, total int) {
	info := &PageInfo{Total: total}
	if page*pageSize < total {
		next := page + 1
		info.NextPage = &next
	}
	JSON(w, http.StatusOK, Response{Status: StatusOK, Data: data, PageInfo: info})
}

func JSONError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		InternalServerError(w, err)
		return
	}

	JSON(w, appErr.StatusCode, Response{
		Status:  StatusError,
		Message: appErr.Message,
		Code:    appErr.Code,
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, ValidationError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

func Forbidden(w http.ResponseWriter, message string) {
	JSONError(w, ForbiddenError(message))
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

// InternalServerError logs the cause and writes an opaque 500.
func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	JSON(w, http.StatusInternalServerError, Response{
		Status:  StatusError,
		Message: "internal server error",
		Code:    "INTERNAL_ERROR",
	})
}

// ValidationFailed writes a 400 whose stack lists every failed field.
func ValidationFailed(w http.ResponseWriter, err error) {
	JSON(w, http.StatusBadRequest, Response{
		Status:  StatusError,
		Message: "validation failed",
		Code:    "VALIDATION_FAILED",
		Stack:   ValidationStack(err),
	})
}

func ValidationStack(err error) []StackEntry {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []StackEntry{{Type: "invalid", Message: err.Error()}}
	}

	stack := make([]StackEntry, 0, len(verrs))
	for _, fe := range verrs {
		stack = append(stack, StackEntry{
			Type:    fe.Tag(),
			Path:    fe.Field(),
			Message: describeFieldError(fe),
		})
	}
	return stack
}

func FormatValidationError(err error) string {
	stack := ValidationStack(err)
	parts := make([]string, 0, len(stack))
	for _, e := range stack {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
