package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
)

var registerTagNames sync.Once

// registerValidatorTagNames makes binding errors name fields by their json tag
func registerValidatorTagNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	})
}

// statusFor maps service and domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, workflow.ErrInvalidStepNumber):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrNotFound),
		errors.Is(err, entity.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrConcurrentModification),
		errors.Is(err, workflow.ErrOutOfOrderTransition),
		errors.Is(err, workflow.ErrAlreadyTerminal),
		errors.Is(err, workflow.ErrAlreadyInitialized),
		errors.Is(err, workflow.ErrNotInitialized),
		errors.Is(err, workflow.ErrReviewNotPending),
		errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, port.ErrAgentUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors are not echoed.
func (h *Handlers) respondError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	resp := Response{Success: false, Error: msg}

	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Error = "validation failed"
		resp.Details = verr.Fields
	case status == http.StatusInternalServerError:
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	default:
		resp.Error = msg + ": " + err.Error()
	}
	c.JSON(status, resp)
}

// respondBindError reports malformed request bodies
func (h *Handlers) respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]entity.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, entity.FieldError{
				Field:   fieldPath(fe.Namespace()),
				Message: "failed on " + fe.Tag(),
			})
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "validation failed", Details: fields})
		return
	}
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
}

// fieldPath drops the struct name validator puts in front of the namespace
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
