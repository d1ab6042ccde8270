package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/referral-api/pkg/errors"
)

func init() {
	binding.EnableDecoderDisallowUnknownFields = true
}

// ContextRequestID is the gin context key holding the request id.
const ContextRequestID = "request_id"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string              `json:"message"`
	Fields  []errors.FieldError `json:"fields,omitempty"`
}

// RespondWithError writes err as JSON. Codes listed in asBadRequest are rendered as
// 400 instead of their usual status. Errors that are not AppErrors are logged and
// reported as a bare 500.
func RespondWithError(c *gin.Context, err error, asBadRequest ...errors.ErrorCode) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Internal(err)
	}

	status := appErr.StatusCode()
	for _, code := range asBadRequest {
		if appErr.Code == code {
			status = http.StatusBadRequest
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Message: appErr.Message, Fields: appErr.Fields})
}

// BindJSON binds the request body into dst through gin's JSON binding, which rejects
// unknown fields and runs the installed binding validator.
func BindJSON(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil {
		return errors.Validation("Request body is required")
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return decodeError(err)
	}
	return nil
}

// BindPatch decodes a free-form JSON object, for partial updates.
func BindPatch(c *gin.Context) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if c.Request.Body == nil {
		return nil, errors.Validation("Request body is required")
	}
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, decodeError(err)
	}
	if raw == nil {
		return nil, errors.Validation("Request body must be a JSON object")
	}
	return raw, nil
}

func decodeError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, io.EOF) {
		return errors.Validation("Request body is required")
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		msg := fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
		return errors.Validation("Please check the fields", errors.FieldError{
			Field: typeErr.Field, Rule: "type", Message: msg,
		})
	}
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) || stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Validation("Request body is not valid JSON")
	}
	// encoding/json reports unknown fields as `json: unknown field "x"`
	return errors.Validation(err.Error())
}

// ParseID reads a positive integer path parameter.
func ParseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
