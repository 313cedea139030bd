package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

var (
	ErrUnauthorized = errs.Validation("unauthorized", "missing or invalid credentials")
	ErrForbidden    = errs.Validation("forbidden", "caller may not perform this action")
	ErrNotReady     = errs.External("not_ready", "dependency unavailable")
)

func invalidRequestError() error {
	return errs.Validation("invalid_request", "request body could not be parsed")
}

// AbortWithError translates domain error kinds into HTTP status codes and a
// stable {error: {code, message}} body.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindValidation:
		status = http.StatusBadRequest
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindExternal:
		status = http.StatusBadGateway
	}

	switch err {
	case ErrUnauthorized:
		status = http.StatusUnauthorized
	case ErrForbidden:
		status = http.StatusForbidden
	}

	code := "internal_error"
	message := "internal error"
	var e *errs.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
	}})
}
