package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/PPI-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/PPI-Intelligence/internal/interfaces/wire"
	"github.com/turtacn/PPI-Intelligence/pkg/errors"
	"github.com/turtacn/PPI-Intelligence/pkg/types/common"
)

// respond writes data in the standard envelope.
func respond[T any](c *gin.Context, status int, data T) {
	c.JSON(status, common.APIResponse[T]{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetRequestID(c),
		Timestamp: common.Now(),
	})
}

// respondError writes err in the standard envelope with the status its code
// maps to.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, common.APIResponse[any]{
		Error:     wire.Error(err),
		RequestID: middleware.GetRequestID(c),
		Timestamp: common.Now(),
	})
}

// AbortWithError writes err in the standard envelope.  It matches the
// keycloak failure-handler signature.
func AbortWithError(c *gin.Context, err error) { respondError(c, err) }

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return errors.HTTPStatusForCode(wire.Code(err))
}

// bindJSON decodes the body into dst, mapping decode failures onto
// bad-request errors.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return err
		}
		return errors.InvalidParam("malformed request body").WithDetail(err.Error())
	}
	return nil
}

//Personal.AI order the ending
