package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Causes of 5xx errors are logged and never sent to the client.
func ErrorHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		ae := apperror.From(last.Err)

		fields := logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     ae.Status,
			"code":       ae.Code,
		}
		if uid := c.GetString(CtxUserID); uid != "" {
			fields["user_id"] = uid
		}
		if ae.Status >= http.StatusInternalServerError {
			logger.WithFields(fields).WithError(last.Err).Error("request failed")
		} else {
			logger.WithFields(fields).Debug(ae.Message)
		}

		response.ErrorWithCode[any](c, ae.Status, ae.Code, ae.Message, ae.Details)
	}
}
