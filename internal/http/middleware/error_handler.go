package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/interface/http/response"
)

// ErrorHandler отвечает за ошибки, добавленные через c.Error, если
// обработчик сам ничего не записал, и гасит panic.
// Внутренние ошибки наружу не уходят: response.Error маскирует всё, что не AppError.
func ErrorHandler(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
					"error":  fmt.Sprint(r),
				}).Error("panic в обработчике")
				if !c.Writer.Written() {
					response.Error(c, fmt.Errorf("panic: %v", r))
				}
				c.Abort()
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"error":  err.Error(),
		}).Error("ошибка запроса")
		response.Error(c, err)
	}
}
