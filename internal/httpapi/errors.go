package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dailyplan/internal/apperr"
)

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindNotConnected:
		return http.StatusPreconditionFailed
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	case apperr.KindPermanent:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status := StatusOf(err)
	kind := apperr.KindOf(err)
	fields := []zap.Field{
		zap.String("op", op),
		zap.Uint("user_id", currentUser(c)),
		zap.String("kind", kind.String()),
		zap.Int("status", status),
		zap.Error(err),
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError && kind != apperr.KindTransient && kind != apperr.KindPermanent {
		logger.Error(op+" failed", fields...)
		msg = "internal error"
	} else {
		logger.Warn(op+" rejected", fields...)
	}

	body := gin.H{"error": msg, "kind": kind.String()}
	if kind == apperr.KindTransient {
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(status, body)
}
