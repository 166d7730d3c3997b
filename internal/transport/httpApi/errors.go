package httpApi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/KotFed0t/copytrade_backoffice/internal/service"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

var kindStatus = map[service.ErrorKind]int{
	service.KindOptionNotFound:             http.StatusNotFound,
	service.KindBelowMinimumInvestment:     http.StatusBadRequest,
	service.KindInsufficientFunds:          http.StatusBadRequest,
	service.KindNoPortfolioEntries:         http.StatusBadRequest,
	service.KindInsufficientPortfolioValue: http.StatusBadRequest,
	service.KindInvalidStatusTransition:    http.StatusBadRequest,
	service.KindTargetIsAdmin:              http.StatusForbidden,
	service.KindUserNotFound:               http.StatusNotFound,
	service.KindImmutableField:             http.StatusBadRequest,
}

func statusFromKind(kind service.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusBadRequest
}

func writeError(c *gin.Context, err error) {
	if de, ok := service.AsDomainError(err); ok {
		status := statusFromKind(de.Kind)
		c.JSON(status, errorResponse{
			Code:    status,
			Message: de.Message,
			Kind:    de.Kind.String(),
			Data:    de.Data,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: http.StatusNotFound, Message: "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, errorResponse{Code: http.StatusForbidden, Message: "forbidden"})
	default:
		slog.Error(
			"internal error",
			slog.String("rqID", utils.GetRequestIDFromCtx(c.Request.Context())),
			slog.String("path", c.FullPath()),
			slog.String("err", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: http.StatusInternalServerError, Message: "internal error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Code: http.StatusBadRequest, Message: message})
}
