package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/uplink"
)

// statusFromError 驱动层哨兵错误到HTTP状态码的映射。
// 模组是这套API的上游：模组答ERROR或应答不可解按网关侧错误处理，
// 模组失联或队列打满按服务不可用处理。
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, modem.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, modem.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, uplink.ErrUnknownMessage):
		return http.StatusNotFound
	case errors.Is(err, modem.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, uplink.ErrQueueFull), errors.Is(err, modem.ErrNotAttached):
		return http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, modem.ErrProtocol), errors.Is(err, modem.ErrMalformedReply):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError 统一错误响应格式
func respondError(c *gin.Context, err error) {
	c.JSON(statusFromError(err), gin.H{"error": err.Error()})
}
