package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/uplink"
)

// RegisterControlRoutes 注册模组控制路由。
// 返回处理器以便进程退出时停掉入网监视。
func RegisterControlRoutes(r *gin.Engine, m *modem.Modem, logger *zap.Logger) *ControlHandler {
	if r == nil || m == nil {
		return nil
	}
	handler := NewControlHandler(m, logger)

	api := r.Group("/api/v1")
	api.GET("/status", handler.GetStatus)
	api.POST("/join", handler.StartJoin)
	api.GET("/params/datarate", handler.GetDataRate)
	api.PUT("/params/datarate", handler.SetDataRate)
	api.GET("/params/txpower", handler.GetTxPower)
	api.PUT("/params/txpower", handler.SetTxPower)
	api.PUT("/params/retries", handler.SetRetries)
	api.POST("/linkcheck", handler.LinkCheck)
	api.GET("/rssi/:band", handler.ChannelRSSI)
	api.POST("/raw", handler.Raw)

	handler.logger.Info("control routes registered", zap.Int("endpoints", 10))
	return handler
}

// RegisterUplinkRoutes 注册上行队列路由
func RegisterUplinkRoutes(r *gin.Engine, w *uplink.Worker, logger *zap.Logger) {
	if r == nil || w == nil {
		return
	}
	handler := NewUplinkHandler(w, logger)

	api := r.Group("/api/v1")
	api.POST("/uplink", handler.Enqueue)
	api.GET("/uplink", handler.GetStats)
	api.GET("/uplink/:id", handler.GetMessage)

	handler.logger.Info("uplink routes registered", zap.Int("endpoints", 3))
}
