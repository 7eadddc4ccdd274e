package api

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/uplink"
)

// UplinkHandler 上行队列API处理器
type UplinkHandler struct {
	worker *uplink.Worker
	logger *zap.Logger
}

// NewUplinkHandler 创建上行队列处理器
func NewUplinkHandler(w *uplink.Worker, logger *zap.Logger) *UplinkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UplinkHandler{worker: w, logger: logger}
}

// UplinkRequest 上行入队请求。encoding 缺省按UTF-8文本处理。
type UplinkRequest struct {
	Payload  string `json:"payload" binding:"required"`
	Encoding string `json:"encoding" binding:"omitempty,oneof=text base64"`
}

func (r *UplinkRequest) decode() ([]byte, error) {
	if r.Encoding == "base64" {
		return base64.StdEncoding.DecodeString(r.Payload)
	}
	return []byte(r.Payload), nil
}

// Enqueue 接收一条上行载荷入队，投递由后台工作器异步完成
func (h *UplinkHandler) Enqueue(c *gin.Context) {
	var req UplinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	payload, err := req.decode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 payload"})
		return
	}

	msg, err := h.worker.Enqueue(payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":         msg.ID,
		"state":      msg.State,
		"size_bytes": msg.SizeBytes,
	})
}

// GetMessage 查询一条上行消息的投递状态
func (h *UplinkHandler) GetMessage(c *gin.Context) {
	msg, err := h.worker.Lookup(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// GetStats 查询队列深度与节拍统计
func (h *UplinkHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.Stats())
}
