package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// ControlHandler 模组控制API处理器
type ControlHandler struct {
	modem  *modem.Modem
	logger *zap.Logger

	mu      sync.Mutex
	monitor *modem.JoinMonitor // 最近一次入网监视，同一时刻至多一个
}

// NewControlHandler 创建模组控制处理器
func NewControlHandler(m *modem.Modem, logger *zap.Logger) *ControlHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ControlHandler{modem: m, logger: logger}
}

// Close 停掉仍在运行的入网监视，供进程退出时调用
func (h *ControlHandler) Close() {
	h.mu.Lock()
	mon := h.monitor
	h.monitor = nil
	h.mu.Unlock()
	if mon != nil {
		mon.Stop()
	}
}

// GetStatus 查询模组状态
// 入网状态是主视图；速率与发射功率是独立交换，拿不到时退化为仅状态视图。
func (h *ControlHandler) GetStatus(c *gin.Context) {
	code, desc, err := h.modem.Status()
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"joined":      atcmd.JoinedStatus(code),
		"status_code": code,
		"status":      desc,
	}
	if dr, maxPayload, err := h.modem.DataRateInfo(); err == nil {
		resp["data_rate"] = dr
		resp["max_payload_bytes"] = maxPayload
	} else {
		h.logger.Warn("data rate unavailable for status view", zap.Error(err))
	}
	if power, err := h.modem.TxPower(); err == nil {
		resp["tx_power_index"] = power
	} else {
		h.logger.Warn("tx power unavailable for status view", zap.Error(err))
	}

	c.JSON(http.StatusOK, resp)
}

// JoinRequest 入网请求，超时缺省取驱动内置值
type JoinRequest struct {
	TimeoutSec int `json:"timeout_sec" binding:"omitempty,min=1,max=3600"`
}

// StartJoin 发起OTAA入网并启动后台监视
// 入网指令是一次同步交换，入网结果由监视任务异步轮询并记录日志。
// 重复调用会先停掉上一个监视任务。
func (h *ControlHandler) StartJoin(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	timeout := modem.DefaultJoinTimeout
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec) * time.Second
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.monitor != nil {
		h.monitor.Stop()
		h.monitor = nil
	}

	if err := h.modem.Join(); err != nil {
		respondError(c, err)
		return
	}
	mon, err := h.modem.StartJoinMonitor(timeout, func(joined bool, code int) {
		if joined {
			h.logger.Info("join confirmed", zap.Int("code", code))
		} else {
			h.logger.Warn("join not confirmed within window", zap.Int("code", code))
		}
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.monitor = mon

	c.JSON(http.StatusAccepted, gin.H{
		"detail":      "join initiated",
		"timeout_sec": int(timeout / time.Second),
	})
}

// GetDataRate 查询当前数据速率与对应的最大载荷
func (h *ControlHandler) GetDataRate(c *gin.Context) {
	dr, maxPayload, err := h.modem.DataRateInfo()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data_rate": dr, "max_payload_bytes": maxPayload})
}

// DataRateRequest 数据速率设置请求。index 用指针承载，0 是合法值。
type DataRateRequest struct {
	Index *uint8 `json:"index" binding:"required"`
}

// SetDataRate 设置数据速率
func (h *ControlHandler) SetDataRate(c *gin.Context) {
	var req DataRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.modem.SetDataRate(*req.Index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data_rate": *req.Index})
}

// GetTxPower 查询发射功率档位
func (h *ControlHandler) GetTxPower(c *gin.Context) {
	power, err := h.modem.TxPower()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_power_index": power})
}

// TxPowerRequest 发射功率设置请求。index 用指针承载，0 是合法值。
type TxPowerRequest struct {
	Index *uint8 `json:"index" binding:"required"`
}

// SetTxPower 设置发射功率档位
func (h *ControlHandler) SetTxPower(c *gin.Context) {
	var req TxPowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.modem.SetTxPower(*req.Index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tx_power_index": *req.Index})
}

// RetriesRequest 重发次数设置。confirmed 区分确认帧与非确认帧的重发参数。
type RetriesRequest struct {
	Confirmed bool   `json:"confirmed"`
	Count     *uint8 `json:"count" binding:"required"`
}

// SetRetries 设置上行重发次数
func (h *ControlHandler) SetRetries(c *gin.Context) {
	var req RetriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.modem.SetRetries(req.Confirmed, *req.Count); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": req.Confirmed, "count": *req.Count})
}

// LinkCheck 立即发起一次链路检查
// 结果行依赖网关下行，当次应答窗口里拿不到时返回202，指令本身已生效。
func (h *ControlHandler) LinkCheck(c *gin.Context) {
	result, err := h.modem.LinkCheck(1)
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusAccepted, gin.H{"detail": "link check sent, result not observed in reply window"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ChannelRSSI 扫描指定频段8个信道的RSSI
func (h *ControlHandler) ChannelRSSI(c *gin.Context) {
	band, err := strconv.ParseUint(c.Param("band"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid band index"})
		return
	}
	values, err := h.modem.ChannelRSSI(uint8(band))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"band": band, "rssi": values})
}

// RawRequest 透传指令请求。command 是 "AT+" 之后的指令体。
type RawRequest struct {
	Command   string `json:"command" binding:"required"`
	TimeoutMs int    `json:"timeout_ms" binding:"omitempty,min=1,max=120000"`
}

// Raw 透传一条指令，返回捕获到的应答文本
func (h *ControlHandler) Raw(c *gin.Context) {
	var req RawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	reply, err := h.modem.Raw(req.Command, time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
