package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/api"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	cfgpkg "github.com/rashedtalukder/core2foraws-unit-lorawan/internal/config"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/health"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/httpserver"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/metrics"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/provision"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/uplink"
)

// shutdownTimeout 优雅关闭总预算
const shutdownTimeout = 10 * time.Second

// Run 统一启动流程。串口与驱动先就绪，HTTP面最后暴露；
// 关闭按启动的逆序进行。
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	agentID := GenerateAgentID()
	log.Info("starting lorawan agent",
		zap.String("agent_id", agentID),
		zap.String("env", cfg.App.Env))

	// ========== 阶段1: 指标与就绪标志 ==========
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	var metricsHandler http.Handler
	if cfg.Metrics.Enable {
		metricsHandler = metrics.Handler(reg)
	}
	ready := health.New()

	// ========== 阶段2: 打开串口（失败直接返回）==========
	port, err := transport.OpenSerial(cfg.Serial.Device, cfg.Serial.BaudRate)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", cfg.Serial.Device, err)
	}
	defer func() { _ = port.Close() }()
	log.Info("serial port open",
		zap.String("device", cfg.Serial.Device),
		zap.Int("baud_rate", cfg.Serial.BaudRate))

	// ========== 阶段3: 驱动 ==========
	m := modem.New(port, modem.Config{
		ResponseTimeout:    cfg.Modem.ResponseTimeout,
		CommandDelay:       cfg.Modem.CommandDelay,
		PollInterval:       cfg.Modem.PollInterval,
		MaxAttempts:        cfg.Modem.MaxAttempts,
		RetryBackoff:       cfg.Modem.RetryBackoff,
		StatusPollInterval: cfg.Modem.StatusPollInterval,
	}, log)
	m.SetMetrics(appm)
	if cfg.Modem.ReasonMapFile != "" {
		if rm, e := atcmd.LoadReasonMap(cfg.Modem.ReasonMapFile); e == nil {
			m.SetReasonMap(rm)
			log.Info("device reason map loaded", zap.String("path", cfg.Modem.ReasonMapFile))
		} else {
			log.Warn("load device reason map failed", zap.Error(e))
		}
	}

	// ========== 阶段4: 模组初始化与可选置备 ==========
	prov := provision.New(m, log)
	if err := prov.Init(); err != nil {
		return fmt.Errorf("module init: %w", err)
	}
	ready.SetModemReady(true)

	var joinMon *modem.JoinMonitor
	if cfg.LoRaWAN.ProvisionOnStart {
		ttnCfg := provision.DefaultTTNConfig()
		ttnCfg.DevEUI = cfg.LoRaWAN.DevEUI
		ttnCfg.AppKey = cfg.LoRaWAN.AppKey
		if cfg.LoRaWAN.AppEUI != "" {
			ttnCfg.AppEUI = cfg.LoRaWAN.AppEUI
		}
		ttnCfg.SubBand = cfg.LoRaWAN.SubBand
		ttnCfg.DataRate = cfg.LoRaWAN.DataRate
		ttnCfg.ADREnabled = cfg.LoRaWAN.ADREnabled
		if cfg.LoRaWAN.JoinTimeout > 0 {
			ttnCfg.JoinTimeout = cfg.LoRaWAN.JoinTimeout
		}
		joinMon, err = prov.TTNUS915(ttnCfg, func(joined bool, code int) {
			if joined {
				log.Info("network joined after provisioning")
			} else {
				log.Warn("network join not confirmed, uplinks will fail until joined",
					zap.Int("code", code))
			}
		})
		if err != nil {
			return fmt.Errorf("provision ttn us915: %w", err)
		}
	}

	// ========== 阶段5: 上行工作器 ==========
	worker := uplink.NewWorker(m, uplink.Config{
		QueueCapacity:  cfg.Uplink.QueueCapacity,
		TerminalRetain: cfg.Uplink.TerminalRetain,
		ScanInterval:   cfg.Uplink.ScanInterval,
		MaxRetries:     cfg.Uplink.MaxRetries,
		RetryBackoff:   cfg.Uplink.RetryBackoff,
		RatePerMinute:  cfg.Uplink.RatePerMinute,
		Burst:          cfg.Uplink.Burst,
	}, log)
	worker.SetMetrics(appm)

	wctx, wcancel := context.WithCancel(context.Background())
	defer wcancel()
	if err := worker.Start(wctx); err != nil {
		return fmt.Errorf("start uplink worker: %w", err)
	}
	ready.SetUplinkReady(true)
	log.Info("uplink worker started")

	// ========== 阶段6: 健康检查与HTTP面 ==========
	healthAgg := health.NewAggregator(
		health.NewModemChecker(m),
		health.NewUplinkChecker(worker),
	)

	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, ready.Ready)
	ctrl := api.RegisterControlRoutes(httpSrv.Router(), m, log)
	api.RegisterUplinkRoutes(httpSrv.Router(), worker, log)
	health.RegisterHTTPRoutes(httpSrv.Router(), healthAgg)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))
	log.Info("all services ready")

	// ========== 阶段7: 等待关闭信号 ==========
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("received shutdown signal, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info("http server stopped")

	if ctrl != nil {
		ctrl.Close()
	}
	if joinMon != nil {
		joinMon.Stop()
	}
	worker.Stop()
	log.Info("uplink worker stopped")

	log.Info("shutdown complete")
	return nil
}
