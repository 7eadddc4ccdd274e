package main

import (
	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/app/bootstrap"
	cfgpkg "github.com/rashedtalukder/core2foraws-unit-lorawan/internal/config"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/logging"
)

func main() {
	// 1) 加载配置（路径经 LORAWAND_CONFIG 指定，缺省 configs/example.yaml）
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 其余交给统一启动流程
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Fatal("agent exited with error", zap.Error(err))
	}
}
