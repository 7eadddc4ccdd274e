package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	cfgpkg "github.com/rashedtalukder/core2foraws-unit-lorawan/internal/config"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/logging"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/provision"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
)

// appEnv 各子命令共享的运行环境，串口在命令执行前已打开
type appEnv struct {
	modem *modem.Modem
	cfg   *cfgpkg.Config
	log   *zap.Logger
}

var cli struct {
	Config  string `help:"Config file path, built-in defaults apply when omitted." type:"path"`
	Device  string `help:"Serial device, overrides config." short:"d" placeholder:"/dev/ttyUSB0"`
	Baud    int    `help:"Serial baud rate, overrides config."`
	Verbose bool   `help:"Enable driver debug logging." short:"v"`

	Status       statusCmd       `cmd:"" help:"Show connection status and radio parameters."`
	Join         joinCmd         `cmd:"" help:"Initiate an OTAA join and wait for confirmation."`
	Send         sendCmd         `cmd:"" help:"Send one confirmed uplink."`
	ProvisionTTN provisionTTNCmd `cmd:"" name:"provision-ttn" help:"Provision the module for TTN US915 and join."`
	RSSI         rssiCmd         `cmd:"" name:"rssi" help:"Scan channel RSSI for one frequency band."`
	LinkCheck    linkCheckCmd    `cmd:"" name:"linkcheck" help:"Run a MAC layer link check."`
	Params       paramsCmd       `cmd:"" help:"Get or set radio parameters."`
	Raw          rawCmd          `cmd:"" help:"Send a raw command body and print the reply."`
	Reboot       rebootCmd       `cmd:"" help:"Reboot the module."`
	Save         saveCmd         `cmd:"" help:"Save current configuration to module NVM."`
	Restore      restoreCmd      `cmd:"" help:"Restore factory defaults."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("lorawanctl"),
		kong.Description("Control tool for the ASR6501 LoRaWAN module, driving the serial port directly. Stop the lorawand agent first, it holds the port while running."),
		kong.UsageOnError(),
	)

	// 1) 配置：文件与环境变量给缺省，命令行旗标覆盖串口参数
	cfg, err := cfgpkg.Load(cli.Config)
	ctx.FatalIfErrorf(err)
	device := cfg.Serial.Device
	if cli.Device != "" {
		device = cli.Device
	}
	baud := cfg.Serial.BaudRate
	if cli.Baud > 0 {
		baud = cli.Baud
	}

	log := buildLogger(cli.Verbose)
	defer func() { _ = log.Sync() }()

	// 2) 打开串口并装配驱动
	port, err := transport.OpenSerial(device, baud)
	ctx.FatalIfErrorf(err)
	defer func() { _ = port.Close() }()

	m := modem.New(port, modem.Config{
		ResponseTimeout:    cfg.Modem.ResponseTimeout,
		CommandDelay:       cfg.Modem.CommandDelay,
		PollInterval:       cfg.Modem.PollInterval,
		MaxAttempts:        cfg.Modem.MaxAttempts,
		RetryBackoff:       cfg.Modem.RetryBackoff,
		StatusPollInterval: cfg.Modem.StatusPollInterval,
	}, log)
	if cfg.Modem.ReasonMapFile != "" {
		if rm, e := atcmd.LoadReasonMap(cfg.Modem.ReasonMapFile); e == nil {
			m.SetReasonMap(rm)
		} else {
			log.Warn("load device reason map failed", zap.Error(e))
		}
	}

	// 3) 分发到子命令
	err = ctx.Run(&appEnv{modem: m, cfg: cfg, log: log})
	ctx.FatalIfErrorf(err)
}

// buildLogger 诊断工具缺省静默，--verbose 打开控制台调试日志
func buildLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	log, err := logging.InitLogger(cfgpkg.LoggingConfig{Level: "debug", Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// statusCmd 查询连接状态与射频参数
type statusCmd struct{}

func (c *statusCmd) Run(app *appEnv) error {
	code, desc, err := app.modem.Status()
	if err != nil {
		return err
	}
	fmt.Printf("Status:    %s (%s)\n", code, desc)
	fmt.Printf("Joined:    %v\n", atcmd.JoinedStatus(code))
	// 附带参数拿不到时保持仅状态视图
	if dr, maxPayload, err := app.modem.DataRateInfo(); err == nil {
		fmt.Printf("Data rate: DR%d, max payload %d bytes\n", dr, maxPayload)
	}
	if txp, err := app.modem.TxPower(); err == nil {
		fmt.Printf("TX power:  index %d\n", txp)
	}
	return nil
}

// joinCmd 发起入网并等待结果
type joinCmd struct {
	Timeout time.Duration `help:"How long to wait for join confirmation." default:"60s"`
}

func (c *joinCmd) Run(app *appEnv) error {
	if err := app.modem.Join(); err != nil {
		return err
	}
	done := make(chan bool, 1)
	jm, err := app.modem.StartJoinMonitor(c.Timeout, func(joined bool, _ int) { done <- joined })
	if err != nil {
		return err
	}
	fmt.Printf("Join initiated, waiting up to %s...\n", c.Timeout)
	return awaitJoin(jm, done, c.Timeout)
}

// awaitJoin 阻塞至入网监视发出一次性回调
func awaitJoin(jm *modem.JoinMonitor, done <-chan bool, timeout time.Duration) error {
	defer jm.Stop()
	if <-done {
		fmt.Println("Joined the network.")
		return nil
	}
	return fmt.Errorf("join not confirmed within %s", timeout)
}

// sendCmd 单次确认型上行
type sendCmd struct {
	Payload string `arg:"" help:"Uplink payload, text by default."`
	Hex     bool   `help:"Treat the payload as a hex string."`
}

func (c *sendCmd) Run(app *appEnv) error {
	data := []byte(c.Payload)
	if c.Hex {
		decoded, err := modem.DecodeHex(c.Payload)
		if err != nil {
			return fmt.Errorf("decode hex payload: %w", err)
		}
		data = decoded
	}
	if err := app.modem.Send(data); err != nil {
		return err
	}
	fmt.Printf("Sent %d bytes.\n", len(data))
	return nil
}

// provisionTTNCmd 整机置备：初始化、凭据、频率计划、入网
type provisionTTNCmd struct {
	DevEUI   string        `help:"Device EUI (16 hex chars), overrides config."`
	AppEUI   string        `help:"Application EUI (16 hex chars), overrides config."`
	AppKey   string        `help:"Application key (32 hex chars), overrides config."`
	SubBand  uint8         `help:"US915 sub-band 1..8, overrides config."`
	DataRate *uint8        `help:"Initial data rate 0..4, overrides config."`
	ADR      *bool         `help:"Adaptive data rate on/off, overrides config."`
	Timeout  time.Duration `help:"How long to wait for join confirmation, overrides config."`
	SkipInit bool          `help:"Skip the power-on init sequence."`
	NoWait   bool          `help:"Initiate the join but do not wait for confirmation."`
}

func (c *provisionTTNCmd) Run(app *appEnv) error {
	prov := provision.New(app.modem, app.log)
	if !c.SkipInit {
		fmt.Println("Initializing module...")
		if err := prov.Init(); err != nil {
			return err
		}
	}

	ttnCfg := c.resolve(app.cfg.LoRaWAN)
	fmt.Printf("Provisioning for TTN US915, sub-band %d, DR%d...\n", ttnCfg.SubBand, ttnCfg.DataRate)
	if c.NoWait {
		if _, err := prov.TTNUS915(ttnCfg, nil); err != nil {
			return err
		}
		fmt.Println("Join initiated, check later with: lorawanctl status")
		return nil
	}

	done := make(chan bool, 1)
	jm, err := prov.TTNUS915(ttnCfg, func(joined bool, _ int) { done <- joined })
	if err != nil {
		return err
	}
	fmt.Printf("Join initiated, waiting up to %s...\n", ttnCfg.JoinTimeout)
	return awaitJoin(jm, done, ttnCfg.JoinTimeout)
}

// resolve 参数优先级：内置缺省 < 配置文件 < 命令行旗标
func (c *provisionTTNCmd) resolve(lw cfgpkg.LoRaWANConfig) provision.TTNConfig {
	ttnCfg := provision.DefaultTTNConfig()
	if lw.DevEUI != "" {
		ttnCfg.DevEUI = lw.DevEUI
	}
	if lw.AppEUI != "" {
		ttnCfg.AppEUI = lw.AppEUI
	}
	if lw.AppKey != "" {
		ttnCfg.AppKey = lw.AppKey
	}
	if lw.SubBand != 0 {
		ttnCfg.SubBand = lw.SubBand
	}
	ttnCfg.DataRate = lw.DataRate
	ttnCfg.ADREnabled = lw.ADREnabled
	if lw.JoinTimeout > 0 {
		ttnCfg.JoinTimeout = lw.JoinTimeout
	}

	if c.DevEUI != "" {
		ttnCfg.DevEUI = c.DevEUI
	}
	if c.AppEUI != "" {
		ttnCfg.AppEUI = c.AppEUI
	}
	if c.AppKey != "" {
		ttnCfg.AppKey = c.AppKey
	}
	if c.SubBand != 0 {
		ttnCfg.SubBand = c.SubBand
	}
	if c.DataRate != nil {
		ttnCfg.DataRate = *c.DataRate
	}
	if c.ADR != nil {
		ttnCfg.ADREnabled = *c.ADR
	}
	if c.Timeout > 0 {
		ttnCfg.JoinTimeout = c.Timeout
	}
	return ttnCfg
}

// rssiCmd 扫描一个频段的 8 信道 RSSI
type rssiCmd struct {
	Band uint8 `arg:"" help:"Frequency band index to scan."`
}

func (c *rssiCmd) Run(app *appEnv) error {
	values, err := app.modem.ChannelRSSI(c.Band)
	if err != nil {
		return err
	}
	fmt.Printf("Band %d channel RSSI:\n", c.Band)
	for i, v := range values {
		fmt.Printf("  channel %d: %d dBm\n", i, v)
	}
	return nil
}

// linkCheckCmd MAC 层链路检查
type linkCheckCmd struct {
	Mode uint8 `help:"0 off, 1 check now, 2 after every uplink." default:"1"`
}

func (c *linkCheckCmd) Run(app *appEnv) error {
	result, err := app.modem.LinkCheck(c.Mode)
	if err != nil {
		return err
	}
	if result == nil {
		if c.Mode == 1 {
			fmt.Println("Link check accepted, no result line received.")
		} else {
			fmt.Printf("Link check mode set to %d.\n", c.Mode)
		}
		return nil
	}
	if result.Result != 0 {
		fmt.Printf("Link check failed, result %d.\n", result.Result)
		return nil
	}
	fmt.Printf("Link check ok: margin %d dB, %d gateway(s), RSSI %d dBm, SNR %d dB\n",
		result.Margin, result.Gateways, result.RSSI, result.SNR)
	return nil
}

// paramsCmd 射频参数查询与设置
type paramsCmd struct {
	Get paramsGetCmd `cmd:"" help:"Show data rate and TX power."`
	Set paramsSetCmd `cmd:"" help:"Apply one or more radio parameters."`
}

type paramsGetCmd struct{}

func (c *paramsGetCmd) Run(app *appEnv) error {
	dr, maxPayload, err := app.modem.DataRateInfo()
	if err != nil {
		return err
	}
	fmt.Printf("Data rate: DR%d, max payload %d bytes\n", dr, maxPayload)
	txp, err := app.modem.TxPower()
	if err != nil {
		return err
	}
	fmt.Printf("TX power:  index %d\n", txp)
	return nil
}

type paramsSetCmd struct {
	DataRate  *uint8 `help:"Data rate 0..4."`
	TxPower   *uint8 `help:"TX power index 0..7."`
	Retries   *uint8 `help:"Message retry count 1..15."`
	Confirmed bool   `help:"Apply the retry count to confirmed uplinks."`
	ADR       *bool  `help:"Adaptive data rate on/off."`
}

func (c *paramsSetCmd) Run(app *appEnv) error {
	if c.DataRate == nil && c.TxPower == nil && c.Retries == nil && c.ADR == nil {
		return fmt.Errorf("nothing to set, pass at least one of --data-rate, --tx-power, --retries, --adr")
	}
	if c.DataRate != nil {
		if err := app.modem.SetDataRate(*c.DataRate); err != nil {
			return err
		}
		fmt.Printf("Data rate set to DR%d.\n", *c.DataRate)
	}
	if c.TxPower != nil {
		if err := app.modem.SetTxPower(*c.TxPower); err != nil {
			return err
		}
		fmt.Printf("TX power set to index %d.\n", *c.TxPower)
	}
	if c.ADR != nil {
		if err := app.modem.SetADR(*c.ADR); err != nil {
			return err
		}
		if *c.ADR {
			fmt.Println("Adaptive data rate enabled.")
		} else {
			fmt.Println("Adaptive data rate disabled.")
		}
	}
	if c.Retries != nil {
		if err := app.modem.SetRetries(c.Confirmed, *c.Retries); err != nil {
			return err
		}
		fmt.Printf("Retry count set to %d, confirmed=%v.\n", *c.Retries, c.Confirmed)
	}
	return nil
}

// rawCmd 指令透传，便于排障时敲没有封装的指令
type rawCmd struct {
	Command string        `arg:"" help:"Command body after AT+, for example CGMI?."`
	Timeout time.Duration `help:"Reply window, driver default when zero."`
}

func (c *rawCmd) Run(app *appEnv) error {
	reply, err := app.modem.Raw(c.Command, c.Timeout)
	if err != nil {
		return err
	}
	if reply == "" {
		fmt.Println("OK")
		return nil
	}
	fmt.Println(reply)
	return nil
}

type rebootCmd struct{}

func (c *rebootCmd) Run(app *appEnv) error {
	if err := app.modem.Reboot(); err != nil {
		return err
	}
	fmt.Println("Module rebooted.")
	return nil
}

type saveCmd struct{}

func (c *saveCmd) Run(app *appEnv) error {
	if err := app.modem.Save(); err != nil {
		return err
	}
	fmt.Println("Configuration saved to module NVM.")
	return nil
}

// restoreCmd 恢复出厂配置，生效通常需要重启
type restoreCmd struct {
	Reboot bool `help:"Reboot after restoring so defaults take effect."`
}

func (c *restoreCmd) Run(app *appEnv) error {
	if err := app.modem.RestoreDefaults(); err != nil {
		return err
	}
	fmt.Println("Factory defaults restored.")
	if c.Reboot {
		if err := app.modem.Reboot(); err != nil {
			return err
		}
		fmt.Println("Module rebooted.")
		return nil
	}
	fmt.Println("Reboot the module for defaults to take effect.")
	return nil
}
