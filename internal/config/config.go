package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// SerialConfig 串口参数。模组固定 115200 波特
type SerialConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baudRate"`
}

// ModemConfig 指令引擎时序
type ModemConfig struct {
	ResponseTimeout    time.Duration `mapstructure:"responseTimeout"`
	CommandDelay       time.Duration `mapstructure:"commandDelay"`
	PollInterval       time.Duration `mapstructure:"pollInterval"`
	MaxAttempts        int           `mapstructure:"maxAttempts"`
	RetryBackoff       time.Duration `mapstructure:"retryBackoff"`
	StatusPollInterval time.Duration `mapstructure:"statusPollInterval"`
	ReasonMapFile      string        `mapstructure:"reasonMapFile"`
}

// LoRaWANConfig 入网凭据与区域参数。凭据通常经环境变量注入，
// 不落在配置文件里。
type LoRaWANConfig struct {
	DevEUI           string        `mapstructure:"devEUI"`
	AppEUI           string        `mapstructure:"appEUI"`
	AppKey           string        `mapstructure:"appKey"`
	SubBand          uint8         `mapstructure:"subBand"`
	DataRate         uint8         `mapstructure:"dataRate"`
	ADREnabled       bool          `mapstructure:"adrEnabled"`
	JoinTimeout      time.Duration `mapstructure:"joinTimeout"`
	ProvisionOnStart bool          `mapstructure:"provisionOnStart"`
}

// UplinkConfig 上行队列与节拍
type UplinkConfig struct {
	QueueCapacity  int           `mapstructure:"queueCapacity"`
	TerminalRetain int           `mapstructure:"terminalRetain"`
	ScanInterval   time.Duration `mapstructure:"scanInterval"`
	MaxRetries     int           `mapstructure:"maxRetries"`
	RetryBackoff   time.Duration `mapstructure:"retryBackoff"`
	RatePerMinute  float64       `mapstructure:"ratePerMinute"`
	Burst          int           `mapstructure:"burst"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Modem   ModemConfig   `mapstructure:"modem"`
	LoRaWAN LoRaWANConfig `mapstructure:"lorawan"`
	Uplink  UplinkConfig  `mapstructure:"uplink"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// path 为空时依次尝试环境变量 LORAWAND_CONFIG 与 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("LORAWAND_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 LORAWAND_，点号替换为下划线
	v.SetEnvPrefix("LORAWAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 开机前的基本一致性检查。凭据内容的强校验留给置备层。
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return errors.New("config: serial.device is required")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("config: serial.baudRate %d invalid", c.Serial.BaudRate)
	}
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr is required")
	}
	if c.LoRaWAN.ProvisionOnStart {
		if c.LoRaWAN.DevEUI == "" || c.LoRaWAN.AppKey == "" {
			return errors.New("config: provisionOnStart needs lorawan.devEUI and lorawan.appKey")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lorawand")
	v.SetDefault("app.env", "dev")

	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", 115200)

	v.SetDefault("modem.responseTimeout", "5s")
	v.SetDefault("modem.commandDelay", "100ms")
	v.SetDefault("modem.pollInterval", "50ms")
	v.SetDefault("modem.maxAttempts", 3)
	v.SetDefault("modem.retryBackoff", "500ms")
	v.SetDefault("modem.statusPollInterval", "1s")
	v.SetDefault("modem.reasonMapFile", "")

	// 凭据键也注册空缺省，纯环境变量注入的值才能被反序列化看见
	v.SetDefault("lorawan.devEUI", "")
	v.SetDefault("lorawan.appKey", "")
	v.SetDefault("lorawan.appEUI", "0000000000000000")
	v.SetDefault("lorawan.subBand", 2)
	v.SetDefault("lorawan.dataRate", 2)
	v.SetDefault("lorawan.adrEnabled", true)
	v.SetDefault("lorawan.joinTimeout", "60s")
	v.SetDefault("lorawan.provisionOnStart", false)

	v.SetDefault("uplink.queueCapacity", 32)
	v.SetDefault("uplink.terminalRetain", 256)
	v.SetDefault("uplink.scanInterval", "500ms")
	v.SetDefault("uplink.maxRetries", 3)
	v.SetDefault("uplink.retryBackoff", "5s")
	v.SetDefault("uplink.ratePerMinute", 6)
	v.SetDefault("uplink.burst", 2)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/lorawand.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}
