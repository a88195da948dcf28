package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"HTTP服务配置"`
	API     APIConfig     `yaml:"api" mapstructure:"api" comment:"NSX管理接口配置"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor" comment:"采集调度配置"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output" comment:"输出文件配置"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（/metrics /health /peaks），默认关闭
type ServerConfig struct {
	Enable       bool          `yaml:"enable" mapstructure:"enable" env:"SERVER_ENABLE" comment:"是否启用HTTP服务" default:"false"`
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"SERVER_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"SERVER_READ_TIMEOUT" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"SERVER_WRITE_TIMEOUT" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// APIConfig NSX Manager 接口配置
type APIConfig struct {
	URL                string        `yaml:"url" mapstructure:"url" env:"API_URL" validate:"required,url" comment:"NSX Manager 地址（如 https://nsx-mgr.example）"`
	Username           string        `yaml:"username" mapstructure:"username" env:"API_USERNAME" validate:"required" comment:"认证用户名"`
	Password           string        `yaml:"password" mapstructure:"password" env:"API_PASSWORD" validate:"required" comment:"认证密码"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify" env:"API_INSECURE_SKIP_VERIFY" comment:"跳过TLS证书校验（不安全）" default:"true"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout" env:"API_TIMEOUT" validate:"required,gt=0" comment:"单次请求超时" default:"30s"`
	StatisticsSource   string        `yaml:"statistics_source" mapstructure:"statistics_source" env:"API_STATISTICS_SOURCE" validate:"required,oneof=realtime cached" comment:"统计数据来源" default:"realtime"`
	RequestsPerSecond  float64       `yaml:"requests_per_second" mapstructure:"requests_per_second" env:"API_REQUESTS_PER_SECOND" validate:"gte=0" comment:"请求限速，0表示不限速" default:"0"`
	Burst              int           `yaml:"burst" mapstructure:"burst" env:"API_BURST" validate:"gte=0" comment:"限速突发数" default:"1"`
}

// MonitorConfig 采集调度全局配置
type MonitorConfig struct {
	DurationDays  float64         `yaml:"duration_days" mapstructure:"duration_days" env:"MONITOR_DURATION_DAYS" validate:"required,gt=0" comment:"期望采集总时长（天）" default:"1"`
	Interval      time.Duration   `yaml:"interval" mapstructure:"interval" env:"MONITOR_INTERVAL" validate:"required,gt=0" comment:"采样间隔（如5s）" default:"5s"`
	ParallelFetch bool            `yaml:"parallel_fetch" mapstructure:"parallel_fetch" env:"MONITOR_PARALLEL_FETCH" comment:"并发拉取各LB统计" default:"false"`
	MaxParallel   int             `yaml:"max_parallel" mapstructure:"max_parallel" env:"MONITOR_MAX_PARALLEL" validate:"gte=1" comment:"并发拉取上限" default:"4"`
	SkipFailedLB  bool            `yaml:"skip_failed_lb" mapstructure:"skip_failed_lb" env:"MONITOR_SKIP_FAILED_LB" comment:"单个LB拉取失败时跳过而不是中止本轮" default:"false"`
	Collectors    CollectorConfig `yaml:"collectors" mapstructure:"collectors" comment:"辅助采集器配置"`
}

// Rounds 计算采样轮数 floor(总时长 / 间隔)
func (m *MonitorConfig) Rounds() int {
	if m.Interval <= 0 {
		return 0
	}
	total := time.Duration(m.DurationDays * float64(24*time.Hour))
	return int(total / m.Interval)
}

// CollectorConfig 辅助采集器配置
type CollectorConfig struct {
	Self SelfCollectorConfig `yaml:"self" mapstructure:"self" comment:"采集器自身进程资源"`
}

// SelfCollectorConfig 自身进程指标采集（gopsutil）
type SelfCollectorConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" env:"COLLECTOR_SELF_ENABLE" comment:"是否采集自身进程CPU/内存" default:"true"`
}

// OutputConfig 输出文件配置
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir" env:"OUTPUT_DIR" validate:"required" comment:"输出目录" default:"."`
	TotalsFile string `yaml:"totals_file" mapstructure:"totals_file" env:"OUTPUT_TOTALS_FILE" validate:"required" comment:"每轮汇总CSV" default:"total-stats.csv"`
	PeakFile   string `yaml:"peak_file" mapstructure:"peak_file" env:"OUTPUT_PEAK_FILE" validate:"required" comment:"每个VS峰值报告" default:"peak-stats-per-vs.txt"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"控制台日志格式（json/console）" default:"console"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数（max_age为0时生效）" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置（API 地址与凭据必须由用户提供）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enable:       false,
			Addr:         "0.0.0.0:9091",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		API: APIConfig{
			InsecureSkipVerify: true,
			Timeout:            30 * time.Second,
			StatisticsSource:   "realtime",
			RequestsPerSecond:  0,
			Burst:              1,
		},
		Monitor: MonitorConfig{
			DurationDays:  1,
			Interval:      5 * time.Second,
			ParallelFetch: false,
			MaxParallel:   4,
			SkipFailedLB:  false,
			Collectors: CollectorConfig{
				Self: SelfCollectorConfig{Enable: true},
			},
		},
		Output: OutputConfig{
			Dir:        ".",
			TotalsFile: "total-stats.csv",
			PeakFile:   "peak-stats-per-vs.txt",
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "console",
			Path:      "./logs",
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 绑定环境变量 ENV -> Viper （API_URL -> api.url）
	v.SetEnvPrefix("LBSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return decode(v, cfg)
}

// decode 反序列化到结构体（支持 time.Duration / 逗号分隔切片）并校验
func decode(v *viper.Viper, cfg *Config) (*Config, error) {
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置（未启用时跳过地址解析）
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验API配置
	if err := c.API.Validate(); err != nil {
		return err
	}
	// 	3，校验采集配置
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	// 	4，校验输出配置
	if err := c.Output.Validate(); err != nil {
		return err
	}
	// 	5，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
