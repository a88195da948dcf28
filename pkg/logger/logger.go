package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/goid"
)

type Logger = zap.Logger

var (
	// 未初始化时为 Nop，测试中各包可直接调用
	baseLogger    = zap.NewNop()
	defaultFields = struct {
		Collector string
	}{}
	loggerInitOnce sync.Once
	mu             sync.RWMutex
)

const timeLayout = "2006-01-02 15:04:05.000 -07:00"

// InitLogger 初始化全局日志（只执行一次）：控制台 + 按天切割的 JSON 文件
func InitLogger(cfg *config.ZapLogConfig) (*zap.Logger, error) {
	var err error
	loggerInitOnce.Do(func() {
		level := parseLevel(cfg.Level)

		if err = os.MkdirAll(cfg.Path, 0755); err != nil {
			return
		}

		opts := []rotatelogs.Option{
			rotatelogs.WithRotationTime(24 * time.Hour),
		}
		// MaxAge 与 RotationCount 不能同时设置
		if cfg.MaxAge > 0 {
			opts = append(opts, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
		} else {
			opts = append(opts, rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
		}

		writer, wErr := rotatelogs.New(filepath.Join(cfg.Path, "lbstats-%Y%m%d.log"), opts...)
		if wErr != nil {
			err = wErr
			return
		}

		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "timestamp"
		jsonCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(timeLayout))
		}
		jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

		var stdoutEncoder zapcore.Encoder
		if cfg.Format == "json" {
			stdoutEncoder = zapcore.NewJSONEncoder(jsonCfg)
		} else {
			stdoutEncoder = newConsoleEncoder()
		}

		core := zapcore.NewTee(
			zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(writer), level),
		)

		mu.Lock()
		baseLogger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2), zap.AddStacktrace(zapcore.ErrorLevel))
		mu.Unlock()
	})
	return GetGlobalLogger(), err
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newConsoleEncoder 彩色级别 + 蓝色时间 + 两级 caller 路径
func newConsoleEncoder() zapcore.Encoder {
	coloredLevelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		var levelStr string
		switch level {
		case zapcore.DebugLevel:
			levelStr = "\033[36mDEBUG\033[0m"
		case zapcore.InfoLevel:
			levelStr = "\033[32mINFO \033[0m"
		case zapcore.WarnLevel:
			levelStr = "\033[33mWARN \033[0m"
		case zapcore.ErrorLevel:
			levelStr = "\033[31mERROR\033[0m"
		default:
			levelStr = "\033[35m" + level.CapitalString() + "\033[0m"
		}
		enc.AppendString(levelStr)
	}

	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.ConsoleSeparator = " "
	consoleEncoderCfg.EncodeLevel = coloredLevelEncoder
	consoleEncoderCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format(timeLayout)))
	}
	consoleEncoderCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return zapcore.NewConsoleEncoder(consoleEncoderCfg)
}

// SetDefaultCollector 设置默认 collector 字段
func SetDefaultCollector(collector string) {
	mu.Lock()
	defer mu.Unlock()
	defaultFields.Collector = collector
}

func GetDefaultCollector() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultFields.Collector
}

func getDefaultFields() []zapcore.Field {
	return []zapcore.Field{
		zap.String("collector", GetDefaultCollector()),
		zap.String("goid", strconv.FormatUint(goid.GetGID(), 10)),
	}
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	l := GetGlobalLogger()
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(append(getDefaultFields(), fields...)...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }
func Panic(msg string, fields ...zapcore.Field) { log(zap.PanicLevel, msg, fields...) }
func Fatal(msg string, fields ...zapcore.Field) { log(zap.FatalLevel, msg, fields...) }

// Sync 刷盘（忽略 stdout 不支持 sync 的错误）
func Sync() error {
	err := GetGlobalLogger().Sync()
	if err != nil && strings.Contains(err.Error(), "/dev/stdout") {
		return nil
	}
	return err
}

// Component 供直接持有 *zap.Logger 的模块使用（如 http.Server.ErrorLog）
// 抵消包级函数的两层 caller skip，并带上默认字段
func Component(name string) *zap.Logger {
	return GetGlobalLogger().
		WithOptions(zap.AddCallerSkip(-2)).
		Named(name).
		With(zap.String("collector", GetDefaultCollector()))
}

// GetGlobalLogger 返回带两层 caller skip 的基础 logger，直接调用时 caller 不准确，请用 Component
func GetGlobalLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}
