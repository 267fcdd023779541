package addonsync

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalVerboseLevel int
var debugFlags map[string]bool

var (
	logMu     sync.Mutex
	logSugar  *zap.SugaredLogger
	logCloser func() error
)

// LogConfig selects the zap encoder and destination
type LogConfig struct {
	Format string // console, json
	Output string // stderr, stdout or a file path
}

// InitLogging replaces the package logger. Call Sync before exit.
func InitLogging(cfg LogConfig) error {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zc.DisableStacktrace = true
	}
	// verbosity gating happens in VerboseLog, zap only filters nothing below debug
	zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zc.DisableCaller = true
	output := cfg.Output
	if output == "" {
		output = "stderr"
	}
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	logMu.Lock()
	defer logMu.Unlock()
	logSugar = logger.Sugar()
	logCloser = logger.Sync
	return nil
}

// SetLogger installs an existing zap logger, mainly for tests
func SetLogger(logger *zap.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logSugar = logger.Sugar()
	logCloser = logger.Sync
}

// SyncLogging flushes buffered log entries
func SyncLogging() error {
	logMu.Lock()
	closer := logCloser
	logMu.Unlock()
	if closer == nil {
		return nil
	}
	return closer()
}

func sugar() *zap.SugaredLogger {
	logMu.Lock()
	defer logMu.Unlock()
	if logSugar == nil {
		zc := zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zc.DisableStacktrace = true
		zc.DisableCaller = true
		logger, err := zc.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		logSugar = logger.Sugar()
		logCloser = logger.Sync
	}
	return logSugar
}

// SetVerboseLevel sets the global verbose level
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if globalVerboseLevel < 3 {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	sugar().Debugw("entering function", "func", funcName)

	return func() {
		sugar().Debugw("exiting function", "func", funcName)
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel < level {
		return
	}
	msg := strings.TrimSuffix(fmt.Sprintf(format, args...), "\n")
	if level >= 2 {
		sugar().Debugw(msg, "verbose", level)
	} else {
		sugar().Infow(msg, "verbose", level)
	}
}

// logWarn always logs, regardless of the verbose level
func logWarn(format string, args ...interface{}) {
	sugar().Warnf(format, args...)
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("scan,hash") and key:value format ("scan:true,hash:false")
func SetDebugFlags(flagsStr string) {
	debugFlags = make(map[string]bool)
	if flagsStr == "" {
		return
	}

	flags := strings.Split(flagsStr, ",")
	for _, flag := range flags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "false", "0", "no", "off":
				flagValue = false
			default:
				flagValue = true
			}
		}

		debugFlags[flagName] = flagValue
	}
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
