package debug

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (mission start/end, arrival)
	LevelLive    = 2 // Live info (primitives started, line states)
	LevelVerbose = 3 // Verbose (per-tick corrections, poses)
	LevelTrace   = 4 // Trace (GPIO, very low level)
)

var (
	level  int
	out    zapcore.WriteSyncer = zapcore.AddSync(os.Stdout)
	logger *zap.SugaredLogger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (missions, arrivals)
// 2 = live info (primitives, line states)
// 3 = verbose (per-tick corrections, poses)
// 4 = trace (GPIO, very low level)
func Init(debugLevel int) {
	level = debugLevel
	build()
}

// SetOutput redirects log output. Call after Init.
func SetOutput(w io.Writer) {
	out = zapcore.AddSync(w)
	build()
}

func build() {
	if level <= LevelOff {
		logger = nil
		return
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, zapcore.DebugLevel)
	logger = zap.New(core).Named("CourseNav").Sugar()
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// Sync flushes buffered output.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.Info("═══════════════════════════════════════")
		logger.Infof("  %s", title)
		logger.Info("═══════════════════════════════════════")
	}
}

// Arrived prints the final pose of a navigation (level 1).
func Arrived(x, y, heading float64) {
	if level >= LevelInfo && logger != nil {
		logger.Infow("arrived", "x", x, "y", y, "heading", heading)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Infof("[LIVE] "+format, args...)
	}
}

// Drive prints the start of a motion primitive (level 2).
func Drive(kind string, power float64, target float64) {
	if level >= LevelLive && logger != nil {
		logger.Infow("[LIVE] "+kind, "power", power, "target", target)
	}
}

// LineState prints a line-follow classification (level 2).
func LineState(state string, left, right float64) {
	if level >= LevelLive && logger != nil {
		logger.Infow("[LIVE] line", "state", state, "left", left, "right", right)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf(format, args...)
	}
}

// Print prints a level 3 message (alias for Verbose).
func Print(format string, args ...interface{}) {
	Verbose(format, args...)
}

// Printf is an alias for Print.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf("%s: %+v", name, v)
	}
}

// Pose prints a position reading (level 3).
func Pose(x, y, heading float64) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugw("pose", "x", x, "y", y, "heading", heading)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debugf("  %s", name)
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debugf("Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Infof("  %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Debugf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Debugw("[GPIO] "+operation, "pin", pin, "value", value)
	}
}

// --- General functions ---

// Warn prints a warning (level 1+).
func Warn(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Warnf(format, args...)
	}
}

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Errorf("%v", err)
	}
}

// Fmt returns a formatted string only if debug is enabled
// (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
