// log/log.go
// Copyright(c) 2025 navlog contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	*slog.Logger
	LogFile string
	LogDir  string
	Start   time.Time
}

// ParseLevel maps the command-line level names to slog levels; unknown
// names are reported and treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "%s: invalid log level\n", level)
		return slog.LevelInfo
	}
}

// New returns a Logger that writes JSON records to a rotating file in
// dir. If dir is empty, the user's config directory is used.
func New(level string, dir string) *Logger {
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to find user config dir: %v", err)
			dir = "."
		}
		dir = filepath.Join(dir, "navlog")
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "navlog.slog"),
		MaxSize:    32, // MB
		MaxBackups: 2,
		MaxAge:     14,
	}
	if level == "debug" {
		w.MaxSize = 256
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	l := &Logger{
		Logger:  slog.New(h),
		LogFile: w.Filename,
		LogDir:  dir,
		Start:   time.Now(),
	}
	l.logSystemInfo()

	return l
}

// NewWriter returns a Logger that writes text records to w; it is used
// for -verbose console output and in tests.
func NewWriter(w io.Writer, level string) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{
		Logger: slog.New(h),
		LogDir: ".",
		Start:  time.Now(),
	}
}

func (l *Logger) logSystemInfo() {
	l.Info("Hello logging", slog.Time("start", l.Start))

	sys := []any{
		slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS),
		slog.Int("NumCPUs", runtime.NumCPU()),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sys = append(sys, slog.Uint64("TotalMemoryMB", vm.Total/(1024*1024)),
			slog.Uint64("AvailableMemoryMB", vm.Available/(1024*1024)))
	}
	l.Info("System information", sys...)

	if bi, ok := debug.ReadBuildInfo(); ok {
		var deps []any
		for _, dep := range bi.Deps {
			deps = append(deps, slog.String(dep.Path, dep.Version))
			if dep.Replace != nil {
				deps = append(deps, slog.String("Replacement "+dep.Replace.Path, dep.Replace.Version))
			}
		}
		l.Info("Build",
			slog.String("Go version", bi.GoVersion),
			slog.String("Path", bi.Path),
			slog.Group("Dependencies", deps...))
	}
}

// Debug wraps slog.Debug to add call stack information (and similarly for
// the following Logger methods...)
//
// The logging methods allow a nil *Logger, in which case debug and info
// messages are discarded, though warnings and errors still go through to
// the default slog logger.
func (l *Logger) Debug(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
		l.Logger.Debug(msg, args...)
	}
}

// Debugf is a convenience wrapper that logs just a message and allows
// printf-style formatting of the provided args.
func (l *Logger) Debugf(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelDebug) {
		l.Logger.Debug(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) Info(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
		l.Logger.Info(msg, args...)
	}
}

func (l *Logger) Infof(msg string, args ...any) {
	if l != nil && l.Logger.Enabled(context.Background(), slog.LevelInfo) {
		l.Logger.Info(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
	if l == nil {
		slog.Warn(msg, args...)
	} else {
		l.Logger.Warn(msg, args...)
	}
}

func (l *Logger) Warnf(msg string, args ...any) {
	if l == nil {
		slog.Warn(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	} else {
		l.Logger.Warn(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

func (l *Logger) Error(msg string, args ...any) {
	args = append([]any{slog.Any("callstack", Callstack(nil))}, args...)
	if l == nil {
		slog.Error(msg, args...)
	} else {
		l.Logger.Error(msg, args...)
	}
}

func (l *Logger) Errorf(msg string, args ...any) {
	if l == nil {
		slog.Error(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	} else {
		l.Logger.Error(fmt.Sprintf(msg, args...), slog.Any("callstack", Callstack(nil)))
	}
}

// With returns a Logger that includes the given attributes in each
// record. With on a nil *Logger returns nil.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Logger:  l.Logger.With(args...),
		LogFile: l.LogFile,
		LogDir:  l.LogDir,
		Start:   l.Start,
	}
}

// exit is replaced in tests.
var exit = os.Exit

// CatchAndReportCrash should be deferred at the top of main; it logs a
// recovered panic, writes a crash report to the log directory, and exits
// with status 1.
func (l *Logger) CatchAndReportCrash() {
	err := recover()
	if err == nil {
		return
	}

	l.Errorf("Crashed: %v", err)

	report := fmt.Sprintf("Crashed: %v\n", err)
	report += "Sys: " + runtime.GOARCH + "/" + runtime.GOOS + "\n"
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			report += setting.Key + ": " + setting.Value + "\n"
		}
	}
	report += string(debug.Stack())

	fmt.Fprintln(os.Stderr, report)

	dir := "."
	if l != nil && l.LogDir != "" {
		dir = l.LogDir
	}
	fn := filepath.Join(dir, "crash-"+time.Now().Format("20060102-150405")+".txt")
	if werr := os.WriteFile(fn, []byte(report), 0o600); werr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", fn, werr)
	}

	exit(1)
}
