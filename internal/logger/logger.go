// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is the single logging seam used by every component in this
// module. It wraps log/slog with the five severities the mount has always
// used plus OFF, and can write either to stderr or to a file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/distfs/mfsclient/cfg"
	"github.com/distfs/mfsclient/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom slog levels. INFO/WARN/ERROR reuse slog's built-in values so that
// severity comparisons against slog.LevelVar behave as expected; TRACE and
// DEBUG sit below them.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

var severityToLevel = map[string]slog.Level{
	config.TRACE:   LevelTrace,
	config.DEBUG:   LevelDebug,
	config.INFO:    LevelInfo,
	config.WARNING: LevelWarn,
	config.ERROR:   LevelError,
	config.OFF:     LevelOff,
}

type loggerFactory struct {
	file            *os.File
	sysWriter       io.Writer
	format          string
	level           string
	logRotateConfig config.LogRotateConfig
}

var (
	defaultLoggerFactory = &loggerFactory{
		sysWriter: os.Stderr,
		level:     config.INFO,
		format:    "json",
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(
		os.Stderr, programLevel(config.INFO), "",
	))
)

func programLevel(severity string) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(severity, v)
	return v
}

func setLoggingLevel(severity string, level *slog.LevelVar) {
	l, ok := severityToLevel[severity]
	if !ok {
		l = LevelInfo
	}
	level.Set(l)
}

// levelNames maps our custom levels back onto the severity string so the
// text/json handlers can print "TRACE"/"WARNING" instead of slog's defaults.
var levelNames = map[slog.Level]string{
	LevelTrace: config.TRACE,
	LevelDebug: config.DEBUG,
	LevelInfo:  config.INFO,
	LevelWarn:  config.WARNING,
	LevelError: config.ERROR,
}

func replaceLevelAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level, _ := a.Value.Any().(slog.Level)
		name, ok := levelNames[level]
		if !ok {
			name = level.String()
		}
		a.Key = "severity"
		a.Value = slog.StringValue(name)
	}
	if a.Key == slog.MessageKey {
		a.Key = "message"
	}
	if a.Key == slog.TimeKey {
		a.Key = "timestamp"
	}
	return a
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelAttr,
	}

	prefixedWriter := w
	if prefix != "" {
		prefixedWriter = &prefixWriter{prefix: prefix, w: w}
	}

	if f.format == "text" {
		return slog.NewTextHandler(prefixedWriter, opts)
	}
	return slog.NewJSONHandler(prefixedWriter, opts)
}

// prefixWriter prepends a static prefix to every line, matching the old
// `log.New(w, prefix, log.LstdFlags)` behavior the text-format tests expect.
type prefixWriter struct {
	prefix string
	w      io.Writer
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	if _, err := io.WriteString(p.w, p.prefix); err != nil {
		return 0, err
	}
	n, err := p.w.Write(b)
	return n + len(p.prefix), err
}

// SetLogFormat switches between "text" and "json" (default json for any other
// value, including empty string).
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	rebuildDefaultLogger()
}

func rebuildDefaultLogger() {
	var w io.Writer = os.Stderr
	if defaultLoggerFactory.sysWriter != nil {
		w = defaultLoggerFactory.sysWriter
	}
	if defaultLoggerFactory.file != nil {
		w = defaultLoggerFactory.file
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel(defaultLoggerFactory.level), ""))
}

// InitLogFile redirects the default logger to newCfg's file path, opened for
// append, using newCfg's severity and format. legacy's rotation settings are
// recorded on the factory, but the file itself is not rotated;
// NewRotatingWriter builds a rotating writer from the same settings.
func InitLogFile(legacy config.LogConfig, newCfg cfg.LoggingConfig) error {
	path := string(newCfg.FilePath)
	if path == "" {
		return fmt.Errorf("logger: no file path configured")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logger: open log file: %w", err)
	}

	defaultLoggerFactory = &loggerFactory{
		file:            f,
		format:          newCfg.Format,
		level:           string(newCfg.Severity),
		logRotateConfig: legacy.LogRotateConfig,
	}
	rebuildDefaultLogger()
	return nil
}

// NewRotatingWriter builds a lumberjack-backed writer from the rotation
// config, for callers (e.g. InitLogFile callers that want actual rotation
// rather than plain append) that want size-based rotation.
func NewRotatingWriter(path string, rc config.LogRotateConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rc.MaxFileSizeMB,
		MaxBackups: rc.BackupFileCount,
		Compress:   rc.Compress,
	}
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}
func Debugf(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelDebug, fmt.Sprintf(format, args...))
}
func Infof(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelInfo, fmt.Sprintf(format, args...))
}
func Warnf(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelWarn, fmt.Sprintf(format, args...))
}
func Errorf(format string, args ...any) {
	defaultLogger.Log(context.Background(), LevelError, fmt.Sprintf(format, args...))
}
