package charmlog

import (
	"context"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// NewCharmLogger returns the CLI terminal logger.
func NewCharmLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// Logger adapts a charmbracelet logger to glog. Trace is written at debug
// level.
type Logger struct {
	base *log.Logger
}

func New(base *log.Logger) *Logger {
	if base == nil {
		base = log.Default()
	}
	return &Logger{base: base}
}

func (l *Logger) Trace(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.base.Fatal(msg, args...) }

func (l *Logger) WithContext(context.Context) glog.Logger {
	return l
}

// WithFields attaches fields in key order so output is stable.
func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keyvals := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		keyvals = append(keyvals, key, fields[key])
	}
	return &Logger{base: l.base.With(keyvals...)}
}

// Provider hands out loggers prefixed with their name.
type Provider struct {
	base *log.Logger
}

func NewProvider(base *log.Logger) *Provider {
	if base == nil {
		base = log.Default()
	}
	return &Provider{base: base}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if name == "" {
		return New(p.base)
	}
	return New(p.base.WithPrefix(name))
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
